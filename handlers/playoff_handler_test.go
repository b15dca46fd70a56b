package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/handlers"
	"github.com/Dosada05/playoff-engine/listener"
	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
	"github.com/Dosada05/playoff-engine/routes"
	"github.com/Dosada05/playoff-engine/services"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router   chi.Router
	repo     repositories.PlayoffRepository
	external repositories.MemoryExternalMatchStore
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fourSeedTable() models.SeedingTable {
	return models.SeedingTable{Entries: []models.SeedingEntry{
		{Group: "A", Rank: 1, Seed: 1},
		{Group: "B", Rank: 1, Seed: 2},
		{Group: "A", Rank: 2, Seed: 3},
		{Group: "B", Rank: 2, Seed: 4},
	}}
}

// newTestServer wires the full route table to in-memory stores. Archiving is
// left disabled.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := discardLogger()
	reg := prometheus.NewRegistry()
	metrics := services.NewMetrics(reg)
	hub := brackets.NewHub(logger)

	s := &testServer{
		repo:     repositories.NewMemoryPlayoffRepository(),
		external: repositories.NewMemoryExternalMatchRepository(),
	}
	archive := services.NewArchiveService(s.repo, nil, logger)
	materializer := services.NewMaterializerService(s.repo, s.external, hub, metrics, logger, 5)
	advancement := services.NewAdvancementService(services.AdvancementDeps{
		Repo:         s.repo,
		External:     s.external,
		Materializer: materializer,
		Notifier:     hub,
		Metrics:      metrics,
		Logger:       logger,
		MaxAttempts:  5,
	})
	status := services.NewStatusService(s.repo, s.external, advancement, metrics, logger)
	seeding := services.NewSeedingService(s.repo, materializer, hub, metrics, logger, 5)
	playoffs := services.NewPlayoffService(s.repo, map[models.Layout]models.SeedingTable{
		models.LayoutSingleElimination: fourSeedTable(),
	}, hub, metrics, logger, 5)

	playoffHandler := handlers.NewPlayoffHandler(handlers.PlayoffHandlerDeps{
		Playoffs:     playoffs,
		Seeding:      seeding,
		Advancement:  advancement,
		Materializer: materializer,
		Status:       status,
		Archive:      archive,
		Logger:       logger,
	})
	// A publisher is not needed here: the simulator's event path is covered by the listener tests.
	transport, err := listener.NewTransport(listener.TransportConfig{Kind: listener.TransportGoChannel}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })
	simulator := listener.NewMatchSimulator(s.external, listener.NewCompletionPublisher(transport.Publisher, "test.finalized"), logger)

	s.router = chi.NewRouter()
	routes.SetupRoutes(s.router, routes.Options{
		Logger:    logger,
		Registry:  reg,
		Simulator: handlers.NewSimulatorHandler(simulator, logger),
	}, playoffHandler, handlers.NewWebSocketHandler(hub, playoffs, logger))
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(dst), rr.Body.String())
}

func (s *testServer) createSeeded(t *testing.T, id string) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/playoffs", fmt.Sprintf(`{"id":%q,"tournament_id":"t-1","name":"Cup","layout":"single_elimination"}`, id))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/playoffs/"+id+"/seeding", `{"standings":[
		{"team_id":"A1","group_id":"A","rank":1},
		{"team_id":"B1","group_id":"B","rank":1},
		{"team_id":"A2","group_id":"A","rank":2},
		{"team_id":"B2","group_id":"B","rank":2}
	]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func (s *testServer) externalID(t *testing.T, playoffID, matchID string) string {
	t.Helper()
	p, err := s.repo.GetByID(context.Background(), playoffID)
	require.NoError(t, err)
	m := p.Match(matchID)
	require.NotNil(t, m)
	require.NotEmpty(t, m.ExternalMatchID)
	return m.ExternalMatchID
}

func TestCreateAndGetPlayoff(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/playoffs", `{"id":"po-1","tournament_id":"t-1","name":"Cup","layout":"single_elimination"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		Playoff struct {
			ID      string `json:"id"`
			Version int64  `json:"version"`
			Seeded  bool   `json:"seeded"`
		} `json:"playoff"`
	}
	decode(t, rr, &created)
	assert.Equal(t, "po-1", created.Playoff.ID)
	assert.Equal(t, int64(1), created.Playoff.Version)
	assert.False(t, created.Playoff.Seeded)

	rr = s.do(t, http.MethodGet, "/playoffs/po-1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodGet, "/playoffs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Playoffs []json.RawMessage `json:"playoffs"`
	}
	decode(t, rr, &list)
	assert.Len(t, list.Playoffs, 1)
}

func TestCreatePlayoff_Errors(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/playoffs", `{"id":"po-1","tournament_id":"t-1","name":"Cup","layout":"single_elimination"}`).Code)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate id", `{"id":"po-1","tournament_id":"t-1","name":"Cup","layout":"single_elimination"}`, http.StatusConflict},
		{"unknown layout", `{"tournament_id":"t-1","name":"Cup","layout":"swiss"}`, http.StatusUnprocessableEntity},
		{"no default table", `{"tournament_id":"t-1","name":"Cup","layout":"double_elimination"}`, http.StatusUnprocessableEntity},
		{"missing name", `{"tournament_id":"t-1","layout":"single_elimination"}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"tournament_id":"t-1","name":"Cup","teams":8}`, http.StatusBadRequest},
		{"malformed", `{"tournament_id":`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/playoffs", tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/playoffs/missing", "").Code)
}

func TestSeedPlayoff(t *testing.T) {
	s := newTestServer(t)
	s.createSeeded(t, "po-1")

	rr := s.do(t, http.MethodGet, "/playoffs/po-1/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var status struct {
		Status models.StatusSummary `json:"status"`
	}
	decode(t, rr, &status)
	assert.Equal(t, 3, status.Status.Total)
	assert.Equal(t, 2, status.Status.Scheduled, "opening matches are materialized on seeding")

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/playoffs/po-1/seeding", `{"standings":[]}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		s.do(t, http.MethodPost, "/playoffs/po-1/seeding", `{"standings":[{"team_id":"A1","group_id":"A","rank":1}]}`).Code)
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodPost, "/playoffs/missing/seeding", `{"standings":[{"team_id":"A1","group_id":"A","rank":1}]}`).Code)
}

func TestApplyResultAndReset(t *testing.T) {
	s := newTestServer(t)
	s.createSeeded(t, "po-1")

	// Seed 1 (A1) meets seed 4 (B2) in the first semifinal.
	rr := s.do(t, http.MethodPost, "/playoffs/po-1/matches/ub-r1-m1/result", `{"winner_id":"A1","loser_id":"B2","score_a":1,"score_b":0}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var applied struct {
		Outcome brackets.Outcome `json:"outcome"`
	}
	decode(t, rr, &applied)
	assert.Equal(t, "A1", applied.Outcome.WinnerID)
	assert.False(t, applied.Outcome.Idempotent)

	rr = s.do(t, http.MethodPost, "/playoffs/po-1/matches/ub-r1-m1/result", `{"winner_id":"A1","loser_id":"B2","score_a":1,"score_b":0}`)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &applied)
	assert.True(t, applied.Outcome.Idempotent)

	tests := []struct {
		name  string
		match string
		body  string
		want  int
	}{
		{"conflicting result", "ub-r1-m1", `{"winner_id":"B2","loser_id":"A1","score_a":0,"score_b":1}`, http.StatusConflict},
		{"tie", "ub-r1-m2", `{"winner_id":"B1","loser_id":"A2","score_a":1,"score_b":1}`, http.StatusUnprocessableEntity},
		{"foreign team", "ub-r1-m2", `{"winner_id":"A1","loser_id":"A2","score_a":1,"score_b":0}`, http.StatusUnprocessableEntity},
		{"unknown match", "ub-r9-m1", `{"winner_id":"B1","loser_id":"A2","score_a":1,"score_b":0}`, http.StatusNotFound},
		{"bad json", "ub-r1-m2", `{"winner_id":1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/playoffs/po-1/matches/"+tt.match+"/result", tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	rr = s.do(t, http.MethodPost, "/playoffs/po-1/matches/ub-r1-m1/reset", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var reset struct {
		Reset brackets.ResetOutcome `json:"reset"`
	}
	decode(t, rr, &reset)
	assert.Equal(t, "ub-r1-m1", reset.Reset.MatchID)
	assert.Contains(t, reset.Reset.ResetMatches, "ub-r1-m1")

	rr = s.do(t, http.MethodPost, "/playoffs/po-1/matches/ub-r1-m1/reset", `{"correction":{"winner_id":"B2","loser_id":"A1","score_a":0,"score_b":1}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decode(t, rr, &reset)
	require.NotNil(t, reset.Reset.Correction)
	assert.Equal(t, "B2", reset.Reset.Correction.WinnerID)

	rr = s.do(t, http.MethodGet, "/playoffs/po-1/validation", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var validation struct {
		Valid      bool                 `json:"valid"`
		Violations []brackets.Violation `json:"violations"`
	}
	decode(t, rr, &validation)
	assert.True(t, validation.Valid)
	assert.Empty(t, validation.Violations)
}

func TestMatchAdministration(t *testing.T) {
	s := newTestServer(t)
	s.createSeeded(t, "po-1")

	rr := s.do(t, http.MethodPut, "/playoffs/po-1/matches/ub-r2-m1/format", `{"format":"bo5"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(t, http.MethodPut, "/playoffs/po-1/matches/ub-r2-m1/format", `{"format":"bo7"}`).Code)

	rr = s.do(t, http.MethodPut, "/playoffs/po-1/matches/ub-r1-m2/schedule", `{"scheduled_for":"2026-05-01T18:00:00+02:00"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var scheduled struct {
		Match struct {
			ScheduledFor string `json:"scheduled_for"`
		} `json:"match"`
	}
	decode(t, rr, &scheduled)
	assert.Equal(t, "2026-05-01T16:00:00Z", scheduled.Match.ScheduledFor)

	rr = s.do(t, http.MethodPost, "/playoffs/po-1/matches/ub-r1-m2/start", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var started struct {
		Match struct {
			Status models.MatchStatus `json:"status"`
		} `json:"match"`
	}
	decode(t, rr, &started)
	assert.Equal(t, models.MatchStatusInProgress, started.Match.Status)

	rr = s.do(t, http.MethodPost, "/playoffs/po-1/materialize", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var materialized struct {
		Materialized []json.RawMessage `json:"materialized"`
	}
	decode(t, rr, &materialized)
	assert.Empty(t, materialized.Materialized, "opening matches are already bound")

	rr = s.do(t, http.MethodGet, "/playoffs/po-1/ready", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, "/playoffs/po-1/archive", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "no uploader configured")
}

func TestSimulatorFinalize(t *testing.T) {
	s := newTestServer(t)
	s.createSeeded(t, "po-1")
	ext := s.externalID(t, "po-1", "ub-r1-m1")

	assert.Equal(t, http.StatusUnprocessableEntity,
		s.do(t, http.MethodPost, "/simulator/external-matches/"+ext+"/finalize", `{"team_a_score":-1,"team_b_score":0}`).Code)

	rr := s.do(t, http.MethodPost, "/simulator/external-matches/"+ext+"/finalize", `{"team_a_score":1,"team_b_score":0}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		ExternalMatch models.ExternalMatch `json:"external_match"`
	}
	decode(t, rr, &body)
	assert.Equal(t, models.ExternalMatchFinalized, body.ExternalMatch.Status)

	assert.Equal(t, http.StatusConflict,
		s.do(t, http.MethodPost, "/simulator/external-matches/"+ext+"/finalize", `{"team_a_score":0,"team_b_score":1}`).Code)
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodPost, "/simulator/external-matches/ghost/finalize", `{"team_a_score":1,"team_b_score":0}`).Code)
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/swagger/doc.json", "").Code)

	rr := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "playoff_http_request_duration_seconds")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/ws/playoffs/missing", "").Code)
}
