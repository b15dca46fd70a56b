package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
	"github.com/Dosada05/playoff-engine/services"
	"github.com/Dosada05/playoff-engine/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	updates []int64
	ready   [][]string
}

func (n *recordingNotifier) BracketUpdated(p *models.Playoff) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, p.Version)
}

func (n *recordingNotifier) MatchesReady(playoffID string, matchIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = append(n.ready, matchIDs)
}

func (n *recordingNotifier) readyBatches() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]string(nil), n.ready...)
}

type testEnv struct {
	repo         repositories.PlayoffRepository
	external     repositories.MemoryExternalMatchStore
	uploader     *storage.MemoryUploader
	notifier     *recordingNotifier
	metrics      *services.Metrics
	playoffs     services.PlayoffService
	seeding      services.SeedingService
	materializer services.MaterializerService
	advancement  services.AdvancementService
	status       services.StatusService
	archive      services.ArchiveService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func interleavedTable(n int) models.SeedingTable {
	var t models.SeedingTable
	for seed := 1; seed <= n; seed++ {
		group, rank := "A", (seed+1)/2
		if seed%2 == 0 {
			group, rank = "B", seed/2
		}
		t.Entries = append(t.Entries, models.SeedingEntry{Group: group, Rank: rank, Seed: seed})
	}
	return t
}

func standingsFor(t models.SeedingTable) []models.Standing {
	out := make([]models.Standing, 0, len(t.Entries))
	for _, e := range t.Entries {
		out = append(out, models.Standing{TeamID: fmt.Sprintf("%s%d", e.Group, e.Rank), GroupID: e.Group, Rank: e.Rank})
	}
	return out
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithRepo(t, repositories.NewMemoryPlayoffRepository())
}

func newTestEnvWithRepo(t *testing.T, repo repositories.PlayoffRepository) *testEnv {
	return newTestEnvWithStores(t, repo, repositories.NewMemoryExternalMatchRepository())
}

func newTestEnvWithStores(t *testing.T, repo repositories.PlayoffRepository, external repositories.MemoryExternalMatchStore) *testEnv {
	t.Helper()
	logger := discardLogger()
	uploader, err := storage.NewMemoryUploader("https://cdn.example.com/brackets")
	require.NoError(t, err)

	env := &testEnv{
		repo:     repo,
		external: external,
		uploader: uploader,
		notifier: &recordingNotifier{},
		metrics:  services.NewMetrics(prometheus.NewRegistry()),
	}
	env.archive = services.NewArchiveService(env.repo, env.uploader, logger)
	env.materializer = services.NewMaterializerService(env.repo, env.external, env.notifier, env.metrics, logger, 5)
	env.advancement = services.NewAdvancementService(services.AdvancementDeps{
		Repo:         env.repo,
		External:     env.external,
		Materializer: env.materializer,
		Notifier:     env.notifier,
		Archiver:     env.archive,
		Metrics:      env.metrics,
		Logger:       logger,
		MaxAttempts:  5,
	})
	env.status = services.NewStatusService(env.repo, env.external, env.advancement, env.metrics, logger)
	env.seeding = services.NewSeedingService(env.repo, env.materializer, env.notifier, env.metrics, logger, 5)
	env.playoffs = services.NewPlayoffService(env.repo, map[models.Layout]models.SeedingTable{
		models.LayoutDoubleElimination: interleavedTable(brackets.DoubleEliminationSeeds),
		models.LayoutSingleElimination: interleavedTable(8),
	}, env.notifier, env.metrics, logger, 5)
	return env
}

func (e *testEnv) createPlayoff(t *testing.T, layout models.Layout) *models.Playoff {
	t.Helper()
	p, err := e.playoffs.Create(context.Background(), services.CreatePlayoffInput{
		TournamentID: "t-1",
		Name:         "Spring Playoffs",
		Layout:       layout,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) seededPlayoff(t *testing.T, layout models.Layout) *models.Playoff {
	t.Helper()
	p := e.createPlayoff(t, layout)
	seeds := brackets.DoubleEliminationSeeds
	if layout == models.LayoutSingleElimination {
		seeds = 8
	}
	seeded, err := e.seeding.Seed(context.Background(), p.ID, standingsFor(interleavedTable(seeds)))
	require.NoError(t, err)
	return seeded
}

func (e *testEnv) load(t *testing.T, id string) *models.Playoff {
	t.Helper()
	p, err := e.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

// finalize plays a scheduled match in the match system and returns the event
// it would emit. Side A wins unless aWins is false.
func (e *testEnv) finalize(t *testing.T, playoffID, matchID string, aWins bool) models.CompletionEvent {
	t.Helper()
	m := e.load(t, playoffID).Match(matchID)
	require.NotNil(t, m, matchID)
	require.NotEmpty(t, m.ExternalMatchID, "match %s was not materialized", matchID)

	a, b := m.Format.GamesToWin(), 0
	if !aWins {
		a, b = b, a
	}
	em, err := e.external.FinalizeMatch(context.Background(), m.ExternalMatchID, a, b, time.Now().UTC())
	require.NoError(t, err)
	ev, ok := models.CompletionEventOf(em)
	require.True(t, ok)
	return ev
}

func (e *testEnv) complete(t *testing.T, playoffID, matchID string, aWins bool) *brackets.Outcome {
	t.Helper()
	out, err := e.status.HandleCompletion(context.Background(), e.finalize(t, playoffID, matchID, aWins))
	require.NoError(t, err)
	return out
}

func scheduledMatches(p *models.Playoff) []string {
	var ids []string
	for _, m := range p.Matches() {
		if m.Status == models.MatchStatusScheduled {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// conflictingRepo loses the first n Save calls to a phantom writer.
type conflictingRepo struct {
	repositories.PlayoffRepository
	mu        sync.Mutex
	conflicts int
}

func (r *conflictingRepo) Save(ctx context.Context, p *models.Playoff, expectedVersion int64) error {
	r.mu.Lock()
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return repositories.ErrVersionConflict
	}
	r.mu.Unlock()
	return r.PlayoffRepository.Save(ctx, p, expectedVersion)
}

func (r *conflictingRepo) loseNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = n
}

// flakyStore wraps the match system so tests can interleave work with, or
// fail, the next cancellations.
type flakyStore struct {
	repositories.MemoryExternalMatchStore
	mu          sync.Mutex
	failCancels int
	onCancel    func()
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryExternalMatchStore: repositories.NewMemoryExternalMatchRepository()}
}

func (s *flakyStore) CancelMatch(ctx context.Context, id string) error {
	s.mu.Lock()
	hook := s.onCancel
	s.onCancel = nil
	fail := s.failCancels > 0
	if fail {
		s.failCancels--
	}
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return errors.New("match system unavailable")
	}
	return s.MemoryExternalMatchStore.CancelMatch(ctx, id)
}

// beforeNextCancel runs fn once, ahead of the next CancelMatch call.
func (s *flakyStore) beforeNextCancel(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCancel = fn
}

func (s *flakyStore) failNextCancels(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCancels = n
}
