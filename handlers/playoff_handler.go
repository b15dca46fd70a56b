package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/services"
)

type PlayoffHandler struct {
	responder
	playoffs     services.PlayoffService
	seeding      services.SeedingService
	advancement  services.AdvancementService
	materializer services.MaterializerService
	status       services.StatusService
	archive      services.ArchiveService
}

type PlayoffHandlerDeps struct {
	Playoffs     services.PlayoffService
	Seeding      services.SeedingService
	Advancement  services.AdvancementService
	Materializer services.MaterializerService
	Status       services.StatusService
	Archive      services.ArchiveService
	Logger       *slog.Logger
}

func NewPlayoffHandler(deps PlayoffHandlerDeps) *PlayoffHandler {
	return &PlayoffHandler{
		responder:    responder{logger: deps.Logger},
		playoffs:     deps.Playoffs,
		seeding:      deps.Seeding,
		advancement:  deps.Advancement,
		materializer: deps.Materializer,
		status:       deps.Status,
		archive:      deps.Archive,
	}
}

// CreateHandler обрабатывает POST /playoffs
func (h *PlayoffHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreatePlayoffInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	p, err := h.playoffs.Create(r.Context(), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusCreated, jsonResponse{"playoff": p})
}

func (h *PlayoffHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	ps, err := h.playoffs.List(r.Context())
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"playoffs": ps})
}

// GetHandler returns the full bracket snapshot.
func (h *PlayoffHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "playoffID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	p, err := h.playoffs.Get(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"playoff": p})
}

type seedRequest struct {
	Standings []models.Standing `json:"standings"`
}

func (h *PlayoffHandler) SeedHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "playoffID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	var req seedRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if len(req.Standings) == 0 {
		h.badRequestResponse(w, r, fmt.Errorf("standings must not be empty"))
		return
	}

	p, err := h.seeding.Seed(r.Context(), id, req.Standings)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"playoff": p})
}

type resultRequest struct {
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
	ScoreA   int    `json:"score_a"`
	ScoreB   int    `json:"score_b"`
}

func (req resultRequest) input(matchID string) brackets.ResultInput {
	return brackets.ResultInput{
		MatchID:  matchID,
		WinnerID: req.WinnerID,
		LoserID:  req.LoserID,
		ScoreA:   req.ScoreA,
		ScoreB:   req.ScoreB,
	}
}

// ResultHandler обрабатывает POST /playoffs/{playoffID}/matches/{matchID}/result
func (h *PlayoffHandler) ResultHandler(w http.ResponseWriter, r *http.Request) {
	playoffID, matchID, ok := h.matchParams(w, r)
	if !ok {
		return
	}
	var req resultRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	outcome, err := h.advancement.ApplyResult(r.Context(), playoffID, req.input(matchID))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"outcome": outcome})
}

type resetRequest struct {
	Correction *resultRequest `json:"correction,omitempty"`
}

// ResetHandler rolls the bracket back to matchID. The body is optional.
func (h *PlayoffHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	playoffID, matchID, ok := h.matchParams(w, r)
	if !ok {
		return
	}
	var req resetRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			h.badRequestResponse(w, r, err)
			return
		}
	}
	var correction *brackets.ResultInput
	if req.Correction != nil {
		in := req.Correction.input(matchID)
		correction = &in
	}

	outcome, err := h.advancement.ResetFrom(r.Context(), playoffID, matchID, correction)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"reset": outcome})
}

type formatRequest struct {
	Format models.MatchFormat `json:"format"`
}

func (h *PlayoffHandler) FormatHandler(w http.ResponseWriter, r *http.Request) {
	playoffID, matchID, ok := h.matchParams(w, r)
	if !ok {
		return
	}
	var req formatRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	m, err := h.playoffs.SetMatchFormat(r.Context(), playoffID, matchID, req.Format)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"match": m})
}

type scheduleRequest struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

func (h *PlayoffHandler) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	playoffID, matchID, ok := h.matchParams(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	m, err := h.playoffs.ScheduleMatch(r.Context(), playoffID, matchID, req.ScheduledFor)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"match": m})
}

func (h *PlayoffHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	playoffID, matchID, ok := h.matchParams(w, r)
	if !ok {
		return
	}
	m, err := h.playoffs.StartMatch(r.Context(), playoffID, matchID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"match": m})
}

func (h *PlayoffHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "playoffID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	summary, err := h.status.Summary(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"status": summary})
}

func (h *PlayoffHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "playoffID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	ready, err := h.status.ListReady(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"ready": ready})
}

func (h *PlayoffHandler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "playoffID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	violations, err := h.playoffs.Validate(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if violations == nil {
		violations = []brackets.Violation{}
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"valid": len(violations) == 0, "violations": violations})
}

func (h *PlayoffHandler) MaterializeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "playoffID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	created, err := h.materializer.MaterializeReady(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if created == nil {
		created = []services.MaterializedMatch{}
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"materialized": created})
}

func (h *PlayoffHandler) ArchiveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "playoffID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	res, err := h.archive.Archive(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusCreated, jsonResponse{"archive": res})
}

func (h *PlayoffHandler) matchParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	playoffID, err := urlParam(r, "playoffID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return "", "", false
	}
	matchID, err := urlParam(r, "matchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return "", "", false
	}
	return playoffID, matchID, true
}
