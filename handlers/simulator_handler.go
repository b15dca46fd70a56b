package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
)

// MatchFinalizer plays the match system in development builds.
type MatchFinalizer interface {
	Finalize(ctx context.Context, externalMatchID string, teamAScore, teamBScore int) (*models.ExternalMatch, error)
}

type SimulatorHandler struct {
	responder
	finalizer MatchFinalizer
}

func NewSimulatorHandler(finalizer MatchFinalizer, logger *slog.Logger) *SimulatorHandler {
	return &SimulatorHandler{responder: responder{logger: logger}, finalizer: finalizer}
}

type finalizeRequest struct {
	TeamAScore int `json:"team_a_score"`
	TeamBScore int `json:"team_b_score"`
}

// FinalizeHandler обрабатывает POST /simulator/external-matches/{externalMatchID}/finalize
func (h *SimulatorHandler) FinalizeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "externalMatchID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	var req finalizeRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if req.TeamAScore < 0 || req.TeamBScore < 0 {
		h.unprocessableResponse(w, r, errors.New("scores must not be negative"))
		return
	}

	em, err := h.finalizer.Finalize(r.Context(), id, req.TeamAScore, req.TeamBScore)
	switch {
	case errors.Is(err, repositories.ErrExternalMatchNotFound):
		h.notFoundResponse(w, r, err)
		return
	case errors.Is(err, repositories.ErrExternalMatchClosed):
		h.conflictResponse(w, r, err)
		return
	case err != nil && em == nil:
		h.serverErrorResponse(w, r, err)
		return
	case err != nil:
		// Finalized but the event did not go out; reconcile will apply it.
		h.writeOK(w, r, http.StatusAccepted, jsonResponse{"external_match": em, "warning": err.Error()})
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"external_match": em})
}
