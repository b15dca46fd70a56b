package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
)

type StatusService interface {
	Summary(ctx context.Context, playoffID string) (*models.StatusSummary, error)
	ListReady(ctx context.Context, playoffID string) ([]models.Match, error)
	// HandleCompletion turns a match system completion event into a result.
	HandleCompletion(ctx context.Context, ev models.CompletionEvent) (*brackets.Outcome, error)
	// Reconcile replays every finalized external match that the bracket has
	// not recorded yet. It returns the number of results applied.
	Reconcile(ctx context.Context) (int, error)
}

type statusService struct {
	repo        repositories.PlayoffRepository
	external    repositories.ExternalMatchStore
	advancement AdvancementService
	metrics     *Metrics
	logger      *slog.Logger
}

func NewStatusService(
	repo repositories.PlayoffRepository,
	external repositories.ExternalMatchStore,
	advancement AdvancementService,
	metrics *Metrics,
	logger *slog.Logger,
) StatusService {
	return &statusService{
		repo:        repo,
		external:    external,
		advancement: advancement,
		metrics:     metrics,
		logger:      logger,
	}
}

func (s *statusService) Summary(ctx context.Context, playoffID string) (*models.StatusSummary, error) {
	p, err := s.repo.GetByID(ctx, playoffID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	summary := brackets.Summarize(p)
	return &summary, nil
}

func (s *statusService) ListReady(ctx context.Context, playoffID string) ([]models.Match, error) {
	p, err := s.repo.GetByID(ctx, playoffID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	ready := brackets.ReadyMatches(p)
	out := make([]models.Match, 0, len(ready))
	for _, m := range ready {
		out = append(out, *m)
	}
	return out, nil
}

func (s *statusService) HandleCompletion(ctx context.Context, ev models.CompletionEvent) (*brackets.Outcome, error) {
	outcome, err := s.handleCompletion(ctx, ev)
	disposition := "applied"
	switch {
	case err != nil && IsIgnorable(err):
		disposition = "ignored"
	case err != nil:
		disposition = "failed"
	case outcome.Idempotent:
		disposition = "duplicate"
	}
	s.metrics.EventsHandled.WithLabelValues(disposition).Inc()
	return outcome, err
}

func (s *statusService) handleCompletion(ctx context.Context, ev models.CompletionEvent) (*brackets.Outcome, error) {
	if ev.ExternalMatchID == "" {
		return nil, fmt.Errorf("%w: completion event without match id", ErrInvalidResult)
	}
	em, err := s.external.GetMatch(ctx, ev.ExternalMatchID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	if em.Status == models.ExternalMatchCanceled {
		return nil, fmt.Errorf("%w: external match %s was voided", ErrNotFound, em.ID)
	}

	p, err := s.repo.GetByID(ctx, em.Key.PlayoffID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	m := p.MatchByExternalID(em.ID)
	if m == nil {
		return nil, fmt.Errorf("%w: no bracket match bound to external match %s", ErrNotFound, em.ID)
	}
	if ev.TeamAScore == ev.TeamBScore {
		return nil, fmt.Errorf("%w: tie %d-%d reported for %s", ErrInvalidResult, ev.TeamAScore, ev.TeamBScore, m.ID)
	}

	teamA, teamB := m.ParticipantA.TeamID, m.ParticipantB.TeamID
	if teamA != em.TeamA || teamB != em.TeamB {
		return nil, fmt.Errorf("%w: external match %s holds %s vs %s, bracket slot %s holds %s vs %s",
			ErrInvalidResult, em.ID, em.TeamA, em.TeamB, m.ID, teamA, teamB)
	}
	in := brackets.ResultInput{
		MatchID:  m.ID,
		WinnerID: teamA,
		LoserID:  teamB,
		ScoreA:   ev.TeamAScore,
		ScoreB:   ev.TeamBScore,
	}
	if ev.TeamBScore > ev.TeamAScore {
		in.WinnerID, in.LoserID = teamB, teamA
	}
	return s.advancement.ApplyResult(ctx, p.ID, in)
}

func (s *statusService) Reconcile(ctx context.Context) (int, error) {
	ids, err := s.repo.ListActiveIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active playoffs: %w", err)
	}

	applied := 0
	var errs []error
	for _, id := range ids {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			errs = append(errs, mapRepositoryError(err))
			continue
		}
		for _, m := range p.Matches() {
			if m.ExternalMatchID == "" || m.IsCompleted() {
				continue
			}
			em, err := s.external.GetMatch(ctx, m.ExternalMatchID)
			if err != nil {
				errs = append(errs, fmt.Errorf("match %s: %w", m.ID, err))
				continue
			}
			ev, ok := models.CompletionEventOf(em)
			if !ok {
				continue
			}
			outcome, err := s.HandleCompletion(ctx, ev)
			if err != nil {
				if !IsIgnorable(err) {
					errs = append(errs, fmt.Errorf("match %s: %w", m.ID, err))
				}
				s.logger.Warn("reconcile could not apply result",
					slog.String("playoff_id", id),
					slog.String("match_id", m.ID),
					slog.Any("error", err))
				continue
			}
			if !outcome.Idempotent {
				applied++
			}
		}
	}
	if ctx.Err() != nil {
		return applied, ctx.Err()
	}
	s.logger.Info("reconcile finished", slog.Int("playoffs", len(ids)), slog.Int("applied", applied))
	return applied, errors.Join(errs...)
}
