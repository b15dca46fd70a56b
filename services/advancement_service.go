package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
)

type AdvancementService interface {
	// ApplyResult records a final result and cascades it into the bracket.
	// Replaying the same result succeeds with Outcome.Idempotent set.
	ApplyResult(ctx context.Context, playoffID string, in brackets.ResultInput) (*brackets.Outcome, error)
	// ResetFrom rolls back a match and its downstream closure. A non-nil
	// correction is applied to the match in the same write.
	ResetFrom(ctx context.Context, playoffID, matchID string, correction *brackets.ResultInput) (*brackets.ResetOutcome, error)
}

type advancementService struct {
	repo         repositories.PlayoffRepository
	external     repositories.ExternalMatchStore
	materializer MaterializerService
	notifier     BracketNotifier
	archiver     ArchiveService
	metrics      *Metrics
	logger       *slog.Logger
	maxAttempts  int
	now          func() time.Time
}

type AdvancementDeps struct {
	Repo         repositories.PlayoffRepository
	External     repositories.ExternalMatchStore
	Materializer MaterializerService // optional
	Notifier     BracketNotifier     // optional
	Archiver     ArchiveService      // optional
	Metrics      *Metrics
	Logger       *slog.Logger
	MaxAttempts  int
}

func NewAdvancementService(deps AdvancementDeps) AdvancementService {
	return &advancementService{
		repo:         deps.Repo,
		external:     deps.External,
		materializer: deps.Materializer,
		notifier:     notifierOrNoop(deps.Notifier),
		archiver:     deps.Archiver,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		maxAttempts:  deps.MaxAttempts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *advancementService) ApplyResult(ctx context.Context, playoffID string, in brackets.ResultInput) (*brackets.Outcome, error) {
	start := time.Now()
	defer s.metrics.observe("apply_result", start)

	var outcome *brackets.Outcome
	next, changed, err := mutatePlayoff(ctx, s.repo, s.metrics, s.maxAttempts, playoffID, func(current *models.Playoff) (*models.Playoff, error) {
		updated, out, err := brackets.ApplyResult(current, in, s.now())
		if err != nil {
			return nil, err
		}
		outcome = out
		if updated == current {
			return current, nil
		}
		if vs := brackets.ValidateTransition(current, updated); len(vs) > 0 {
			return nil, brackets.ViolationError(vs)
		}
		return updated, nil
	})
	s.metrics.ResultsApplied.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil {
		s.logger.Warn("result rejected",
			slog.String("playoff_id", playoffID),
			slog.String("match_id", in.MatchID),
			slog.Any("error", err))
		return nil, err
	}
	if !changed {
		s.logger.Debug("result already recorded",
			slog.String("playoff_id", playoffID),
			slog.String("match_id", in.MatchID))
		return outcome, nil
	}

	s.logger.Info("result applied",
		slog.String("playoff_id", playoffID),
		slog.String("match_id", in.MatchID),
		slog.String("winner_id", in.WinnerID),
		slog.Int("bindings", len(outcome.Bindings)),
		slog.Int64("version", next.Version))
	s.afterCommit(ctx, next, outcome.NewlyReady)
	for _, pl := range outcome.Placements {
		if pl.Kind == models.DestinationChampion {
			s.archive(ctx, next)
		}
	}
	return outcome, nil
}

func (s *advancementService) ResetFrom(ctx context.Context, playoffID, matchID string, correction *brackets.ResultInput) (*brackets.ResetOutcome, error) {
	start := time.Now()
	defer s.metrics.observe("reset", start)

	var outcome *brackets.ResetOutcome
	next, _, err := mutatePlayoff(ctx, s.repo, s.metrics, s.maxAttempts, playoffID, func(current *models.Playoff) (*models.Playoff, error) {
		updated, out, err := brackets.ResetFrom(current, matchID, correction, s.now())
		if err != nil {
			return nil, err
		}
		outcome = out
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Resets.Inc()

	// The reset is committed; whatever is not cancelled here is retried by the sweep.
	if err := cancelVoided(ctx, s.repo, s.external, s.metrics, s.logger, s.maxAttempts, next); err != nil {
		s.logger.Warn("voided external matches left for the sweep",
			slog.String("playoff_id", playoffID),
			slog.Any("error", err))
	}

	s.logger.Info("playoff reset",
		slog.String("playoff_id", playoffID),
		slog.String("match_id", matchID),
		slog.Any("reset_matches", outcome.ResetMatches),
		slog.Int("voided", len(outcome.VoidedExternalIDs)),
		slog.Bool("corrected", correction != nil))

	var ready []string
	for _, m := range brackets.ReadyMatches(next) {
		ready = append(ready, m.ID)
	}
	s.afterCommit(ctx, next, ready)
	return outcome, nil
}

// afterCommit runs the side effects of a committed write. Failures are
// logged only; the periodic sweep picks up anything missed here.
func (s *advancementService) afterCommit(ctx context.Context, p *models.Playoff, ready []string) {
	s.notifier.BracketUpdated(p)
	if len(ready) == 0 || s.materializer == nil {
		return
	}
	if _, err := s.materializer.MaterializeReady(ctx, p.ID); err != nil {
		s.logger.Error("materialization after commit failed",
			slog.String("playoff_id", p.ID),
			slog.Any("error", err))
	}
}

func (s *advancementService) archive(ctx context.Context, p *models.Playoff) {
	if s.archiver == nil {
		return
	}
	if _, err := s.archiver.ArchiveSnapshot(ctx, p); err != nil {
		s.logger.Warn("failed to archive finished playoff",
			slog.String("playoff_id", p.ID),
			slog.Any("error", fmt.Errorf("archive: %w", err)))
	}
}
