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

const defaultMaxAttempts = 5

// BracketNotifier receives committed playoff state. brackets.Hub implements it.
type BracketNotifier interface {
	BracketUpdated(p *models.Playoff)
	MatchesReady(playoffID string, matchIDs []string)
}

type noopNotifier struct{}

func (noopNotifier) BracketUpdated(*models.Playoff)  {}
func (noopNotifier) MatchesReady(string, []string) {}

func notifierOrNoop(n BracketNotifier) BracketNotifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// mutatePlayoff is the read-modify-write loop shared by every mutation.
// fn receives the stored playoff and returns the next state; returning the
// same pointer means nothing changed and nothing is written. A lost version
// race reloads and runs fn again, up to attempts times.
func mutatePlayoff(ctx context.Context, repo repositories.PlayoffRepository, metrics *Metrics, attempts int, id string,
	fn func(current *models.Playoff) (*models.Playoff, error)) (*models.Playoff, bool, error) {
	if attempts < 1 {
		attempts = defaultMaxAttempts
	}
	for attempt := 1; ; attempt++ {
		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, false, mapRepositoryError(err)
		}
		next, err := fn(current)
		if err != nil {
			return nil, false, err
		}
		if next == nil || next == current {
			return current, false, nil
		}

		err = repo.Save(ctx, next, current.Version)
		if err == nil {
			return next, true, nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return nil, false, mapRepositoryError(err)
		}
		metrics.VersionConflicts.Inc()
		if attempt >= attempts {
			return nil, false, fmt.Errorf("playoff %s still contended after %d attempts: %w", id, attempts, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
	}
}

// matchMutation wraps a single-match edit with the usual lookups.
func matchMutation(matchID string, fn func(p *models.Playoff, m *models.Match) error) func(*models.Playoff) (*models.Playoff, error) {
	return func(current *models.Playoff) (*models.Playoff, error) {
		next := current.Clone()
		m := next.Match(matchID)
		if m == nil {
			return nil, fmt.Errorf("%w: match %q in playoff %q", ErrNotFound, matchID, current.ID)
		}
		if err := fn(next, m); err != nil {
			return nil, err
		}
		if vs := brackets.ValidateTransition(current, next); len(vs) > 0 {
			return nil, brackets.ViolationError(vs)
		}
		return next, nil
	}
}

// cancelVoided cancels the external matches a reset detached from p and drops
// the confirmed ones from the stored document. Ids whose cancellation fails
// stay listed, so the next sweep retries them.
func cancelVoided(ctx context.Context, repo repositories.PlayoffRepository, external repositories.ExternalMatchStore,
	metrics *Metrics, logger *slog.Logger, attempts int, p *models.Playoff) error {
	if len(p.VoidedExternalIDs) == 0 {
		return nil
	}

	confirmed := make(map[string]bool, len(p.VoidedExternalIDs))
	var errs []error
	for _, id := range p.VoidedExternalIDs {
		err := external.CancelMatch(ctx, id)
		if err != nil && !errors.Is(err, repositories.ErrExternalMatchNotFound) {
			logger.Warn("failed to cancel voided external match",
				slog.String("playoff_id", p.ID),
				slog.String("external_match_id", id),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("cancel %s: %w", id, err))
			continue
		}
		confirmed[id] = true
	}
	if len(confirmed) == 0 {
		return errors.Join(errs...)
	}

	_, _, err := mutatePlayoff(ctx, repo, metrics, attempts, p.ID, func(current *models.Playoff) (*models.Playoff, error) {
		var keep []string
		for _, id := range current.VoidedExternalIDs {
			if !confirmed[id] {
				keep = append(keep, id)
			}
		}
		if len(keep) == len(current.VoidedExternalIDs) {
			return current, nil
		}
		next := current.Clone()
		next.VoidedExternalIDs = keep
		return next, nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to record cancelled external matches: %w", err))
	}
	return errors.Join(errs...)
}
