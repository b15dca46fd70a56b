package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
	"golang.org/x/sync/errgroup"
)

type MaterializedMatch struct {
	MatchID         string `json:"match_id"`
	ExternalMatchID string `json:"external_match_id"`
	Created         bool   `json:"created"`
}

type MaterializerService interface {
	// MaterializeReady turns every ready slot of one playoff into a scheduled
	// external match. Safe to call repeatedly and concurrently.
	MaterializeReady(ctx context.Context, playoffID string) ([]MaterializedMatch, error)
	// MaterializeAll sweeps every playoff that has no champion yet.
	MaterializeAll(ctx context.Context) error
}

type materializerService struct {
	repo        repositories.PlayoffRepository
	external    repositories.ExternalMatchStore
	notifier    BracketNotifier
	metrics     *Metrics
	logger      *slog.Logger
	maxAttempts int
	concurrency int
	now         func() time.Time
}

func NewMaterializerService(
	repo repositories.PlayoffRepository,
	external repositories.ExternalMatchStore,
	notifier BracketNotifier,
	metrics *Metrics,
	logger *slog.Logger,
	maxAttempts int,
) MaterializerService {
	return &materializerService{
		repo:        repo,
		external:    external,
		notifier:    notifierOrNoop(notifier),
		metrics:     metrics,
		logger:      logger,
		maxAttempts: maxAttempts,
		concurrency: 4,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type readySlot struct {
	matchID string
	key     models.MatchKey
	teamA   string
	teamB   string
	format  models.MatchFormat
}

func (s *materializerService) MaterializeReady(ctx context.Context, playoffID string) ([]MaterializedMatch, error) {
	start := time.Now()
	defer s.metrics.observe("materialize", start)

	attempts := s.maxAttempts
	if attempts < 1 {
		attempts = defaultMaxAttempts
	}

	// Free the keys held by matches a reset detached before creating new ones.
	pending, err := s.repo.GetByID(ctx, playoffID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	if err := cancelVoided(ctx, s.repo, s.external, s.metrics, s.logger, attempts, pending); err != nil {
		s.logger.Warn("voided external matches still pending",
			slog.String("playoff_id", playoffID),
			slog.Any("error", err))
	}

	for attempt := 1; ; attempt++ {
		current, err := s.repo.GetByID(ctx, playoffID)
		if err != nil {
			return nil, mapRepositoryError(err)
		}

		var slots []readySlot
		for _, m := range brackets.ReadyMatches(current) {
			a, _ := brackets.ResolveParticipant(current, m, models.SlotA)
			b, _ := brackets.ResolveParticipant(current, m, models.SlotB)
			slots = append(slots, readySlot{
				matchID: m.ID,
				key:     models.KeyOf(current.ID, m),
				teamA:   a,
				teamB:   b,
				format:  m.Format,
			})
		}
		if len(slots) == 0 {
			return nil, nil
		}

		created, err := s.createAll(ctx, current, slots)
		if errors.Is(err, errStaleSnapshot) && attempt < attempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		now := s.now()
		for i, slot := range slots {
			m := next.Match(slot.matchID)
			m.ParticipantA.TeamID = slot.teamA
			m.ParticipantB.TeamID = slot.teamB
			m.Status = models.MatchStatusScheduled
			m.ExternalMatchID = created[i].ExternalMatchID
			m.UpdatedAt = now
		}
		next.UpdatedAt = now
		if vs := brackets.ValidateTransition(current, next); len(vs) > 0 {
			return nil, brackets.ViolationError(vs)
		}

		err = s.repo.Save(ctx, next, current.Version)
		if err == nil {
			ids := make([]string, 0, len(created))
			for _, c := range created {
				ids = append(ids, c.MatchID)
			}
			s.metrics.MatchesMaterialized.Add(float64(len(created)))
			s.logger.Info("matches materialized",
				slog.String("playoff_id", playoffID),
				slog.Any("match_ids", ids),
				slog.Int64("version", next.Version))
			s.notifier.BracketUpdated(next)
			s.notifier.MatchesReady(playoffID, ids)
			return created, nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return nil, mapRepositoryError(err)
		}
		s.metrics.VersionConflicts.Inc()
		if attempt >= attempts {
			return nil, fmt.Errorf("materialization of playoff %s still contended after %d attempts: %w", playoffID, attempts, err)
		}
		// External matches already created are returned again by key on the next pass.
	}
}

func (s *materializerService) createAll(ctx context.Context, snapshot *models.Playoff, slots []readySlot) ([]MaterializedMatch, error) {
	out := make([]MaterializedMatch, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, slot := range slots {
		g.Go(func() error {
			em, created, err := s.external.CreateMatch(gctx, slot.key, slot.teamA, slot.teamB, slot.format)
			switch {
			case errors.Is(err, repositories.ErrExternalMatchMismatch) && em != nil:
				em, created, err = s.replaceStale(gctx, snapshot, slot, em)
			case err != nil:
			case !created && (em.Status != models.ExternalMatchScheduled || snapshot.IsVoided(em.ID)):
				em, created, err = s.replaceStale(gctx, snapshot, slot, em)
			}
			if err != nil {
				return fmt.Errorf("failed to create external match for %s: %w", slot.matchID, err)
			}
			if !created {
				s.metrics.MaterializationRaces.Inc()
				s.logger.Debug("external match already existed",
					slog.String("match_id", slot.matchID),
					slog.String("external_match_id", em.ID))
			}
			out[i] = MaterializedMatch{MatchID: slot.matchID, ExternalMatchID: em.ID, Created: created}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

var errStaleSnapshot = errors.New("playoff changed during materialization")

// replaceStale handles a key that holds an external match the bracket cannot
// use: one that is closed, one a reset voided, or one with other teams. It is
// cancelled and a new match created, but only while the stored playoff is
// still the snapshot being materialized and the slot is still unbound.
func (s *materializerService) replaceStale(ctx context.Context, snapshot *models.Playoff, slot readySlot, stale *models.ExternalMatch) (*models.ExternalMatch, bool, error) {
	fresh, err := s.repo.GetByID(ctx, snapshot.ID)
	if err != nil {
		return nil, false, mapRepositoryError(err)
	}
	m := fresh.Match(slot.matchID)
	if fresh.Version != snapshot.Version || m == nil || m.Status != models.MatchStatusPending || m.ExternalMatchID != "" {
		return nil, false, errStaleSnapshot
	}
	if fresh.MatchByExternalID(stale.ID) != nil {
		return nil, false, fmt.Errorf("external match %s is bound elsewhere in playoff %s", stale.ID, fresh.ID)
	}
	s.logger.Warn("replacing stale external match",
		slog.String("match_id", slot.matchID),
		slog.String("external_match_id", stale.ID),
		slog.String("status", string(stale.Status)),
		slog.Bool("voided", fresh.IsVoided(stale.ID)))
	if err := s.external.CancelMatch(ctx, stale.ID); err != nil {
		return nil, false, fmt.Errorf("failed to cancel stale external match %s: %w", stale.ID, err)
	}
	return s.external.CreateMatch(ctx, slot.key, slot.teamA, slot.teamB, slot.format)
}

func (s *materializerService) MaterializeAll(ctx context.Context) error {
	ids, err := s.repo.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active playoffs: %w", err)
	}

	errs := make([]error, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if _, err := s.MaterializeReady(gctx, id); err != nil {
				s.logger.Error("materializer sweep failed", slog.String("playoff_id", id), slog.Any("error", err))
				errs[i] = fmt.Errorf("playoff %s: %w", id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
