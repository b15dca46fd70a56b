package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
)

type SeedingService interface {
	// Seed binds group-stage standings to the seed slots and materializes
	// every match that became ready.
	Seed(ctx context.Context, playoffID string, standings []models.Standing) (*models.Playoff, error)
}

type seedingService struct {
	repo         repositories.PlayoffRepository
	materializer MaterializerService
	notifier     BracketNotifier
	metrics      *Metrics
	logger       *slog.Logger
	maxAttempts  int
	now          func() time.Time
}

func NewSeedingService(
	repo repositories.PlayoffRepository,
	materializer MaterializerService,
	notifier BracketNotifier,
	metrics *Metrics,
	logger *slog.Logger,
	maxAttempts int,
) SeedingService {
	return &seedingService{
		repo:         repo,
		materializer: materializer,
		notifier:     notifierOrNoop(notifier),
		metrics:      metrics,
		logger:       logger,
		maxAttempts:  maxAttempts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *seedingService) Seed(ctx context.Context, playoffID string, standings []models.Standing) (*models.Playoff, error) {
	start := time.Now()
	defer s.metrics.observe("seed", start)

	next, _, err := mutatePlayoff(ctx, s.repo, s.metrics, s.maxAttempts, playoffID, func(current *models.Playoff) (*models.Playoff, error) {
		return brackets.ApplySeeding(current, standings, s.now())
	})
	if err != nil {
		s.logger.Warn("seeding rejected", slog.String("playoff_id", playoffID), slog.Any("error", err))
		return nil, err
	}
	s.logger.Info("playoff seeded",
		slog.String("playoff_id", playoffID),
		slog.Int("teams", len(standings)),
		slog.Int64("version", next.Version))
	s.notifier.BracketUpdated(next)

	if s.materializer == nil {
		return next, nil
	}
	if _, err := s.materializer.MaterializeReady(ctx, playoffID); err != nil {
		// Seeding is committed; the sweep retries materialization.
		s.logger.Error("materialization after seeding failed", slog.String("playoff_id", playoffID), slog.Any("error", err))
		return next, nil
	}
	p, err := s.repo.GetByID(ctx, playoffID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return p, nil
}
