package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
	"github.com/google/uuid"
)

type CreatePlayoffInput struct {
	ID           string               `json:"id"`
	TournamentID string               `json:"tournament_id"`
	Name         string               `json:"name"`
	Layout       models.Layout        `json:"layout"`
	Seeding      *models.SeedingTable `json:"seeding,omitempty"`
}

type PlayoffService interface {
	Create(ctx context.Context, input CreatePlayoffInput) (*models.Playoff, error)
	Get(ctx context.Context, id string) (*models.Playoff, error)
	List(ctx context.Context) ([]*models.Playoff, error)
	SetMatchFormat(ctx context.Context, playoffID, matchID string, format models.MatchFormat) (*models.Match, error)
	ScheduleMatch(ctx context.Context, playoffID, matchID string, at time.Time) (*models.Match, error)
	StartMatch(ctx context.Context, playoffID, matchID string) (*models.Match, error)
	// Validate reports invariant violations of the stored document.
	Validate(ctx context.Context, playoffID string) ([]brackets.Violation, error)
}

type playoffService struct {
	repo          repositories.PlayoffRepository
	defaultTables map[models.Layout]models.SeedingTable
	notifier      BracketNotifier
	metrics       *Metrics
	logger        *slog.Logger
	maxAttempts   int
	now           func() time.Time
}

func NewPlayoffService(
	repo repositories.PlayoffRepository,
	defaultTables map[models.Layout]models.SeedingTable,
	notifier BracketNotifier,
	metrics *Metrics,
	logger *slog.Logger,
	maxAttempts int,
) PlayoffService {
	return &playoffService{
		repo:          repo,
		defaultTables: defaultTables,
		notifier:      notifierOrNoop(notifier),
		metrics:       metrics,
		logger:        logger,
		maxAttempts:   maxAttempts,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *playoffService) Create(ctx context.Context, input CreatePlayoffInput) (*models.Playoff, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if input.TournamentID == "" {
		return nil, fmt.Errorf("%w: tournament_id is required", ErrValidationFailed)
	}
	if input.Layout == "" {
		input.Layout = models.LayoutDoubleElimination
	}
	gen, err := brackets.GeneratorFor(input.Layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	var table models.SeedingTable
	switch {
	case input.Seeding != nil:
		table = *input.Seeding
	default:
		t, ok := s.defaultTables[input.Layout]
		if !ok {
			return nil, fmt.Errorf("%w: no seeding table given and no default for layout %s", ErrValidationFailed, input.Layout)
		}
		table = t
	}
	if input.ID == "" {
		input.ID = uuid.NewString()
	}

	p, err := gen.GenerateBracket(ctx, brackets.GenerateBracketParams{
		PlayoffID:    input.ID,
		TournamentID: input.TournamentID,
		Name:         input.Name,
		Seeding:      table,
		Now:          s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	if vs := brackets.ValidateInvariants(p); len(vs) > 0 {
		return nil, brackets.ViolationError(vs)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, mapRepositoryError(err)
	}
	s.logger.Info("playoff created",
		slog.String("playoff_id", p.ID),
		slog.String("tournament_id", p.TournamentID),
		slog.String("layout", string(p.Layout)),
		slog.String("generator", gen.GetName()),
		slog.Int("matches", len(p.Matches())))
	return p, nil
}

func (s *playoffService) Get(ctx context.Context, id string) (*models.Playoff, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return p, nil
}

func (s *playoffService) List(ctx context.Context) ([]*models.Playoff, error) {
	ps, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list playoffs: %w", err)
	}
	return ps, nil
}

func (s *playoffService) SetMatchFormat(ctx context.Context, playoffID, matchID string, format models.MatchFormat) (*models.Match, error) {
	if _, err := models.ParseMatchFormat(string(format)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return s.editMatch(ctx, "set_format", playoffID, matchID, func(m *models.Match) error {
		if m.IsCompleted() {
			return fmt.Errorf("%w: match %q is already completed", ErrInvalidTransition, m.ID)
		}
		if m.Format == format {
			return errUnchanged
		}
		if m.ExternalMatchID != "" {
			return fmt.Errorf("%w: match %q is already scheduled as %s in the match system", ErrInvalidTransition, m.ID, m.ExternalMatchID)
		}
		m.Format = format
		return nil
	})
}

func (s *playoffService) ScheduleMatch(ctx context.Context, playoffID, matchID string, at time.Time) (*models.Match, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("%w: scheduled time is required", ErrValidationFailed)
	}
	at = at.UTC()
	return s.editMatch(ctx, "schedule", playoffID, matchID, func(m *models.Match) error {
		if m.IsCompleted() {
			return fmt.Errorf("%w: match %q is already completed", ErrInvalidTransition, m.ID)
		}
		if m.ScheduledFor != nil && m.ScheduledFor.Equal(at) {
			return errUnchanged
		}
		m.ScheduledFor = &at
		return nil
	})
}

func (s *playoffService) StartMatch(ctx context.Context, playoffID, matchID string) (*models.Match, error) {
	return s.editMatch(ctx, "start", playoffID, matchID, func(m *models.Match) error {
		switch m.Status {
		case models.MatchStatusInProgress:
			return errUnchanged
		case models.MatchStatusScheduled:
			m.Status = models.MatchStatusInProgress
			return nil
		}
		return fmt.Errorf("%w: match %q is %s, only scheduled matches can start", ErrInvalidTransition, m.ID, m.Status)
	})
}

var errUnchanged = errors.New("unchanged")

// editMatch applies fn to one match and saves. fn returning errUnchanged
// skips the write and returns the stored match.
func (s *playoffService) editMatch(ctx context.Context, op, playoffID, matchID string, fn func(m *models.Match) error) (*models.Match, error) {
	start := time.Now()
	defer s.metrics.observe(op, start)

	var unchanged bool
	p, changed, err := mutatePlayoff(ctx, s.repo, s.metrics, s.maxAttempts, playoffID, func(current *models.Playoff) (*models.Playoff, error) {
		unchanged = false
		next, err := matchMutation(matchID, func(p *models.Playoff, m *models.Match) error {
			if err := fn(m); err != nil {
				return err
			}
			now := s.now()
			m.UpdatedAt = now
			p.UpdatedAt = now
			return nil
		})(current)
		if errors.Is(err, errUnchanged) {
			unchanged = true
			return current, nil
		}
		return next, err
	})
	if err != nil {
		return nil, err
	}
	m := p.Match(matchID)
	if m == nil {
		return nil, fmt.Errorf("%w: match %q in playoff %q", ErrNotFound, matchID, playoffID)
	}
	if changed && !unchanged {
		s.logger.Info("match updated",
			slog.String("operation", op),
			slog.String("playoff_id", playoffID),
			slog.String("match_id", matchID),
			slog.Int64("version", p.Version))
		s.notifier.BracketUpdated(p)
	}
	out := *m
	return &out, nil
}

func (s *playoffService) Validate(ctx context.Context, playoffID string) ([]brackets.Violation, error) {
	p, err := s.repo.GetByID(ctx, playoffID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return brackets.ValidateInvariants(p), nil
}
