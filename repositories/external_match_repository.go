package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/google/uuid"
)

var (
	ErrExternalMatchNotFound = errors.New("external match not found")
	ErrExternalMatchMismatch = errors.New("external match exists with different teams")
	ErrExternalMatchClosed   = errors.New("external match is no longer open")
)

// ExternalMatchStore is the concrete match system. CreateMatch is
// create-if-absent on the composite key: a second caller gets the existing
// match back with created=false.
type ExternalMatchStore interface {
	CreateMatch(ctx context.Context, key models.MatchKey, teamA, teamB string, format models.MatchFormat) (*models.ExternalMatch, bool, error)
	GetMatch(ctx context.Context, id string) (*models.ExternalMatch, error)
	CancelMatch(ctx context.Context, id string) error
	FinalizeMatch(ctx context.Context, id string, teamAScore, teamBScore int, at time.Time) (*models.ExternalMatch, error)
}

type postgresExternalMatchRepository struct {
	db SQLExecutor
}

func NewPostgresExternalMatchRepository(db *sql.DB) ExternalMatchStore {
	return &postgresExternalMatchRepository{db: db}
}

const externalMatchColumns = `
	id, playoff_id, bracket_type, round, match_number, team_a, team_b,
	format, status, team_a_score, team_b_score, finalized_at, created_at`

func scanExternalMatch(row interface{ Scan(...interface{}) error }) (*models.ExternalMatch, error) {
	em := &models.ExternalMatch{}
	var (
		scoreA, scoreB sql.NullInt64
		finalizedAt    sql.NullTime
	)
	err := row.Scan(
		&em.ID, &em.Key.PlayoffID, &em.Key.BracketType, &em.Key.Round, &em.Key.MatchNumberInRound,
		&em.TeamA, &em.TeamB, &em.Format, &em.Status, &scoreA, &scoreB, &finalizedAt, &em.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if scoreA.Valid {
		v := int(scoreA.Int64)
		em.TeamAScore = &v
	}
	if scoreB.Valid {
		v := int(scoreB.Int64)
		em.TeamBScore = &v
	}
	if finalizedAt.Valid {
		t := finalizedAt.Time
		em.FinalizedAt = &t
	}
	return em, nil
}

func (r *postgresExternalMatchRepository) CreateMatch(ctx context.Context, key models.MatchKey, teamA, teamB string, format models.MatchFormat) (*models.ExternalMatch, bool, error) {
	query := `
		INSERT INTO external_matches
			(id, playoff_id, bracket_type, round, match_number, team_a, team_b, format, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (playoff_id, bracket_type, round, match_number) WHERE status <> 'canceled'
		DO NOTHING
		RETURNING` + externalMatchColumns

	em, err := scanExternalMatch(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), key.PlayoffID, key.BracketType, key.Round, key.MatchNumberInRound,
		teamA, teamB, format, models.ExternalMatchScheduled, time.Now().UTC(),
	))
	if err == nil {
		return em, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create external match for %+v: %w", key, err)
	}

	// Lost the race: somebody else holds the key.
	existing, err := scanExternalMatch(r.db.QueryRowContext(ctx, `
		SELECT`+externalMatchColumns+`
		FROM external_matches
		WHERE playoff_id = $1 AND bracket_type = $2 AND round = $3 AND match_number = $4
		  AND status <> 'canceled'`,
		key.PlayoffID, key.BracketType, key.Round, key.MatchNumberInRound,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("external match for %+v vanished after conflict: %w", key, ErrExternalMatchNotFound)
		}
		return nil, false, fmt.Errorf("failed to load existing external match for %+v: %w", key, err)
	}
	if existing.TeamA != teamA || existing.TeamB != teamB {
		return existing, false, fmt.Errorf("%w: %s holds %s vs %s", ErrExternalMatchMismatch, existing.ID, existing.TeamA, existing.TeamB)
	}
	return existing, false, nil
}

func (r *postgresExternalMatchRepository) GetMatch(ctx context.Context, id string) (*models.ExternalMatch, error) {
	em, err := scanExternalMatch(r.db.QueryRowContext(ctx,
		`SELECT`+externalMatchColumns+` FROM external_matches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExternalMatchNotFound
		}
		return nil, fmt.Errorf("failed to load external match %s: %w", id, err)
	}
	return em, nil
}

func (r *postgresExternalMatchRepository) CancelMatch(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE external_matches SET status = $1 WHERE id = $2`, models.ExternalMatchCanceled, id)
	if err != nil {
		return fmt.Errorf("failed to cancel external match %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrExternalMatchNotFound)
}

func (r *postgresExternalMatchRepository) FinalizeMatch(ctx context.Context, id string, teamAScore, teamBScore int, at time.Time) (*models.ExternalMatch, error) {
	em, err := scanExternalMatch(r.db.QueryRowContext(ctx, `
		UPDATE external_matches
		SET status = $1, team_a_score = $2, team_b_score = $3, finalized_at = $4
		WHERE id = $5 AND status = $6
		RETURNING`+externalMatchColumns,
		models.ExternalMatchFinalized, teamAScore, teamBScore, at, id, models.ExternalMatchScheduled,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := r.GetMatch(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrExternalMatchClosed
		}
		return nil, fmt.Errorf("failed to finalize external match %s: %w", id, err)
	}
	return em, nil
}
