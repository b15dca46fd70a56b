package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/lib/pq"
)

var (
	ErrPlayoffNotFound = errors.New("playoff not found")
	ErrPlayoffExists   = errors.New("playoff already exists")
	ErrVersionConflict = errors.New("playoff was modified concurrently")
)

// PlayoffRepository stores one versioned document per playoff.
// Save is a conditional write: it succeeds only if the stored version
// equals expectedVersion, and it bumps p.Version on success.
type PlayoffRepository interface {
	Create(ctx context.Context, p *models.Playoff) error
	GetByID(ctx context.Context, id string) (*models.Playoff, error)
	List(ctx context.Context) ([]*models.Playoff, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
	Save(ctx context.Context, p *models.Playoff, expectedVersion int64) error
}

type postgresPlayoffRepository struct {
	db SQLExecutor
}

func NewPostgresPlayoffRepository(db *sql.DB) PlayoffRepository {
	return &postgresPlayoffRepository{db: db}
}

func (r *postgresPlayoffRepository) Create(ctx context.Context, p *models.Playoff) error {
	p.Version = 1
	doc, err := encodePlayoff(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO playoffs (id, tournament_id, version, finished, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`

	_, err = r.db.ExecContext(ctx, query, p.ID, p.TournamentID, p.Version, isFinished(p), doc, p.CreatedAt)
	return r.handlePlayoffError(err)
}

func (r *postgresPlayoffRepository) GetByID(ctx context.Context, id string) (*models.Playoff, error) {
	query := `SELECT version, document FROM playoffs WHERE id = $1`

	var (
		version int64
		doc     []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&version, &doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayoffNotFound
		}
		return nil, fmt.Errorf("failed to load playoff %s: %w", id, err)
	}
	return decodePlayoff(doc, version)
}

func (r *postgresPlayoffRepository) List(ctx context.Context) ([]*models.Playoff, error) {
	query := `SELECT version, document FROM playoffs ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list playoffs: %w", err)
	}
	defer rows.Close()

	var out []*models.Playoff
	for rows.Next() {
		var (
			version int64
			doc     []byte
		)
		if err := rows.Scan(&version, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan playoff row: %w", err)
		}
		p, err := decodePlayoff(doc, version)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating playoff rows: %w", err)
	}
	return out, nil
}

func (r *postgresPlayoffRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM playoffs WHERE finished = FALSE ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active playoffs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan playoff id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresPlayoffRepository) Save(ctx context.Context, p *models.Playoff, expectedVersion int64) error {
	next := expectedVersion + 1
	p.Version = next
	doc, err := encodePlayoff(p)
	if err != nil {
		p.Version = expectedVersion
		return err
	}
	query := `
		UPDATE playoffs
		SET document = $1, version = $2, finished = $3, updated_at = $4
		WHERE id = $5 AND version = $6`

	result, err := r.db.ExecContext(ctx, query, doc, next, isFinished(p), time.Now().UTC(), p.ID, expectedVersion)
	if err != nil {
		p.Version = expectedVersion
		return fmt.Errorf("failed to save playoff %s: %w", p.ID, r.handlePlayoffError(err))
	}
	if err := checkAffectedRows(result, ErrVersionConflict); err != nil {
		p.Version = expectedVersion
		if errors.Is(err, ErrVersionConflict) {
			return r.conflictOrMissing(ctx, p.ID)
		}
		return err
	}
	return nil
}

// conflictOrMissing tells a stale version apart from a deleted row.
func (r *postgresPlayoffRepository) conflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM playoffs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check playoff %s: %w", id, err)
	}
	if !exists {
		return ErrPlayoffNotFound
	}
	return ErrVersionConflict
}

func (r *postgresPlayoffRepository) handlePlayoffError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "playoffs_pkey" {
		return ErrPlayoffExists
	}
	return err
}
