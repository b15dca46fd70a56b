package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/playoff-engine/models"
)

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

func encodePlayoff(p *models.Playoff) ([]byte, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode playoff %s: %w", p.ID, err)
	}
	return doc, nil
}

func decodePlayoff(doc []byte, version int64) (*models.Playoff, error) {
	p := &models.Playoff{}
	if err := json.Unmarshal(doc, p); err != nil {
		return nil, fmt.Errorf("failed to decode playoff document: %w", err)
	}
	if p.Placements == nil {
		p.Placements = make(map[string]models.Placement)
	}
	p.Version = version
	return p, nil
}

func isFinished(p *models.Playoff) bool {
	_, ok := p.Champion()
	return ok
}
