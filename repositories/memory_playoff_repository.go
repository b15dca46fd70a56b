package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/Dosada05/playoff-engine/models"
)

type storedPlayoff struct {
	version  int64
	finished bool
	doc      []byte
}

// memoryPlayoffRepository keeps encoded documents so callers never share
// mutable state with the store.
type memoryPlayoffRepository struct {
	mu       sync.RWMutex
	playoffs map[string]storedPlayoff
	order    []string
}

func NewMemoryPlayoffRepository() PlayoffRepository {
	return &memoryPlayoffRepository{playoffs: make(map[string]storedPlayoff)}
}

func (r *memoryPlayoffRepository) Create(ctx context.Context, p *models.Playoff) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.playoffs[p.ID]; ok {
		return ErrPlayoffExists
	}
	p.Version = 1
	doc, err := encodePlayoff(p)
	if err != nil {
		return err
	}
	r.playoffs[p.ID] = storedPlayoff{version: 1, finished: isFinished(p), doc: doc}
	r.order = append(r.order, p.ID)
	return nil
}

func (r *memoryPlayoffRepository) GetByID(ctx context.Context, id string) (*models.Playoff, error) {
	r.mu.RLock()
	stored, ok := r.playoffs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrPlayoffNotFound
	}
	return decodePlayoff(stored.doc, stored.version)
}

func (r *memoryPlayoffRepository) List(ctx context.Context) ([]*models.Playoff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Playoff, 0, len(r.order))
	for _, id := range r.order {
		stored := r.playoffs[id]
		p, err := decodePlayoff(stored.doc, stored.version)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryPlayoffRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, stored := range r.playoffs {
		if !stored.finished {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memoryPlayoffRepository) Save(ctx context.Context, p *models.Playoff, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.playoffs[p.ID]
	if !ok {
		return ErrPlayoffNotFound
	}
	if stored.version != expectedVersion {
		return ErrVersionConflict
	}
	p.Version = expectedVersion + 1
	doc, err := encodePlayoff(p)
	if err != nil {
		p.Version = expectedVersion
		return err
	}
	r.playoffs[p.ID] = storedPlayoff{version: p.Version, finished: isFinished(p), doc: doc}
	return nil
}
