package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/google/uuid"
)

type memoryExternalMatchRepository struct {
	mu      sync.Mutex
	byID    map[string]*models.ExternalMatch
	byKey   map[models.MatchKey]string
	creates int
}

// MemoryExternalMatchStore is the in-process match system used by the
// memory storage driver and by tests.
type MemoryExternalMatchStore interface {
	ExternalMatchStore
	// Created reports how many matches were actually inserted.
	Created() int
}

func NewMemoryExternalMatchRepository() MemoryExternalMatchStore {
	return &memoryExternalMatchRepository{
		byID:  make(map[string]*models.ExternalMatch),
		byKey: make(map[models.MatchKey]string),
	}
}

func (r *memoryExternalMatchRepository) CreateMatch(ctx context.Context, key models.MatchKey, teamA, teamB string, format models.MatchFormat) (*models.ExternalMatch, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		existing := *r.byID[id]
		if existing.TeamA != teamA || existing.TeamB != teamB {
			return &existing, false, fmt.Errorf("%w: %s holds %s vs %s", ErrExternalMatchMismatch, existing.ID, existing.TeamA, existing.TeamB)
		}
		return &existing, false, nil
	}

	em := &models.ExternalMatch{
		ID:        uuid.NewString(),
		Key:       key,
		TeamA:     teamA,
		TeamB:     teamB,
		Format:    format,
		Status:    models.ExternalMatchScheduled,
		CreatedAt: time.Now().UTC(),
	}
	r.byID[em.ID] = em
	r.byKey[key] = em.ID
	r.creates++
	out := *em
	return &out, true, nil
}

func (r *memoryExternalMatchRepository) GetMatch(ctx context.Context, id string) (*models.ExternalMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	em, ok := r.byID[id]
	if !ok {
		return nil, ErrExternalMatchNotFound
	}
	out := *em
	return &out, nil
}

func (r *memoryExternalMatchRepository) CancelMatch(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	em, ok := r.byID[id]
	if !ok {
		return ErrExternalMatchNotFound
	}
	em.Status = models.ExternalMatchCanceled
	if r.byKey[em.Key] == id {
		delete(r.byKey, em.Key)
	}
	return nil
}

func (r *memoryExternalMatchRepository) FinalizeMatch(ctx context.Context, id string, teamAScore, teamBScore int, at time.Time) (*models.ExternalMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	em, ok := r.byID[id]
	if !ok {
		return nil, ErrExternalMatchNotFound
	}
	if em.Status != models.ExternalMatchScheduled {
		return nil, ErrExternalMatchClosed
	}
	a, b := teamAScore, teamBScore
	em.TeamAScore, em.TeamBScore = &a, &b
	em.FinalizedAt = &at
	em.Status = models.ExternalMatchFinalized
	out := *em
	return &out, nil
}

func (r *memoryExternalMatchRepository) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}
