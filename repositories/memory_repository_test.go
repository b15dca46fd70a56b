package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlayoff(id string) *models.Playoff {
	return &models.Playoff{
		ID:           id,
		TournamentID: "t-1",
		Name:         "Playoffs",
		Layout:       models.LayoutSingleElimination,
		Brackets: []models.Bracket{{
			Type: models.BracketUpper,
			Matches: []models.Match{{
				ID:           "ub-r1-m1",
				BracketType:  models.BracketUpper,
				Round:        1,
				Format:       models.FormatBo3,
				Status:       models.MatchStatusPending,
				ParticipantA: models.NewParticipant(models.SeedSource{Seed: 1, Group: "A", Rank: 1, TeamID: "alpha"}),
				ParticipantB: models.NewParticipant(models.WinnerOfSource{MatchID: "wc-m1"}),
				WinnerGoesTo: models.Terminal(models.DestinationChampion),
				LoserGoesTo:  models.Terminal(models.DestinationRunnerUp),
			}},
		}},
		Placements: map[string]models.Placement{},
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMemoryPlayoffRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPlayoffRepository()

	p := testPlayoff("po-1")
	require.NoError(t, repo.Create(ctx, p))
	assert.Equal(t, int64(1), p.Version)
	assert.ErrorIs(t, repo.Create(ctx, testPlayoff("po-1")), ErrPlayoffExists)

	got, err := repo.GetByID(ctx, "po-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	m := got.Match("ub-r1-m1")
	require.NotNil(t, m)
	assert.Equal(t, models.WinnerOfSource{MatchID: "wc-m1"}, m.ParticipantB.Source)
	assert.Equal(t, "alpha", m.ParticipantA.TeamID)

	// Mutating a loaded copy does not touch the store.
	m.Status = models.MatchStatusCompleted
	again, err := repo.GetByID(ctx, "po-1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPending, again.Match("ub-r1-m1").Status)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrPlayoffNotFound)
}

func TestMemoryPlayoffRepository_SaveIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPlayoffRepository()
	require.NoError(t, repo.Create(ctx, testPlayoff("po-1")))

	first, err := repo.GetByID(ctx, "po-1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "po-1")
	require.NoError(t, err)

	first.Name = "Finals"
	require.NoError(t, repo.Save(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Name = "Lost update"
	assert.ErrorIs(t, repo.Save(ctx, second, 1), ErrVersionConflict)
	assert.Equal(t, int64(1), second.Version)

	stored, err := repo.GetByID(ctx, "po-1")
	require.NoError(t, err)
	assert.Equal(t, "Finals", stored.Name)

	assert.ErrorIs(t, repo.Save(ctx, testPlayoff("ghost"), 1), ErrPlayoffNotFound)
}

func TestMemoryPlayoffRepository_ListActiveIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPlayoffRepository()

	require.NoError(t, repo.Create(ctx, testPlayoff("po-b")))
	require.NoError(t, repo.Create(ctx, testPlayoff("po-a")))
	done := testPlayoff("po-done")
	done.Placements["alpha"] = models.Placement{Kind: models.DestinationChampion, MatchID: "ub-r1-m1"}
	require.NoError(t, repo.Create(ctx, done))

	ids, err := repo.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"po-a", "po-b"}, ids)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "po-b", all[0].ID)
}

func TestMemoryExternalMatchRepository_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryExternalMatchRepository()
	key := models.MatchKey{PlayoffID: "po-1", BracketType: models.BracketUpper, Round: 1, MatchNumberInRound: 1}

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			em, _, err := store.CreateMatch(ctx, key, "alpha", "beta", models.FormatBo3)
			if assert.NoError(t, err) {
				ids[i] = em.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.Created())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	_, _, err := store.CreateMatch(ctx, key, "alpha", "gamma", models.FormatBo3)
	assert.ErrorIs(t, err, ErrExternalMatchMismatch)
}

func TestMemoryExternalMatchRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryExternalMatchRepository()
	key := models.MatchKey{PlayoffID: "po-1", BracketType: models.BracketLower, Round: 2, MatchNumberInRound: 1}

	em, created, err := store.CreateMatch(ctx, key, "alpha", "beta", models.FormatBo1)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, models.ExternalMatchScheduled, em.Status)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	final, err := store.FinalizeMatch(ctx, em.ID, 0, 1, at)
	require.NoError(t, err)
	ev, ok := models.CompletionEventOf(final)
	require.True(t, ok)
	assert.Equal(t, models.CompletionEvent{ExternalMatchID: em.ID, TeamAScore: 0, TeamBScore: 1, FinalizedAt: at}, ev)

	_, err = store.FinalizeMatch(ctx, em.ID, 1, 0, at)
	assert.ErrorIs(t, err, ErrExternalMatchClosed)

	// Cancelling frees the key for a fresh match.
	require.NoError(t, store.CancelMatch(ctx, em.ID))
	fresh, created, err := store.CreateMatch(ctx, key, "alpha", "beta", models.FormatBo1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, em.ID, fresh.ID)

	old, err := store.GetMatch(ctx, em.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExternalMatchCanceled, old.Status)

	_, err = store.GetMatch(ctx, "missing")
	assert.ErrorIs(t, err, ErrExternalMatchNotFound)
	assert.ErrorIs(t, store.CancelMatch(ctx, "missing"), ErrExternalMatchNotFound)
}
