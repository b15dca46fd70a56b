package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayoffService_CreateDefaults(t *testing.T) {
	env := newTestEnv(t)

	p := env.createPlayoff(t, "")

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.LayoutDoubleElimination, p.Layout)
	assert.Equal(t, int64(1), p.Version)
	assert.False(t, p.Seeded)
	assert.Len(t, p.Matches(), 24)

	list, err := env.playoffs.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}

func TestPlayoffService_CreateWithExplicitTable(t *testing.T) {
	env := newTestEnv(t)
	table := interleavedTable(5)

	p, err := env.playoffs.Create(context.Background(), services.CreatePlayoffInput{
		ID:           "po-small",
		TournamentID: "t-1",
		Name:         "Small",
		Layout:       models.LayoutSingleElimination,
		Seeding:      &table,
	})
	require.NoError(t, err)
	assert.Equal(t, "po-small", p.ID)
	assert.Len(t, p.Matches(), 4)
}

func TestPlayoffService_CreateRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	broken := interleavedTable(4)
	broken.Entries = broken.Entries[1:]

	tests := []struct {
		name  string
		input services.CreatePlayoffInput
		want  error
	}{
		{"missing name", services.CreatePlayoffInput{TournamentID: "t-1", Name: "  "}, services.ErrValidationFailed},
		{"missing tournament", services.CreatePlayoffInput{Name: "Playoffs"}, services.ErrValidationFailed},
		{"unknown layout", services.CreatePlayoffInput{TournamentID: "t-1", Name: "Playoffs", Layout: "swiss"}, services.ErrValidationFailed},
		{"broken table", services.CreatePlayoffInput{TournamentID: "t-1", Name: "Playoffs", Layout: models.LayoutSingleElimination, Seeding: &broken}, services.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.playoffs.Create(ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := env.playoffs.Create(ctx, services.CreatePlayoffInput{ID: "dup", TournamentID: "t-1", Name: "One"})
	require.NoError(t, err)
	_, err = env.playoffs.Create(ctx, services.CreatePlayoffInput{ID: "dup", TournamentID: "t-1", Name: "Two"})
	assert.ErrorIs(t, err, services.ErrAlreadyExists)
}

func TestPlayoffService_GetMissing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.playoffs.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestPlayoffService_SetMatchFormat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createPlayoff(t, models.LayoutDoubleElimination)

	m, err := env.playoffs.SetMatchFormat(ctx, p.ID, "lb-r1-m1", models.FormatBo3)
	require.NoError(t, err)
	assert.Equal(t, models.FormatBo3, m.Format)
	assert.Equal(t, int64(2), env.load(t, p.ID).Version)

	// Same format again does not write.
	_, err = env.playoffs.SetMatchFormat(ctx, p.ID, "lb-r1-m1", models.FormatBo3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), env.load(t, p.ID).Version)

	_, err = env.playoffs.SetMatchFormat(ctx, p.ID, "lb-r1-m1", "bo7")
	assert.ErrorIs(t, err, services.ErrValidationFailed)
	_, err = env.playoffs.SetMatchFormat(ctx, p.ID, "missing", models.FormatBo1)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestPlayoffService_MatchLifecycleEdits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seededPlayoff(t, models.LayoutSingleElimination)

	_, err := env.playoffs.StartMatch(ctx, p.ID, "ub-r2-m1")
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "pending matches cannot start")

	m, err := env.playoffs.StartMatch(ctx, p.ID, "ub-r1-m1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, m.Status)
	version := env.load(t, p.ID).Version

	_, err = env.playoffs.StartMatch(ctx, p.ID, "ub-r1-m1")
	require.NoError(t, err)
	assert.Equal(t, version, env.load(t, p.ID).Version)

	at := time.Date(2026, 6, 1, 19, 30, 0, 0, time.FixedZone("CEST", 2*60*60))
	m, err = env.playoffs.ScheduleMatch(ctx, p.ID, "ub-r2-m1", at)
	require.NoError(t, err)
	require.NotNil(t, m.ScheduledFor)
	assert.True(t, at.Equal(*m.ScheduledFor))
	assert.Equal(t, time.UTC, m.ScheduledFor.Location())

	_, err = env.playoffs.ScheduleMatch(ctx, p.ID, "ub-r2-m1", time.Time{})
	assert.ErrorIs(t, err, services.ErrValidationFailed)

	// The match system already holds these matches in their old format.
	for _, id := range []string{"ub-r1-m1", "ub-r1-m2"} {
		_, err = env.playoffs.SetMatchFormat(ctx, p.ID, id, models.FormatBo3)
		assert.ErrorIs(t, err, services.ErrInvalidTransition, id)
	}
	_, err = env.playoffs.SetMatchFormat(ctx, p.ID, "ub-r1-m2", models.FormatBo1)
	require.NoError(t, err, "an unchanged format is not an edit")
	m, err = env.playoffs.SetMatchFormat(ctx, p.ID, "ub-r2-m1", models.FormatBo3)
	require.NoError(t, err)
	assert.Equal(t, models.FormatBo3, m.Format)

	env.complete(t, p.ID, "ub-r1-m1", true)
	_, err = env.playoffs.SetMatchFormat(ctx, p.ID, "ub-r1-m1", models.FormatBo5)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	_, err = env.playoffs.ScheduleMatch(ctx, p.ID, "ub-r1-m1", at)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	vs, err := env.playoffs.Validate(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, vs)
}
