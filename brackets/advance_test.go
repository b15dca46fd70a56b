package brackets

import (
	"testing"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyResult_BindsWinnerAndLoser(t *testing.T) {
	p := seeded(t, models.LayoutDoubleElimination, DoubleEliminationSeeds)
	schedule(t, p)

	next, out := win(t, p, "ub-r1-m1", models.SlotA)

	want := []Binding{
		{MatchID: "ub-r2-m1", Slot: models.SlotA, TeamID: "A1"},
		{MatchID: "lb-r2-m1", Slot: models.SlotB, TeamID: "B4"},
	}
	if diff := cmp.Diff(want, out.Bindings); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, out.Idempotent)
	assert.Empty(t, out.NewlyReady)

	m := next.Match("ub-r1-m1")
	assert.Equal(t, models.MatchStatusCompleted, m.Status)
	assert.True(t, m.ParticipantA.IsWinner)
	assert.False(t, m.ParticipantB.IsWinner)
	require.NotNil(t, m.Result)
	assert.Equal(t, testNow, m.Result.CompletedAt)

	// The input snapshot is untouched.
	assert.Equal(t, models.MatchStatusScheduled, p.Match("ub-r1-m1").Status)
	assert.Empty(t, p.Match("ub-r2-m1").ParticipantA.TeamID)
}

func TestApplyResult_ReportsNewlyReady(t *testing.T) {
	p := seeded(t, models.LayoutDoubleElimination, DoubleEliminationSeeds)
	schedule(t, p)

	p, _ = win(t, p, "ub-r1-m1", models.SlotA)
	_, out := win(t, p, "ub-r1-m2", models.SlotB)

	assert.Equal(t, []string{"ub-r2-m1"}, out.NewlyReady)
}

func TestApplyResult_ReplayIsIdempotent(t *testing.T) {
	p := seeded(t, models.LayoutDoubleElimination, DoubleEliminationSeeds)
	schedule(t, p)
	in := resultFor(p.Match("wc-m1"), models.SlotB)

	first, out, err := ApplyResult(p, in, testNow)
	require.NoError(t, err)

	again, replay, err := ApplyResult(first, in, testNow)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.True(t, replay.Idempotent)
	if diff := cmp.Diff(out.Bindings, replay.Bindings); diff != "" {
		t.Errorf("replayed bindings differ (-first +replay):\n%s", diff)
	}
	if diff := cmp.Diff(out.Placements, replay.Placements); diff != "" {
		t.Errorf("replayed placements differ (-first +replay):\n%s", diff)
	}
}

func TestApplyResult_ReplayMatchesFirstCall(t *testing.T) {
	p := seeded(t, models.LayoutDoubleElimination, DoubleEliminationSeeds)
	schedule(t, p)

	opener := resultFor(p.Match("ub-r1-m1"), models.SlotA)
	p, first, err := ApplyResult(p, opener, testNow)
	require.NoError(t, err)
	second := resultFor(p.Match("ub-r1-m2"), models.SlotB)
	p, readied, err := ApplyResult(p, second, testNow.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, []string{"ub-r2-m1"}, readied.NewlyReady)

	// The semi-final is materialized before the events are redelivered.
	schedule(t, p)
	require.Equal(t, models.MatchStatusScheduled, p.Match("ub-r2-m1").Status)

	for _, tc := range []struct {
		in   ResultInput
		want *Outcome
	}{
		{opener, first},
		{second, readied},
	} {
		_, replay, err := ApplyResult(p, tc.in, testNow.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, replay.Idempotent)
		replay.Idempotent = false
		if diff := cmp.Diff(tc.want, replay); diff != "" {
			t.Errorf("replay of %s differs (-first +replay):\n%s", tc.in.MatchID, diff)
		}
	}
}

func TestApplyResult_Rejects(t *testing.T) {
	p := seeded(t, models.LayoutDoubleElimination, DoubleEliminationSeeds)
	schedule(t, p)
	done, _ := win(t, p, "wc-m1", models.SlotA)

	scheduled := done.Match("wc-m2")
	ok := resultFor(scheduled, models.SlotA)

	tests := []struct {
		name string
		in   ResultInput
		want error
	}{
		{
			name: "unknown match",
			in:   ResultInput{MatchID: "nope", WinnerID: "A1", LoserID: "B1", ScoreA: 1},
			want: ErrNotFound,
		},
		{
			name: "different result for completed match",
			in:   resultFor(done.Match("wc-m1"), models.SlotB),
			want: ErrResultConflict,
		},
		{
			name: "match not materialized",
			in:   ResultInput{MatchID: "ub-r2-m1", WinnerID: "A1", LoserID: "B2", ScoreA: 2},
			want: ErrInvalidResult,
		},
		{
			name: "tie",
			in:   ResultInput{MatchID: ok.MatchID, WinnerID: ok.WinnerID, LoserID: ok.LoserID, ScoreA: 1, ScoreB: 1},
			want: ErrInvalidResult,
		},
		{
			name: "team not in match",
			in:   ResultInput{MatchID: ok.MatchID, WinnerID: "A1", LoserID: ok.LoserID, ScoreA: 1},
			want: ErrInvalidResult,
		},
		{
			name: "winner scored less",
			in:   ResultInput{MatchID: ok.MatchID, WinnerID: ok.WinnerID, LoserID: ok.LoserID, ScoreA: 0, ScoreB: 1},
			want: ErrInvalidResult,
		},
		{
			name: "same team twice",
			in:   ResultInput{MatchID: ok.MatchID, WinnerID: ok.WinnerID, LoserID: ok.WinnerID, ScoreA: 1},
			want: ErrInvalidResult,
		},
		{
			name: "negative score",
			in:   ResultInput{MatchID: ok.MatchID, WinnerID: ok.WinnerID, LoserID: ok.LoserID, ScoreA: 1, ScoreB: -1},
			want: ErrInvalidResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, out, err := ApplyResult(done, tt.in, testNow)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, next)
			assert.Nil(t, out)
		})
	}
}

func TestApplyResult_ConflictingDownstreamBinding(t *testing.T) {
	p := seeded(t, models.LayoutDoubleElimination, DoubleEliminationSeeds)
	schedule(t, p)

	// Someone already put a different team into the winner's slot.
	p.Match("ub-r2-m1").ParticipantA.TeamID = "B4"

	_, _, err := ApplyResult(p, resultFor(p.Match("ub-r1-m1"), models.SlotA), testNow)
	assert.ErrorIs(t, err, ErrResultConflict)
}

func TestApplyResult_FinalPlacesChampionAndRunnerUp(t *testing.T) {
	p := seeded(t, models.LayoutSingleElimination, 2)
	schedule(t, p)

	next, out := win(t, p, "ub-r1-m1", models.SlotB)

	assert.Empty(t, out.Bindings)
	assert.ElementsMatch(t, []PlacementChange{
		{TeamID: "B1", Kind: models.DestinationChampion},
		{TeamID: "A1", Kind: models.DestinationRunnerUp},
	}, out.Placements)
	champ, ok := next.Champion()
	require.True(t, ok)
	assert.Equal(t, "B1", champ)
}
