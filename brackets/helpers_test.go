package brackets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// interleavedTable seeds A1, B1, A2, B2, ... onto 1..n.
func interleavedTable(n int) models.SeedingTable {
	var t models.SeedingTable
	for seed := 1; seed <= n; seed++ {
		group, rank := "A", (seed+1)/2
		if seed%2 == 0 {
			group, rank = "B", seed/2
		}
		t.Entries = append(t.Entries, models.SeedingEntry{Group: group, Rank: rank, Seed: seed})
	}
	return t
}

// standingsFor returns one team per table position, named after the position.
func standingsFor(t models.SeedingTable) []models.Standing {
	out := make([]models.Standing, 0, len(t.Entries))
	for _, e := range t.Entries {
		out = append(out, models.Standing{TeamID: fmt.Sprintf("%s%d", e.Group, e.Rank), GroupID: e.Group, Rank: e.Rank})
	}
	return out
}

func generate(t *testing.T, layout models.Layout, seeds int) *models.Playoff {
	t.Helper()
	gen, err := GeneratorFor(layout)
	require.NoError(t, err)
	p, err := gen.GenerateBracket(context.Background(), GenerateBracketParams{
		PlayoffID:    "po-1",
		TournamentID: "t-1",
		Name:         "Playoffs",
		Seeding:      interleavedTable(seeds),
		Now:          testNow,
	})
	require.NoError(t, err)
	return p
}

func seeded(t *testing.T, layout models.Layout, seeds int) *models.Playoff {
	t.Helper()
	p := generate(t, layout, seeds)
	next, err := ApplySeeding(p, standingsFor(interleavedTable(seeds)), testNow)
	require.NoError(t, err)
	return next
}

// schedule binds every ready match the way the materializer does and
// gives it a fake external id.
func schedule(t *testing.T, p *models.Playoff) []string {
	t.Helper()
	var ids []string
	for _, m := range ReadyMatches(p) {
		a, _ := ResolveParticipant(p, m, models.SlotA)
		b, _ := ResolveParticipant(p, m, models.SlotB)
		m.ParticipantA.TeamID = a
		m.ParticipantB.TeamID = b
		m.Status = models.MatchStatusScheduled
		m.ExternalMatchID = "ext-" + m.ID
		ids = append(ids, m.ID)
	}
	require.Empty(t, ValidateInvariants(p))
	return ids
}

func resultFor(m *models.Match, winner models.Slot) ResultInput {
	in := ResultInput{
		MatchID:  m.ID,
		WinnerID: m.ParticipantA.TeamID,
		LoserID:  m.ParticipantB.TeamID,
		ScoreA:   m.Format.GamesToWin(),
		ScoreB:   0,
	}
	if winner == models.SlotB {
		in.WinnerID, in.LoserID = in.LoserID, in.WinnerID
		in.ScoreA, in.ScoreB = 0, m.Format.GamesToWin()
	}
	return in
}

func win(t *testing.T, p *models.Playoff, matchID string, winner models.Slot) (*models.Playoff, *Outcome) {
	t.Helper()
	m := p.Match(matchID)
	require.NotNil(t, m, matchID)
	next, out, err := ApplyResult(p, resultFor(m, winner), testNow)
	require.NoError(t, err)
	require.Empty(t, ValidateTransition(p, next))
	return next, out
}

// playOut schedules and decides matches until nothing is left, side A always winning.
func playOut(t *testing.T, p *models.Playoff) *models.Playoff {
	t.Helper()
	for i := 0; i < 64; i++ {
		schedule(t, p)
		var open []string
		for _, m := range p.Matches() {
			if m.Status == models.MatchStatusScheduled {
				open = append(open, m.ID)
			}
		}
		if len(open) == 0 {
			return p
		}
		for _, id := range open {
			p, _ = win(t, p, id, models.SlotA)
		}
	}
	t.Fatal("bracket did not finish")
	return nil
}
