package brackets

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/playoff-engine/models"
)

type GenerateBracketParams struct {
	PlayoffID    string
	TournamentID string
	Name         string
	Seeding      models.SeedingTable
	Now          time.Time
}

// BracketGenerator builds the empty match graph of a playoff. Seed slots carry
// their group position from the seeding table; teams are bound later.
type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) (*models.Playoff, error)

	GetName() string
}

func GeneratorFor(layout models.Layout) (BracketGenerator, error) {
	switch layout {
	case models.LayoutSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.LayoutDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	}
	return nil, fmt.Errorf("unsupported playoff layout %q", layout)
}

// seedTable validates the table against the seed range of a layout.
func seedTable(table models.SeedingTable, seeds int) (map[int]models.SeedingEntry, error) {
	bySeed := make(map[int]models.SeedingEntry, len(table.Entries))
	positions := make(map[standingKey]int, len(table.Entries))
	for _, e := range table.Entries {
		if e.Seed < 1 || e.Seed > seeds {
			return nil, fmt.Errorf("seeding table: seed %d outside 1..%d", e.Seed, seeds)
		}
		if _, dup := bySeed[e.Seed]; dup {
			return nil, fmt.Errorf("seeding table: seed %d assigned twice", e.Seed)
		}
		k := standingKey{e.Group, e.Rank}
		if other, dup := positions[k]; dup {
			return nil, fmt.Errorf("seeding table: %s#%d used for seeds %d and %d", e.Group, e.Rank, other, e.Seed)
		}
		bySeed[e.Seed] = e
		positions[k] = e.Seed
	}
	var missing []int
	for s := 1; s <= seeds; s++ {
		if _, ok := bySeed[s]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("seeding table: seeds %v have no group position", missing)
	}
	return bySeed, nil
}

// layoutBuilder accumulates matches and links them by ID.
type layoutBuilder struct {
	now     time.Time
	bySeed  map[int]models.SeedingEntry
	matches map[string]*models.Match
	order   []string
}

func newLayoutBuilder(bySeed map[int]models.SeedingEntry, now time.Time) *layoutBuilder {
	return &layoutBuilder{
		now:     now,
		bySeed:  bySeed,
		matches: make(map[string]*models.Match),
	}
}

func (b *layoutBuilder) add(id string, bt models.BracketType, round, number int, format models.MatchFormat) *models.Match {
	m := &models.Match{
		ID:                 id,
		BracketType:        bt,
		Round:              round,
		MatchNumberInRound: number,
		Format:             format,
		Status:             models.MatchStatusPending,
		ParticipantA:       models.NewParticipant(models.TBDSource{Description: "TBD"}),
		ParticipantB:       models.NewParticipant(models.TBDSource{Description: "TBD"}),
		UpdatedAt:          b.now,
	}
	b.matches[id] = m
	b.order = append(b.order, id)
	return m
}

func (b *layoutBuilder) seed(m *models.Match, slot models.Slot, seed int) {
	e := b.bySeed[seed]
	*m.Participant(slot) = models.NewParticipant(models.SeedSource{Seed: seed, Group: e.Group, Rank: e.Rank})
}

// winnerTo and loserTo set the destination and the matching source on the target slot.
func (b *layoutBuilder) winnerTo(fromID, toID string, slot models.Slot) {
	b.matches[fromID].WinnerGoesTo = models.ToMatch(toID, slot)
	*b.matches[toID].Participant(slot) = models.NewParticipant(models.WinnerOfSource{MatchID: fromID})
}

func (b *layoutBuilder) loserTo(fromID, toID string, slot models.Slot) {
	b.matches[fromID].LoserGoesTo = models.ToMatch(toID, slot)
	*b.matches[toID].Participant(slot) = models.NewParticipant(models.LoserOfSource{MatchID: fromID})
}

func (b *layoutBuilder) playoff(params GenerateBracketParams, layout models.Layout, names map[models.BracketType]string, order []models.BracketType) *models.Playoff {
	grouped := make(map[models.BracketType][]models.Match)
	for _, id := range b.order {
		m := b.matches[id]
		grouped[m.BracketType] = append(grouped[m.BracketType], *m)
	}
	p := &models.Playoff{
		ID:           params.PlayoffID,
		TournamentID: params.TournamentID,
		Name:         params.Name,
		Layout:       layout,
		Placements:   make(map[string]models.Placement),
		CreatedAt:    params.Now,
		UpdatedAt:    params.Now,
	}
	for _, bt := range order {
		ms := grouped[bt]
		if len(ms) == 0 {
			continue
		}
		sort.SliceStable(ms, func(i, j int) bool {
			if ms[i].Round != ms[j].Round {
				return ms[i].Round < ms[j].Round
			}
			return ms[i].MatchNumberInRound < ms[j].MatchNumberInRound
		})
		p.Brackets = append(p.Brackets, models.Bracket{Type: bt, Name: names[bt], Matches: ms})
	}
	return p
}
