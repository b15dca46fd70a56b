package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/playoff-engine/models"
)

// DoubleEliminationSeeds is the field size of the double elimination layout:
// 8 upper bracket seeds, 6 direct lower bracket seeds and 4 wildcard seeds.
const DoubleEliminationSeeds = 18

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() BracketGenerator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) GetName() string {
	return "DoubleElimination"
}

// GenerateBracket builds the wildcard, upper, lower and grand final brackets.
//
//	wildcard     15v18, 16v17; winners open lower round 1
//	upper r1     1v8, 4v5, 2v7, 3v6; losers drop to lower round 2
//	upper r2     losers drop to lower round 4
//	upper final  loser drops to the lower final
//	lower r1     wc1 v 9, wc2 v 10, 11v12, 13v14
//	grand final  upper winner v lower winner
func (g *DoubleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*models.Playoff, error) {
	bySeed, err := seedTable(params.Seeding, DoubleEliminationSeeds)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := newLayoutBuilder(bySeed, params.Now)
	eliminated := models.Terminal(models.DestinationEliminated)

	// Wildcard
	for i, pair := range [][2]int{{15, 18}, {16, 17}} {
		m := b.add(fmt.Sprintf("wc-m%d", i+1), models.BracketWildcard, 1, i+1, models.FormatBo1)
		b.seed(m, models.SlotA, pair[0])
		b.seed(m, models.SlotB, pair[1])
		m.LoserGoesTo = eliminated
	}

	// Upper bracket
	for i, pair := range [][2]int{{1, 8}, {4, 5}, {2, 7}, {3, 6}} {
		m := b.add(upperID(1, i+1), models.BracketUpper, 1, i+1, models.FormatBo1)
		b.seed(m, models.SlotA, pair[0])
		b.seed(m, models.SlotB, pair[1])
	}
	for i := 1; i <= 2; i++ {
		b.add(upperID(2, i), models.BracketUpper, 2, i, models.FormatBo3)
	}
	b.add("ub-final", models.BracketUpper, 3, 1, models.FormatBo3)

	// Lower bracket
	for i := 1; i <= 4; i++ {
		b.add(lowerID(1, i), models.BracketLower, 1, i, models.FormatBo1)
		b.add(lowerID(2, i), models.BracketLower, 2, i, models.FormatBo1)
	}
	for i := 1; i <= 2; i++ {
		b.add(lowerID(3, i), models.BracketLower, 3, i, models.FormatBo3)
		b.add(lowerID(4, i), models.BracketLower, 4, i, models.FormatBo3)
	}
	b.add(lowerID(5, 1), models.BracketLower, 5, 1, models.FormatBo3)
	b.add("lb-final", models.BracketLower, 6, 1, models.FormatBo5)

	gf := b.add("grand-final", models.BracketGrandFinal, 1, 1, models.FormatBo5)
	gf.WinnerGoesTo = models.Terminal(models.DestinationChampion)
	gf.LoserGoesTo = models.Terminal(models.DestinationRunnerUp)

	// Wildcard winners meet direct seeds 9 and 10.
	b.winnerTo("wc-m1", lowerID(1, 1), models.SlotA)
	b.winnerTo("wc-m2", lowerID(1, 2), models.SlotA)
	b.seed(b.matches[lowerID(1, 1)], models.SlotB, 9)
	b.seed(b.matches[lowerID(1, 2)], models.SlotB, 10)
	b.seed(b.matches[lowerID(1, 3)], models.SlotA, 11)
	b.seed(b.matches[lowerID(1, 3)], models.SlotB, 12)
	b.seed(b.matches[lowerID(1, 4)], models.SlotA, 13)
	b.seed(b.matches[lowerID(1, 4)], models.SlotB, 14)

	for i := 1; i <= 4; i++ {
		b.winnerTo(upperID(1, i), upperID(2, (i+1)/2), slotFor(i))
		b.loserTo(upperID(1, i), lowerID(2, i), models.SlotB)

		b.winnerTo(lowerID(1, i), lowerID(2, i), models.SlotA)
		b.matches[lowerID(1, i)].LoserGoesTo = eliminated

		b.winnerTo(lowerID(2, i), lowerID(3, (i+1)/2), slotFor(i))
		b.matches[lowerID(2, i)].LoserGoesTo = eliminated
	}
	for i := 1; i <= 2; i++ {
		b.winnerTo(upperID(2, i), "ub-final", slotFor(i))
		b.loserTo(upperID(2, i), lowerID(4, i), models.SlotB)

		b.winnerTo(lowerID(3, i), lowerID(4, i), models.SlotA)
		b.matches[lowerID(3, i)].LoserGoesTo = eliminated

		b.winnerTo(lowerID(4, i), lowerID(5, 1), slotFor(i))
		b.matches[lowerID(4, i)].LoserGoesTo = eliminated
	}
	b.winnerTo("ub-final", "grand-final", models.SlotA)
	b.loserTo("ub-final", "lb-final", models.SlotB)

	b.winnerTo(lowerID(5, 1), "lb-final", models.SlotA)
	b.matches[lowerID(5, 1)].LoserGoesTo = eliminated

	b.winnerTo("lb-final", "grand-final", models.SlotB)
	b.matches["lb-final"].LoserGoesTo = eliminated

	return b.playoff(params, models.LayoutDoubleElimination,
		map[models.BracketType]string{
			models.BracketWildcard:   "Wildcard",
			models.BracketUpper:      "Upper Bracket",
			models.BracketLower:      "Lower Bracket",
			models.BracketGrandFinal: "Grand Final",
		},
		[]models.BracketType{models.BracketWildcard, models.BracketUpper, models.BracketLower, models.BracketGrandFinal}), nil
}

func upperID(round, n int) string { return fmt.Sprintf("ub-r%d-m%d", round, n) }
func lowerID(round, n int) string { return fmt.Sprintf("lb-r%d-m%d", round, n) }

// slotFor maps the i-th feeder (1-based) onto alternating sides.
func slotFor(i int) models.Slot {
	if i%2 == 1 {
		return models.SlotA
	}
	return models.SlotB
}
