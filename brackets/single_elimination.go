package brackets

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Dosada05/playoff-engine/models"
)

type node struct {
	seed           int
	sourceMatchUID string
	isBye          bool
}

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket lays out one upper bracket for every seed in the table.
// Seeds are paired in standard order (1 vs N, 2 vs N-1, folded) and when the
// field is not a power of two the top seeds skip round one: their seed slot
// sits directly in round two.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*models.Playoff, error) {
	n := len(params.Seeding.Entries)
	if n < 2 {
		return nil, errors.New("not enough seeds to generate a single elimination bracket (minimum 2)")
	}
	bySeed, err := seedTable(params.Seeding, n)
	if err != nil {
		return nil, err
	}

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	sizeOfFullBracket := 1 << uint(numRounds)

	b := newLayoutBuilder(bySeed, params.Now)

	currentRoundNodes := make([]node, 0, sizeOfFullBracket)
	for _, seed := range seedOrder(sizeOfFullBracket) {
		if seed > n {
			currentRoundNodes = append(currentRoundNodes, node{isBye: true})
			continue
		}
		currentRoundNodes = append(currentRoundNodes, node{seed: seed})
	}

	var finalUID string
	for r := 1; r <= numRounds; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nextRoundNodes := make([]node, 0, len(currentRoundNodes)/2)
		matchesInThisRound := 0

		for i := 0; i < len(currentRoundNodes); i += 2 {
			node1, node2 := currentRoundNodes[i], currentRoundNodes[i+1]

			switch {
			case node1.isBye && node2.isBye:
				return nil, fmt.Errorf("internal error: two byes met in round %d", r)
			case node2.isBye:
				nextRoundNodes = append(nextRoundNodes, node1)
				continue
			case node1.isBye:
				nextRoundNodes = append(nextRoundNodes, node2)
				continue
			}

			matchesInThisRound++
			uid := fmt.Sprintf("ub-r%d-m%d", r, matchesInThisRound)
			format := models.FormatBo1
			if r == numRounds {
				format = models.FormatBo3
			}
			b.add(uid, models.BracketUpper, r, matchesInThisRound, format)
			g.place(b, node1, uid, models.SlotA)
			g.place(b, node2, uid, models.SlotB)
			b.matches[uid].LoserGoesTo = models.Terminal(models.DestinationEliminated)

			nextRoundNodes = append(nextRoundNodes, node{sourceMatchUID: uid})
			finalUID = uid
		}
		currentRoundNodes = nextRoundNodes
	}

	if len(currentRoundNodes) != 1 || finalUID == "" {
		return nil, fmt.Errorf("internal error: bracket for %d seeds did not converge to one final", n)
	}
	final := b.matches[finalUID]
	final.WinnerGoesTo = models.Terminal(models.DestinationChampion)
	final.LoserGoesTo = models.Terminal(models.DestinationRunnerUp)

	return b.playoff(params, models.LayoutSingleElimination,
		map[models.BracketType]string{models.BracketUpper: "Playoff Bracket"},
		[]models.BracketType{models.BracketUpper}), nil
}

func (g *SingleEliminationGenerator) place(b *layoutBuilder, n node, uid string, slot models.Slot) {
	if n.sourceMatchUID != "" {
		b.winnerTo(n.sourceMatchUID, uid, slot)
		return
	}
	b.seed(b.matches[uid], slot, n.seed)
}

// seedOrder returns bracket positions for a field of the given size,
// e.g. 8 -> [1 8 4 5 2 7 3 6].
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		span := len(order)*2 + 1
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, span-s)
		}
		order = next
	}
	return order
}
