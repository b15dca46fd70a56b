package brackets

import (
	"fmt"
	"time"

	"github.com/Dosada05/playoff-engine/models"
)

type ResultInput struct {
	MatchID  string `json:"match_id"`
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
	ScoreA   int    `json:"score_a"`
	ScoreB   int    `json:"score_b"`
}

// Binding is a downstream participant slot that received a team.
type Binding struct {
	MatchID string      `json:"match_id"`
	Slot    models.Slot `json:"slot"`
	TeamID  string      `json:"team_id"`
}

type PlacementChange struct {
	TeamID string                 `json:"team_id"`
	Kind   models.DestinationKind `json:"kind"`
}

// Outcome describes one cascade step.
type Outcome struct {
	MatchID    string            `json:"match_id"`
	WinnerID   string            `json:"winner_id"`
	LoserID    string            `json:"loser_id"`
	Bindings   []Binding         `json:"bindings"`
	Placements []PlacementChange `json:"placements"`
	NewlyReady []string          `json:"newly_ready"`
	Idempotent bool              `json:"idempotent"`
}

// ApplyResult records a final result and binds the winner and loser into
// their destinations. The input playoff is never modified; the returned copy
// carries the new state. Replaying an identical result returns the original
// playoff with an idempotent outcome.
func ApplyResult(p *models.Playoff, in ResultInput, now time.Time) (*models.Playoff, *Outcome, error) {
	current := p.Match(in.MatchID)
	if current == nil {
		return nil, nil, fmt.Errorf("%w: match %q in playoff %q", ErrNotFound, in.MatchID, p.ID)
	}

	if current.IsCompleted() {
		if current.Result != nil && sameResult(*current.Result, resultOf(in)) {
			return p, describeCompleted(p, current), nil
		}
		return nil, nil, fmt.Errorf("%w: match %q already completed with %s beating %s",
			ErrResultConflict, current.ID, current.Result.WinnerID, current.Result.LoserID)
	}

	if err := validateResult(current, in); err != nil {
		return nil, nil, err
	}

	next := p.Clone()
	m := next.Match(in.MatchID)

	res := resultOf(in)
	res.CompletedAt = now
	m.Result = &res
	m.Status = models.MatchStatusCompleted
	m.UpdatedAt = now
	scoreA, scoreB := in.ScoreA, in.ScoreB
	m.ParticipantA.Score = &scoreA
	m.ParticipantB.Score = &scoreB
	m.ParticipantA.IsWinner = m.ParticipantA.TeamID == in.WinnerID
	m.ParticipantB.IsWinner = m.ParticipantB.TeamID == in.WinnerID

	out := &Outcome{MatchID: m.ID, WinnerID: in.WinnerID, LoserID: in.LoserID}
	if err := advanceTo(next, m.ID, m.WinnerGoesTo, in.WinnerID, now, out); err != nil {
		return nil, nil, err
	}
	if err := advanceTo(next, m.ID, m.LoserGoesTo, in.LoserID, now, out); err != nil {
		return nil, nil, err
	}
	next.UpdatedAt = now

	return next, out, nil
}

func resultOf(in ResultInput) models.MatchResult {
	return models.MatchResult{
		TeamAScore: in.ScoreA,
		TeamBScore: in.ScoreB,
		WinnerID:   in.WinnerID,
		LoserID:    in.LoserID,
	}
}

func validateResult(m *models.Match, in ResultInput) error {
	a, b := m.ParticipantA.TeamID, m.ParticipantB.TeamID
	switch {
	case a == "" || b == "":
		return fmt.Errorf("%w: match %q is missing a team binding", ErrInvalidResult, m.ID)
	case m.Status == models.MatchStatusPending:
		return fmt.Errorf("%w: match %q has not been materialized", ErrInvalidResult, m.ID)
	case in.WinnerID == "" || in.WinnerID == in.LoserID:
		return fmt.Errorf("%w: winner and loser must be two different teams", ErrInvalidResult)
	case !(in.WinnerID == a && in.LoserID == b) && !(in.WinnerID == b && in.LoserID == a):
		return fmt.Errorf("%w: %s/%s are not the teams of match %q (%s vs %s)", ErrInvalidResult, in.WinnerID, in.LoserID, m.ID, a, b)
	case in.ScoreA < 0 || in.ScoreB < 0:
		return fmt.Errorf("%w: scores must not be negative", ErrInvalidResult)
	case in.ScoreA == in.ScoreB:
		return fmt.Errorf("%w: tie %d-%d", ErrInvalidResult, in.ScoreA, in.ScoreB)
	}

	winnerScore, loserScore := in.ScoreA, in.ScoreB
	if in.WinnerID == b {
		winnerScore, loserScore = in.ScoreB, in.ScoreA
	}
	if winnerScore < loserScore {
		return fmt.Errorf("%w: winner %s scored %d against %d", ErrInvalidResult, in.WinnerID, winnerScore, loserScore)
	}
	return nil
}

func advanceTo(p *models.Playoff, fromID string, dest models.Destination, teamID string, now time.Time, out *Outcome) error {
	if dest.Kind == models.DestinationMatch {
		target := p.Match(dest.MatchID)
		if target == nil {
			return fmt.Errorf("%w: destination %q of match %q does not exist", ErrInvariantViolation, dest.MatchID, fromID)
		}
		part := target.Participant(dest.Slot)
		if part.Resolved() {
			if part.TeamID == teamID {
				return nil
			}
			return fmt.Errorf("%w: slot %s of match %q already holds %s, cannot bind %s",
				ErrResultConflict, dest.Slot, target.ID, part.TeamID, teamID)
		}
		part.TeamID = teamID
		target.UpdatedAt = now
		out.Bindings = append(out.Bindings, Binding{MatchID: target.ID, Slot: dest.Slot, TeamID: teamID})
		if IsReady(p, target) {
			out.NewlyReady = append(out.NewlyReady, target.ID)
		}
		return nil
	}

	if !dest.Kind.Terminal() {
		return fmt.Errorf("%w: match %q has no destination for %s", ErrInvariantViolation, fromID, teamID)
	}
	placement := models.Placement{Kind: dest.Kind, MatchID: fromID}
	if existing, ok := p.Placements[teamID]; ok {
		if existing == placement {
			return nil
		}
		return fmt.Errorf("%w: team %s already placed %s by match %q", ErrResultConflict, teamID, existing.Kind, existing.MatchID)
	}
	if dest.Kind == models.DestinationChampion || dest.Kind == models.DestinationRunnerUp {
		for other, pl := range p.Placements {
			if pl.Kind == dest.Kind {
				return fmt.Errorf("%w: %s already assigned to %s", ErrResultConflict, dest.Kind, other)
			}
		}
	}
	if p.Placements == nil {
		p.Placements = make(map[string]models.Placement)
	}
	p.Placements[teamID] = placement
	out.Placements = append(out.Placements, PlacementChange{TeamID: teamID, Kind: dest.Kind})
	return nil
}

// describeCompleted rebuilds the outcome of a match that is already completed,
// as the call that completed it reported it.
func describeCompleted(p *models.Playoff, m *models.Match) *Outcome {
	out := &Outcome{
		MatchID:    m.ID,
		WinnerID:   m.Result.WinnerID,
		LoserID:    m.Result.LoserID,
		Idempotent: true,
	}
	for _, step := range []struct {
		dest models.Destination
		team string
	}{{m.WinnerGoesTo, m.Result.WinnerID}, {m.LoserGoesTo, m.Result.LoserID}} {
		if step.dest.Kind != models.DestinationMatch {
			out.Placements = append(out.Placements, PlacementChange{TeamID: step.team, Kind: step.dest.Kind})
			continue
		}
		target := p.Match(step.dest.MatchID)
		if target == nil || target.Participant(step.dest.Slot).TeamID != step.team {
			continue
		}
		out.Bindings = append(out.Bindings, Binding{MatchID: target.ID, Slot: step.dest.Slot, TeamID: step.team})
		if readiedBy(p, m, target, step.dest.Slot) {
			out.NewlyReady = append(out.NewlyReady, target.ID)
		}
	}
	return out
}

// readiedBy reports whether m's result completed the pairing of target, that
// is whether the opposite side was already known when m finished. Results
// sharing a completion time all count.
func readiedBy(p *models.Playoff, m, target *models.Match, slot models.Slot) bool {
	a, okA := ResolveParticipant(p, target, models.SlotA)
	b, okB := ResolveParticipant(p, target, models.SlotB)
	if !okA || !okB || a == b {
		return false
	}
	other := models.SlotA
	if slot == models.SlotA {
		other = models.SlotB
	}
	var feeder string
	switch src := target.Participant(other).Source.(type) {
	case models.WinnerOfSource:
		feeder = src.MatchID
	case models.LoserOfSource:
		feeder = src.MatchID
	default:
		return true
	}
	f := p.Match(feeder)
	if f == nil || f.Result == nil {
		return true
	}
	return !f.Result.CompletedAt.After(m.Result.CompletedAt)
}
