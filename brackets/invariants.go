package brackets

import (
	"fmt"
	"strings"

	"github.com/Dosada05/playoff-engine/models"
)

const (
	InvariantResultIffCompleted = 1
	InvariantDestinationSlot    = 2
	InvariantOneSlotPerRound    = 3
	InvariantTerminalOnce       = 4
	InvariantMonotonicComplete  = 5
)

type Violation struct {
	Invariant int    `json:"invariant"`
	MatchID   string `json:"match_id,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
	Message   string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("invariant %d (match %q): %s", v.Invariant, v.MatchID, v.Message)
}

// ViolationError wraps ErrInvariantViolation with the offending details.
func ViolationError(vs []Violation) error {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}
	return fmt.Errorf("%w: %s", ErrInvariantViolation, strings.Join(parts, "; "))
}

// ValidateInvariants checks a single snapshot. Monotonic completion needs
// two snapshots, see ValidateTransition.
func ValidateInvariants(p *models.Playoff) []Violation {
	var vs []Violation
	vs = append(vs, checkResults(p)...)
	vs = append(vs, checkDestinations(p)...)
	vs = append(vs, checkRounds(p)...)
	vs = append(vs, checkPlacements(p)...)
	return vs
}

// ValidateTransition checks next on its own and against prev.
func ValidateTransition(prev, next *models.Playoff) []Violation {
	vs := ValidateInvariants(next)
	for _, before := range prev.Matches() {
		if !before.IsCompleted() {
			continue
		}
		after := next.Match(before.ID)
		switch {
		case after == nil:
			vs = append(vs, Violation{Invariant: InvariantMonotonicComplete, MatchID: before.ID, Message: "completed match disappeared"})
		case !after.IsCompleted():
			vs = append(vs, Violation{Invariant: InvariantMonotonicComplete, MatchID: before.ID, Message: fmt.Sprintf("completed match moved back to %s", after.Status)})
		case after.Result == nil || before.Result == nil || !sameResult(*before.Result, *after.Result):
			vs = append(vs, Violation{Invariant: InvariantMonotonicComplete, MatchID: before.ID, Message: "completed result was rewritten"})
		}
	}
	return vs
}

func checkResults(p *models.Playoff) []Violation {
	var vs []Violation
	for _, m := range p.Matches() {
		if (m.Result != nil) != m.IsCompleted() {
			vs = append(vs, Violation{
				Invariant: InvariantResultIffCompleted,
				MatchID:   m.ID,
				Message:   fmt.Sprintf("status %s with result present=%t", m.Status, m.Result != nil),
			})
			continue
		}
		if m.Result == nil {
			continue
		}
		a, b := m.ParticipantA.TeamID, m.ParticipantB.TeamID
		r := m.Result
		if !((r.WinnerID == a && r.LoserID == b) || (r.WinnerID == b && r.LoserID == a)) || a == "" || b == "" {
			vs = append(vs, Violation{
				Invariant: InvariantResultIffCompleted,
				MatchID:   m.ID,
				Message:   fmt.Sprintf("result %s/%s does not match participants %q/%q", r.WinnerID, r.LoserID, a, b),
			})
		}
	}
	return vs
}

func checkDestinations(p *models.Playoff) []Violation {
	var vs []Violation
	for _, m := range p.Matches() {
		for _, d := range []struct {
			dest   models.Destination
			winner bool
		}{{m.WinnerGoesTo, true}, {m.LoserGoesTo, false}} {
			if d.dest.Kind != models.DestinationMatch {
				continue
			}
			target := p.Match(d.dest.MatchID)
			if target == nil {
				vs = append(vs, Violation{Invariant: InvariantDestinationSlot, MatchID: m.ID, Message: fmt.Sprintf("destination %s does not exist", d.dest.MatchID)})
				continue
			}
			part := target.Participant(d.dest.Slot)
			var expected models.ParticipantSource = models.LoserOfSource{MatchID: m.ID}
			if d.winner {
				expected = models.WinnerOfSource{MatchID: m.ID}
			}
			if part.Source != expected {
				vs = append(vs, Violation{Invariant: InvariantDestinationSlot, MatchID: m.ID, Message: fmt.Sprintf("slot %s of %s is not sourced from this match", d.dest.Slot, target.ID)})
				continue
			}
			if !m.IsCompleted() || m.Result == nil || !part.Resolved() {
				continue
			}
			team := m.Result.LoserID
			if d.winner {
				team = m.Result.WinnerID
			}
			if part.TeamID != team {
				vs = append(vs, Violation{
					Invariant: InvariantDestinationSlot,
					MatchID:   m.ID,
					TeamID:    part.TeamID,
					Message:   fmt.Sprintf("slot %s of %s holds %q, expected %q", d.dest.Slot, target.ID, part.TeamID, team),
				})
			}
		}
	}
	return vs
}

func checkRounds(p *models.Playoff) []Violation {
	type roundKey struct {
		bracket models.BracketType
		round   int
	}
	seen := make(map[roundKey]map[string]string)
	var vs []Violation
	for _, m := range p.Matches() {
		k := roundKey{m.BracketType, m.Round}
		if seen[k] == nil {
			seen[k] = make(map[string]string)
		}
		for _, team := range []string{m.ParticipantA.TeamID, m.ParticipantB.TeamID} {
			if team == "" {
				continue
			}
			if other, dup := seen[k][team]; dup {
				vs = append(vs, Violation{
					Invariant: InvariantOneSlotPerRound,
					MatchID:   m.ID,
					TeamID:    team,
					Message:   fmt.Sprintf("team already placed in %s round %d (match %s)", m.BracketType, m.Round, other),
				})
				continue
			}
			seen[k][team] = m.ID
		}
	}
	return vs
}

func checkPlacements(p *models.Playoff) []Violation {
	var vs []Violation
	counts := make(map[models.DestinationKind]int)
	for team, pl := range p.Placements {
		counts[pl.Kind]++
		if !pl.Kind.Terminal() {
			vs = append(vs, Violation{Invariant: InvariantTerminalOnce, TeamID: team, MatchID: pl.MatchID, Message: fmt.Sprintf("placement kind %q is not terminal", pl.Kind)})
		}
	}
	if counts[models.DestinationChampion] > 1 {
		vs = append(vs, Violation{Invariant: InvariantTerminalOnce, Message: fmt.Sprintf("%d champions recorded", counts[models.DestinationChampion])})
	}
	if counts[models.DestinationRunnerUp] > 1 {
		vs = append(vs, Violation{Invariant: InvariantTerminalOnce, Message: fmt.Sprintf("%d runners-up recorded", counts[models.DestinationRunnerUp])})
	}
	return vs
}

func sameResult(a, b models.MatchResult) bool {
	return a.WinnerID == b.WinnerID && a.LoserID == b.LoserID &&
		a.TeamAScore == b.TeamAScore && a.TeamBScore == b.TeamBScore
}
