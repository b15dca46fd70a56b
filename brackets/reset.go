package brackets

import (
	"fmt"
	"time"

	"github.com/Dosada05/playoff-engine/models"
)

type ResetOutcome struct {
	MatchID           string    `json:"match_id"`
	ResetMatches      []string  `json:"reset_matches"`
	VoidedExternalIDs []string  `json:"voided_external_ids"`
	RemovedPlacements []string  `json:"removed_placements"`
	Rebound           []Binding `json:"rebound"`
	Correction        *Outcome  `json:"correction,omitempty"`
}

// ResetFrom rolls back matchID and everything downstream of it, then
// re-derives downstream bindings from the completed matches that remain.
//
// Without a correction the match loses its external match and goes back to
// pending so it is materialized again. With a correction the match keeps its
// external match and the corrected result is applied in the same step.
// Detached external matches are recorded in VoidedExternalIDs until the
// caller confirms their cancellation.
func ResetFrom(p *models.Playoff, matchID string, correction *ResultInput, now time.Time) (*models.Playoff, *ResetOutcome, error) {
	if p.Match(matchID) == nil {
		return nil, nil, fmt.Errorf("%w: match %q in playoff %q", ErrNotFound, matchID, p.ID)
	}
	if correction != nil && correction.MatchID != matchID {
		return nil, nil, fmt.Errorf("%w: correction targets %q, reset starts at %q", ErrInvalidResult, correction.MatchID, matchID)
	}

	next := p.Clone()
	closure := downstreamOf(next, matchID)
	out := &ResetOutcome{MatchID: matchID}

	for _, m := range next.Matches() {
		if !closure[m.ID] {
			continue
		}
		out.ResetMatches = append(out.ResetMatches, m.ID)
		m.Result = nil
		m.UpdatedAt = now
		for _, slot := range []models.Slot{models.SlotA, models.SlotB} {
			part := m.Participant(slot)
			part.Score = nil
			part.IsWinner = false
			if !part.IsSeed() {
				part.TeamID = ""
			}
		}

		keepExternal := m.ID == matchID && correction != nil && m.ExternalMatchID != ""
		if m.ExternalMatchID != "" && !keepExternal {
			out.VoidedExternalIDs = append(out.VoidedExternalIDs, m.ExternalMatchID)
			if !next.IsVoided(m.ExternalMatchID) {
				next.VoidedExternalIDs = append(next.VoidedExternalIDs, m.ExternalMatchID)
			}
			m.ExternalMatchID = ""
		}
		if keepExternal {
			m.Status = models.MatchStatusScheduled
		} else {
			m.Status = models.MatchStatusPending
		}
	}

	for team, pl := range next.Placements {
		if closure[pl.MatchID] {
			delete(next.Placements, team)
			out.RemovedPlacements = append(out.RemovedPlacements, team)
		}
	}

	for _, m := range next.Matches() {
		if closure[m.ID] || !m.IsCompleted() || m.Result == nil {
			continue
		}
		for _, step := range []struct {
			dest models.Destination
			team string
		}{{m.WinnerGoesTo, m.Result.WinnerID}, {m.LoserGoesTo, m.Result.LoserID}} {
			if step.dest.Kind != models.DestinationMatch || !closure[step.dest.MatchID] {
				continue
			}
			part := next.Match(step.dest.MatchID).Participant(step.dest.Slot)
			if !part.Resolved() {
				part.TeamID = step.team
				out.Rebound = append(out.Rebound, Binding{MatchID: step.dest.MatchID, Slot: step.dest.Slot, TeamID: step.team})
			}
		}
	}
	next.UpdatedAt = now

	if correction != nil {
		if next.Match(matchID).Status != models.MatchStatusScheduled {
			return nil, nil, fmt.Errorf("%w: match %q was never materialized, nothing to correct", ErrInvalidResult, matchID)
		}
		corrected, outcome, err := ApplyResult(next, *correction, now)
		if err != nil {
			return nil, nil, err
		}
		next = corrected
		out.Correction = outcome
	}

	if vs := ValidateInvariants(next); len(vs) > 0 {
		return nil, nil, ViolationError(vs)
	}
	return next, out, nil
}

// downstreamOf returns matchID plus every match reachable through match destinations.
func downstreamOf(p *models.Playoff, matchID string) map[string]bool {
	seen := map[string]bool{matchID: true}
	queue := []string{matchID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		m := p.Match(id)
		if m == nil {
			continue
		}
		for _, d := range []models.Destination{m.WinnerGoesTo, m.LoserGoesTo} {
			if d.Kind == models.DestinationMatch && !seen[d.MatchID] {
				seen[d.MatchID] = true
				queue = append(queue, d.MatchID)
			}
		}
	}
	return seen
}
