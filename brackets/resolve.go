package brackets

import (
	"fmt"

	"github.com/Dosada05/playoff-engine/models"
)

// ResolveParticipant returns the team occupying the given side of a match.
// Bound teams win; otherwise the source is followed through completed
// matches. A reference to a match that has not completed is unresolved.
func ResolveParticipant(p *models.Playoff, m *models.Match, slot models.Slot) (string, bool) {
	part := m.Participant(slot)
	if part.Resolved() {
		return part.TeamID, true
	}
	return resolveSource(p, part.Source)
}

func resolveSource(p *models.Playoff, src models.ParticipantSource) (string, bool) {
	switch s := src.(type) {
	case models.SeedSource:
		return s.TeamID, s.TeamID != ""
	case models.WinnerOfSource:
		return resolveOutcome(p, s.MatchID, true)
	case models.LoserOfSource:
		return resolveOutcome(p, s.MatchID, false)
	case models.TBDSource:
		return "", false
	case nil:
		return "", false
	default:
		panic(fmt.Sprintf("unhandled participant source %T", src))
	}
}

func resolveOutcome(p *models.Playoff, matchID string, winner bool) (string, bool) {
	src := p.Match(matchID)
	if src == nil || !src.IsCompleted() || src.Result == nil {
		return "", false
	}
	if winner {
		return src.Result.WinnerID, src.Result.WinnerID != ""
	}
	return src.Result.LoserID, src.Result.LoserID != ""
}

// IsReady reports whether both sides resolve and the match was not materialized yet.
func IsReady(p *models.Playoff, m *models.Match) bool {
	if m.Status != models.MatchStatusPending {
		return false
	}
	a, okA := ResolveParticipant(p, m, models.SlotA)
	b, okB := ResolveParticipant(p, m, models.SlotB)
	return okA && okB && a != b
}

func ReadyMatches(p *models.Playoff) []*models.Match {
	var out []*models.Match
	for _, m := range p.Matches() {
		if IsReady(p, m) {
			out = append(out, m)
		}
	}
	return out
}

func Summarize(p *models.Playoff) models.StatusSummary {
	s := models.StatusSummary{PlayoffID: p.ID}
	for _, m := range p.Matches() {
		s.Total++
		switch m.Status {
		case models.MatchStatusPending:
			s.Pending++
			if IsReady(p, m) {
				s.Ready++
			}
		case models.MatchStatusScheduled:
			s.Scheduled++
		case models.MatchStatusInProgress:
			s.InProgress++
		case models.MatchStatusCompleted:
			s.Completed++
		}
	}
	if champ, ok := p.Champion(); ok {
		s.Champion = champ
	}
	return s
}
