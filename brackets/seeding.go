package brackets

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Dosada05/playoff-engine/models"
)

// HasProgress reports whether anything beyond seed bindings happened.
func HasProgress(p *models.Playoff) bool {
	if len(p.Placements) > 0 {
		return true
	}
	for _, m := range p.Matches() {
		if m.Status != models.MatchStatusPending || m.ExternalMatchID != "" || m.Result != nil {
			return true
		}
		for _, part := range []models.Participant{m.ParticipantA, m.ParticipantB} {
			if part.Resolved() && !part.IsSeed() {
				return true
			}
		}
	}
	return false
}

type standingKey struct {
	group string
	rank  int
}

// ApplySeeding binds every seed slot to the team holding the matching
// group position. Seeding may be repeated until the first match is
// materialized; after that it is rejected.
func ApplySeeding(p *models.Playoff, standings []models.Standing, now time.Time) (*models.Playoff, error) {
	if HasProgress(p) {
		return nil, fmt.Errorf("%w: playoff %q", ErrReseedRejected, p.ID)
	}

	byPosition := make(map[standingKey]string, len(standings))
	teams := make(map[string]bool, len(standings))
	for _, s := range standings {
		if s.TeamID == "" {
			return nil, fmt.Errorf("%w: empty team id at %s#%d", ErrInvalidSeeding, s.GroupID, s.Rank)
		}
		k := standingKey{s.GroupID, s.Rank}
		if _, dup := byPosition[k]; dup {
			return nil, fmt.Errorf("%w: group %s rank %d listed twice", ErrInvalidSeeding, s.GroupID, s.Rank)
		}
		if teams[s.TeamID] {
			return nil, fmt.Errorf("%w: team %s listed twice", ErrInvalidSeeding, s.TeamID)
		}
		byPosition[k] = s.TeamID
		teams[s.TeamID] = true
	}

	next := p.Clone()
	var missing []string
	for _, m := range next.Matches() {
		for _, slot := range []models.Slot{models.SlotA, models.SlotB} {
			part := m.Participant(slot)
			seed, ok := part.Source.(models.SeedSource)
			if !ok {
				continue
			}
			team, found := byPosition[standingKey{seed.Group, seed.Rank}]
			if !found {
				missing = append(missing, fmt.Sprintf("%s#%d", seed.Group, seed.Rank))
				continue
			}
			seed.TeamID = team
			part.Source = seed
			part.TeamID = team
			m.UpdatedAt = now
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: no standing for %s", ErrInvalidSeeding, strings.Join(missing, ", "))
	}
	if vs := ValidateInvariants(next); len(vs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeeding, ViolationError(vs))
	}

	next.Seeded = true
	next.UpdatedAt = now
	return next, nil
}
