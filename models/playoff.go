package models

import "time"

type BracketType string

const (
	BracketWildcard   BracketType = "wildcard"
	BracketUpper      BracketType = "upper"
	BracketLower      BracketType = "lower"
	BracketGrandFinal BracketType = "grand-final"
)

type Layout string

const (
	LayoutSingleElimination Layout = "single_elimination"
	LayoutDoubleElimination Layout = "double_elimination"
)

type Bracket struct {
	Type    BracketType `json:"type"`
	Name    string      `json:"name"`
	Matches []Match     `json:"matches"`
}

type Placement struct {
	Kind    DestinationKind `json:"kind"`
	MatchID string          `json:"match_id"`
}

// Playoff is the persisted bracket record of one tournament phase.
// Matches reference each other by ID only.
type Playoff struct {
	ID           string               `json:"id"`
	TournamentID string               `json:"tournament_id"`
	Name         string               `json:"name"`
	Layout       Layout               `json:"layout"`
	Brackets     []Bracket            `json:"brackets"`
	Placements   map[string]Placement `json:"placements"`
	Seeded       bool                 `json:"seeded"`
	// VoidedExternalIDs are external matches detached by a reset whose
	// cancellation has not been confirmed by the match system yet.
	VoidedExternalIDs []string  `json:"voided_external_ids,omitempty"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Match returns a pointer into the playoff so callers can mutate in place.
func (p *Playoff) Match(id string) *Match {
	for bi := range p.Brackets {
		for mi := range p.Brackets[bi].Matches {
			if p.Brackets[bi].Matches[mi].ID == id {
				return &p.Brackets[bi].Matches[mi]
			}
		}
	}
	return nil
}

// Matches lists pointers to every match in bracket order.
func (p *Playoff) Matches() []*Match {
	var out []*Match
	for bi := range p.Brackets {
		for mi := range p.Brackets[bi].Matches {
			out = append(out, &p.Brackets[bi].Matches[mi])
		}
	}
	return out
}

func (p *Playoff) MatchByExternalID(externalID string) *Match {
	if externalID == "" {
		return nil
	}
	for _, m := range p.Matches() {
		if m.ExternalMatchID == externalID {
			return m
		}
	}
	return nil
}

func (p *Playoff) Bracket(t BracketType) *Bracket {
	for i := range p.Brackets {
		if p.Brackets[i].Type == t {
			return &p.Brackets[i]
		}
	}
	return nil
}

// Champion returns the team placed as champion, if any.
func (p *Playoff) Champion() (string, bool) {
	for teamID, pl := range p.Placements {
		if pl.Kind == DestinationChampion {
			return teamID, true
		}
	}
	return "", false
}

func (p *Playoff) Clone() *Playoff {
	if p == nil {
		return nil
	}
	c := *p
	c.Brackets = make([]Bracket, len(p.Brackets))
	for i, b := range p.Brackets {
		nb := b
		nb.Matches = make([]Match, len(b.Matches))
		for j, m := range b.Matches {
			nb.Matches[j] = m.clone()
		}
		c.Brackets[i] = nb
	}
	c.Placements = make(map[string]Placement, len(p.Placements))
	for k, v := range p.Placements {
		c.Placements[k] = v
	}
	if p.VoidedExternalIDs != nil {
		c.VoidedExternalIDs = append([]string(nil), p.VoidedExternalIDs...)
	}
	return &c
}

// IsVoided reports whether a reset detached the external match from this playoff.
func (p *Playoff) IsVoided(externalID string) bool {
	for _, id := range p.VoidedExternalIDs {
		if id == externalID {
			return true
		}
	}
	return false
}

type StatusSummary struct {
	PlayoffID  string `json:"playoff_id"`
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Scheduled  int    `json:"scheduled"`
	InProgress int    `json:"in_progress"`
	Completed  int    `json:"completed"`
	Ready      int    `json:"ready"`
	Champion   string `json:"champion,omitempty"`
}
