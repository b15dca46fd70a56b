package models

// Participant is one side of a match. Source never changes after the layout is
// generated; TeamID is the current binding and is empty while unresolved.
type Participant struct {
	Source   ParticipantSource
	TeamID   string
	Score    *int
	IsWinner bool
}

func NewParticipant(src ParticipantSource) Participant {
	p := Participant{Source: src}
	if seed, ok := src.(SeedSource); ok {
		p.TeamID = seed.TeamID
	}
	return p
}

func (p Participant) Resolved() bool {
	return p.TeamID != ""
}

func (p Participant) IsSeed() bool {
	_, ok := p.Source.(SeedSource)
	return ok
}

func (p Participant) clone() Participant {
	c := p
	if p.Score != nil {
		s := *p.Score
		c.Score = &s
	}
	return c
}
