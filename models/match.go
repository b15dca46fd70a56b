package models

import "time"

type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusScheduled  MatchStatus = "scheduled"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
)

type Slot string

const (
	SlotA Slot = "A"
	SlotB Slot = "B"
)

type DestinationKind string

const (
	DestinationMatch      DestinationKind = "match"
	DestinationChampion   DestinationKind = "champion"
	DestinationRunnerUp   DestinationKind = "runner-up"
	DestinationEliminated DestinationKind = "eliminated"
)

// Destination is where a winner or loser goes next: a slot on another
// match, or one of the terminal sentinels.
type Destination struct {
	Kind    DestinationKind `json:"kind"`
	MatchID string          `json:"match_id,omitempty"`
	Slot    Slot            `json:"slot,omitempty"`
}

func ToMatch(matchID string, slot Slot) Destination {
	return Destination{Kind: DestinationMatch, MatchID: matchID, Slot: slot}
}

func Terminal(kind DestinationKind) Destination {
	return Destination{Kind: kind}
}

func (k DestinationKind) Terminal() bool {
	switch k {
	case DestinationChampion, DestinationRunnerUp, DestinationEliminated:
		return true
	}
	return false
}

func (d Destination) IsTerminal() bool {
	return d.Kind.Terminal()
}

type MatchResult struct {
	TeamAScore  int       `json:"team_a_score"`
	TeamBScore  int       `json:"team_b_score"`
	WinnerID    string    `json:"winner_id"`
	LoserID     string    `json:"loser_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Match is a single bracket slot.
type Match struct {
	ID                 string       `json:"id"`
	BracketType        BracketType  `json:"bracket_type"`
	Round              int          `json:"round"`
	MatchNumberInRound int          `json:"match_number_in_round"`
	Format             MatchFormat  `json:"format"`
	ParticipantA       Participant  `json:"participant_a"`
	ParticipantB       Participant  `json:"participant_b"`
	Status             MatchStatus  `json:"status"`
	Result             *MatchResult `json:"result,omitempty"`
	WinnerGoesTo       Destination  `json:"winner_goes_to"`
	LoserGoesTo        Destination  `json:"loser_goes_to"`
	ExternalMatchID    string       `json:"external_match_id,omitempty"`
	ScheduledFor       *time.Time   `json:"scheduled_for,omitempty"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (m *Match) Participant(slot Slot) *Participant {
	if slot == SlotB {
		return &m.ParticipantB
	}
	return &m.ParticipantA
}

func (m *Match) IsCompleted() bool {
	return m.Status == MatchStatusCompleted
}

// SlotOf reports which side the team is bound to.
func (m *Match) SlotOf(teamID string) (Slot, bool) {
	switch {
	case teamID == "":
		return "", false
	case m.ParticipantA.TeamID == teamID:
		return SlotA, true
	case m.ParticipantB.TeamID == teamID:
		return SlotB, true
	}
	return "", false
}

func (m Match) clone() Match {
	c := m
	c.ParticipantA = m.ParticipantA.clone()
	c.ParticipantB = m.ParticipantB.clone()
	if m.Result != nil {
		r := *m.Result
		c.Result = &r
	}
	if m.ScheduledFor != nil {
		t := *m.ScheduledFor
		c.ScheduledFor = &t
	}
	return c
}
