package models

import "time"

type ExternalMatchStatus string

const (
	ExternalMatchScheduled ExternalMatchStatus = "scheduled"
	ExternalMatchFinalized ExternalMatchStatus = "finalized"
	ExternalMatchCanceled  ExternalMatchStatus = "canceled"
)

// MatchKey is the composite identity used for create-if-absent.
type MatchKey struct {
	PlayoffID          string      `json:"playoff_id"`
	BracketType        BracketType `json:"bracket_type"`
	Round              int         `json:"round"`
	MatchNumberInRound int         `json:"match_number_in_round"`
}

func KeyOf(playoffID string, m *Match) MatchKey {
	return MatchKey{
		PlayoffID:          playoffID,
		BracketType:        m.BracketType,
		Round:              m.Round,
		MatchNumberInRound: m.MatchNumberInRound,
	}
}

// ExternalMatch is the concrete, playable match owned by the match system.
type ExternalMatch struct {
	ID          string              `json:"id"`
	Key         MatchKey            `json:"key"`
	TeamA       string              `json:"team_a"`
	TeamB       string              `json:"team_b"`
	Format      MatchFormat         `json:"format"`
	Status      ExternalMatchStatus `json:"status"`
	TeamAScore  *int                `json:"team_a_score,omitempty"`
	TeamBScore  *int                `json:"team_b_score,omitempty"`
	FinalizedAt *time.Time          `json:"finalized_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// CompletionEvent is emitted by the match system when a match concludes.
type CompletionEvent struct {
	ExternalMatchID string    `json:"externalMatchId"`
	TeamAScore      int       `json:"teamAScore"`
	TeamBScore      int       `json:"teamBScore"`
	FinalizedAt     time.Time `json:"finalizedAt"`
}

// CompletionEventOf builds an event from a finalized external match.
func CompletionEventOf(em *ExternalMatch) (CompletionEvent, bool) {
	if em.Status != ExternalMatchFinalized || em.TeamAScore == nil || em.TeamBScore == nil {
		return CompletionEvent{}, false
	}
	ev := CompletionEvent{
		ExternalMatchID: em.ID,
		TeamAScore:      *em.TeamAScore,
		TeamBScore:      *em.TeamBScore,
	}
	if em.FinalizedAt != nil {
		ev.FinalizedAt = *em.FinalizedAt
	}
	return ev, true
}
