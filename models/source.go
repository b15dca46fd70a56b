package models

import (
	"encoding/json"
	"fmt"
)

type SourceKind string

const (
	SourceSeed     SourceKind = "seed"
	SourceWinnerOf SourceKind = "winner_of"
	SourceLoserOf  SourceKind = "loser_of"
	SourceTBD      SourceKind = "tbd"
)

// ParticipantSource describes how a participant slot gets filled.
// The set of variants is closed: SeedSource, WinnerOfSource, LoserOfSource, TBDSource.
type ParticipantSource interface {
	Kind() SourceKind
	isParticipantSource()
}

// SeedSource is a position in the seeding table. TeamID is set once standings are applied.
type SeedSource struct {
	Seed   int
	Group  string
	Rank   int
	TeamID string
}

type WinnerOfSource struct {
	MatchID string
}

type LoserOfSource struct {
	MatchID string
}

type TBDSource struct {
	Description string
}

func (SeedSource) Kind() SourceKind     { return SourceSeed }
func (WinnerOfSource) Kind() SourceKind { return SourceWinnerOf }
func (LoserOfSource) Kind() SourceKind  { return SourceLoserOf }
func (TBDSource) Kind() SourceKind      { return SourceTBD }

func (SeedSource) isParticipantSource()     {}
func (WinnerOfSource) isParticipantSource() {}
func (LoserOfSource) isParticipantSource()  {}
func (TBDSource) isParticipantSource()      {}

// SourceMatchID returns the referenced match for winner/loser sources.
func SourceMatchID(src ParticipantSource) (string, bool) {
	switch s := src.(type) {
	case WinnerOfSource:
		return s.MatchID, true
	case LoserOfSource:
		return s.MatchID, true
	case SeedSource, TBDSource, nil:
		return "", false
	default:
		panic(fmt.Sprintf("unhandled participant source %T", src))
	}
}

type sourceJSON struct {
	Kind        SourceKind `json:"kind"`
	Seed        int        `json:"seed,omitempty"`
	Group       string     `json:"group,omitempty"`
	Rank        int        `json:"rank,omitempty"`
	TeamID      string     `json:"team_id,omitempty"`
	MatchID     string     `json:"match_id,omitempty"`
	Description string     `json:"description,omitempty"`
}

func encodeSource(src ParticipantSource) (sourceJSON, error) {
	switch s := src.(type) {
	case SeedSource:
		return sourceJSON{Kind: SourceSeed, Seed: s.Seed, Group: s.Group, Rank: s.Rank, TeamID: s.TeamID}, nil
	case WinnerOfSource:
		return sourceJSON{Kind: SourceWinnerOf, MatchID: s.MatchID}, nil
	case LoserOfSource:
		return sourceJSON{Kind: SourceLoserOf, MatchID: s.MatchID}, nil
	case TBDSource:
		return sourceJSON{Kind: SourceTBD, Description: s.Description}, nil
	case nil:
		return sourceJSON{}, fmt.Errorf("participant source is missing")
	default:
		return sourceJSON{}, fmt.Errorf("unknown participant source %T", src)
	}
}

func decodeSource(raw sourceJSON) (ParticipantSource, error) {
	switch raw.Kind {
	case SourceSeed:
		return SeedSource{Seed: raw.Seed, Group: raw.Group, Rank: raw.Rank, TeamID: raw.TeamID}, nil
	case SourceWinnerOf:
		return WinnerOfSource{MatchID: raw.MatchID}, nil
	case SourceLoserOf:
		return LoserOfSource{MatchID: raw.MatchID}, nil
	case SourceTBD:
		return TBDSource{Description: raw.Description}, nil
	default:
		return nil, fmt.Errorf("unknown participant source kind %q", raw.Kind)
	}
}

type participantJSON struct {
	Source   sourceJSON `json:"source"`
	TeamID   string     `json:"team_id,omitempty"`
	Score    *int       `json:"score,omitempty"`
	IsWinner bool       `json:"is_winner,omitempty"`
}

func (p Participant) MarshalJSON() ([]byte, error) {
	src, err := encodeSource(p.Source)
	if err != nil {
		return nil, err
	}
	return json.Marshal(participantJSON{
		Source:   src,
		TeamID:   p.TeamID,
		Score:    p.Score,
		IsWinner: p.IsWinner,
	})
}

func (p *Participant) UnmarshalJSON(data []byte) error {
	var raw participantJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	src, err := decodeSource(raw.Source)
	if err != nil {
		return err
	}
	*p = Participant{
		Source:   src,
		TeamID:   raw.TeamID,
		Score:    raw.Score,
		IsWinner: raw.IsWinner,
	}
	return nil
}
