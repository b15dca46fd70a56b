package models

// Standing is one row of the final group-stage table used for seeding.
type Standing struct {
	TeamID  string `json:"team_id"`
	GroupID string `json:"group_id"`
	Rank    int    `json:"rank"`
}

// SeedingEntry maps a group finishing position onto a seed number of the layout.
type SeedingEntry struct {
	Group string `json:"group" yaml:"group"`
	Rank  int    `json:"rank" yaml:"rank"`
	Seed  int    `json:"seed" yaml:"seed"`
}

type SeedingTable struct {
	Entries []SeedingEntry `json:"entries" yaml:"entries"`
}

func (t SeedingTable) BySeed() map[int]SeedingEntry {
	out := make(map[int]SeedingEntry, len(t.Entries))
	for _, e := range t.Entries {
		out[e.Seed] = e
	}
	return out
}
