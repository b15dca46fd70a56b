package models

import "fmt"

// MatchFormat is the best-of series length of a match.
type MatchFormat string

const (
	FormatBo1 MatchFormat = "bo1"
	FormatBo3 MatchFormat = "bo3"
	FormatBo5 MatchFormat = "bo5"
)

func ParseMatchFormat(s string) (MatchFormat, error) {
	switch f := MatchFormat(s); f {
	case FormatBo1, FormatBo3, FormatBo5:
		return f, nil
	}
	return "", fmt.Errorf("unknown match format %q", s)
}

// GamesToWin returns how many game wins decide the series.
func (f MatchFormat) GamesToWin() int {
	switch f {
	case FormatBo3:
		return 2
	case FormatBo5:
		return 3
	default:
		return 1
	}
}
