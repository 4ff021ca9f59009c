// Package positions holds the static per-position statistic configuration:
// the four position categories, the ordered feature set for each, display
// labels and the alias table that folds legacy key spellings into one
// canonical schema.
package positions

import (
	"errors"
	"fmt"
	"strings"
)

// Position is a player position category.
type Position string

const (
	Defender   Position = "defender"
	Forward    Position = "forward"
	Goalkeeper Position = "goalkeeper"
	Midfielder Position = "midfielder"
)

// ErrUnknownPosition is returned when a position string cannot be parsed.
var ErrUnknownPosition = errors.New("unknown position")

// All returns every position in display order.
func All() []Position {
	return []Position{Defender, Forward, Goalkeeper, Midfielder}
}

// Parse converts a user or URL supplied string into a Position.
// Matching is case-insensitive and accepts the plural collection form
// used by the backend routes ("defenders", "forwards", ...).
func Parse(s string) (Position, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "s")
	p := Position(v)
	if _, ok := featureSets[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPosition, s)
	}
	return p, nil
}

// String implements fmt.Stringer.
func (p Position) String() string { return string(p) }

// Title returns the capitalised display name, e.g. "Goalkeeper".
func (p Position) Title() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// Collection returns the plural form used by the backend list endpoints.
func (p Position) Collection() string { return string(p) + "s" }

// Axis order is significant: polygons of re-rendered players only line up
// when every render uses the same order.
var featureSets = map[Position][]string{
	Defender: {
		"AerWonPerc",
		"TklWon",
		"Clr",
		"BlkSh",
		"Int",
		"PasMedCmp",
		"PasMedCmpPerc",
	},
	Forward: {"Goals", "SoT", "SoTPerc", "ScaSh", "TouAttPen", "Assists", "Sca"},
	Goalkeeper: {
		"PasTotCmpPerc",
		"PasTotCmp",
		"Err",
		"SavePerc",
		"SweeperActions",
		"Pas3rd",
	},
	Midfielder: {
		"Recov",
		"PasTotCmp",
		"PasTotCmpPerc",
		"PasProg",
		"TklMid3rd",
		"CarProg",
		"Int",
	},
}

// Features returns the ordered feature keys for a position.
// The returned slice is a copy and may be modified by the caller.
// An unknown position yields nil.
func Features(p Position) []string {
	set, ok := featureSets[p]
	if !ok {
		return nil
	}
	out := make([]string, len(set))
	copy(out, set)
	return out
}
