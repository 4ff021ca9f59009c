package session

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/statvalue/statvalue-companion/internal/normalize"
)

// DetailField is one row of the player profile table.
type DetailField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// PlayerDetails is the profile table of one selected player.
type PlayerDetails struct {
	Name   string        `json:"name"`
	Nation string        `json:"nation"`
	Fields []DetailField `json:"fields"`
}

var detailFields = []struct{ key, label string }{
	{"Age", "Age"},
	{"Born", "Born"},
	{"Squad", "Squad"},
	{"Comp", "Competition"},
	{"MP", "Matches Played"},
	{"Starts", "Starts"},
	{"Min", "Minutes"},
	{"NinetyS", "90s Played"},
}

// DetailsFor builds the profile table of rec.
func DetailsFor(rec normalize.PlayerRecord) PlayerDetails {
	d := PlayerDetails{Name: rec.Name(), Nation: rec.Nation()}
	for _, f := range detailFields {
		d.Fields = append(d.Fields, DetailField{Key: f.key, Label: f.label, Value: FormatValue(rec[f.key])})
	}
	return d
}

// FormatValue renders a raw record value for display: absent values become
// "N/A", whole numbers print without decimals, other numbers with two.
func FormatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return "N/A"
	case string:
		return n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return n.String()
		}
		return formatNumber(f)
	case float64:
		return formatNumber(n)
	case float32:
		return formatNumber(float64(n))
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case bool:
		return strconv.FormatBool(n)
	default:
		b, err := json.Marshal(n)
		if err != nil {
			return "N/A"
		}
		return string(b)
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "N/A"
	}
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// FormatMarketValue renders a value in dollars, abbreviated to millions or
// thousands.
func FormatMarketValue(v float64) string {
	switch {
	case v >= 1_000_000:
		return "$" + strconv.FormatFloat(v/1_000_000, 'f', 1, 64) + "M"
	case v >= 1_000:
		return "$" + strconv.FormatFloat(v/1_000, 'f', 0, 64) + "K"
	default:
		return "$" + strconv.FormatFloat(v, 'f', 0, 64)
	}
}

// ValueChange returns the percentage change from current to predicted. It
// reports false when either value is zero.
func ValueChange(current, predicted float64) (float64, bool) {
	if current == 0 || predicted == 0 {
		return 0, false
	}
	return (predicted - current) / current * 100, true
}

// Similarity converts a backend distance into a 0-100 score. The backend
// computes a Euclidean distance over raw statistics, which is unbounded, so
// the result is clamped.
func Similarity(distance float64) float64 {
	s := 100 - distance
	switch {
	case math.IsNaN(s):
		return 0
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}
