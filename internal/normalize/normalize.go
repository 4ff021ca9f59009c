// Package normalize scales raw per-player statistics onto a 0-100 range
// relative to the best value among the players being compared.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/statvalue/statvalue-companion/internal/logging"
)

// Scale is the value assigned to the player holding the maximum.
const Scale = 100.0

// PlayerRecord is a decoded backend player object. Statistic values may be
// numbers, numeric strings, other strings or absent.
type PlayerRecord map[string]any

// Name returns the display name, which is also the record's identity key.
func (r PlayerRecord) Name() string { return stringField(r, "name") }

// Nation returns the player's nationality.
func (r PlayerRecord) Nation() string { return stringField(r, "Nation") }

// Squad returns the player's club, if present.
func (r PlayerRecord) Squad() string { return stringField(r, "Squad") }

func stringField(r PlayerRecord, key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Vector holds one player's values keyed by feature.
type Vector struct {
	Name   string             `json:"name"`
	Values map[string]float64 `json:"values"`
}

// Coerce converts a raw statistic into a number. Missing values, strings
// that do not parse and non-finite numbers all become 0.
func Coerce(v any) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// MaxValues returns the largest coerced value of each feature across
// players. The running max starts at 0.
func MaxValues(players []PlayerRecord, features []string) map[string]float64 {
	maxes := make(map[string]float64, len(features))
	for _, feature := range features {
		max := 0.0
		for _, p := range players {
			if v := Coerce(p[feature]); v > max {
				max = v
			}
		}
		maxes[feature] = max
	}
	return maxes
}

// Normalizer scales player statistics. The zero value is usable.
type Normalizer struct {
	logger logging.Logger
}

// NewNormalizer creates a Normalizer that logs its max table at debug level.
func NewNormalizer(logger logging.Logger) *Normalizer {
	return &Normalizer{logger: logging.OrNop(logger)}
}

// Normalize maps each player's raw value of every feature onto 0-100
// relative to the per-feature maximum. A feature whose maximum is 0 uses a
// divisor of 1, so every player scores 0 on it. Output order matches input
// order and no clamping is applied.
func (n *Normalizer) Normalize(players []PlayerRecord, features []string) []Vector {
	out := make([]Vector, 0, len(players))
	if len(players) == 0 {
		return out
	}

	maxes := MaxValues(players, features)
	if n != nil && n.logger != nil {
		n.logger.Debug("normalizing stats",
			logging.Int("players", len(players)),
			logging.Any("features", features),
			logging.Any("max_values", maxes))
	}

	for _, p := range players {
		values := make(map[string]float64, len(features))
		for _, feature := range features {
			divisor := maxes[feature]
			if divisor <= 0 {
				divisor = 1
			}
			values[feature] = Coerce(p[feature]) / divisor * Scale
		}
		out = append(out, Vector{Name: p.Name(), Values: values})
	}
	return out
}

// Normalize is a convenience wrapper around a silent Normalizer.
func Normalize(players []PlayerRecord, features []string) []Vector {
	var n Normalizer
	return n.Normalize(players, features)
}

// RawStats returns the coerced, unscaled values of the given features for
// each player, in input order.
func RawStats(players []PlayerRecord, features []string) []Vector {
	out := make([]Vector, 0, len(players))
	for _, p := range players {
		values := make(map[string]float64, len(features))
		for _, feature := range features {
			values[feature] = Coerce(p[feature])
		}
		out = append(out, Vector{Name: p.Name(), Values: values})
	}
	return out
}
