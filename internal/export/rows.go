package export

import (
	"sort"
	"time"

	"github.com/statvalue/statvalue-companion/internal/storage"
)

// ComparisonRow is one normalized stat of one player in a stored comparison.
type ComparisonRow struct {
	ComparisonID int64     `csv:"comparison_id" json:"comparisonId"`
	SessionID    string    `csv:"session_id" json:"sessionId"`
	Position     string    `csv:"position" json:"position"`
	Player       string    `csv:"player" json:"player"`
	Stat         string    `csv:"stat" json:"stat"`
	Normalized   float64   `csv:"normalized" json:"normalized"`
	CreatedAt    time.Time `csv:"created_at" json:"createdAt"`
}

// PredictionRow is a stored prediction with its change from the current value.
type PredictionRow struct {
	ID             int64     `csv:"id" json:"id"`
	SessionID      string    `csv:"session_id" json:"sessionId"`
	Player         string    `csv:"player" json:"player"`
	Year           int       `csv:"year" json:"year"`
	CurrentValue   float64   `csv:"current_value" json:"currentValue"`
	PredictedValue float64   `csv:"predicted_value" json:"predictedValue"`
	ChangePercent  float64   `csv:"change_percent" json:"changePercent"`
	Confidence     string    `csv:"confidence" json:"confidence"`
	CreatedAt      time.Time `csv:"created_at" json:"createdAt"`
}

// ComparisonRows flattens comparisons into rows, keeping the players in
// selection order and the stats of each player sorted by name.
func ComparisonRows(comparisons []storage.StoredComparison) []ComparisonRow {
	rows := []ComparisonRow{}
	for _, c := range comparisons {
		for _, player := range c.Players {
			stats := c.Normalized[player]
			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				rows = append(rows, ComparisonRow{
					ComparisonID: c.ID,
					SessionID:    c.SessionID,
					Position:     c.Position,
					Player:       player,
					Stat:         k,
					Normalized:   stats[k],
					CreatedAt:    c.CreatedAt,
				})
			}
		}
	}
	return rows
}

// PredictionRows converts predictions into rows. The change is zero when
// the current value is zero.
func PredictionRows(predictions []storage.StoredPrediction) []PredictionRow {
	rows := make([]PredictionRow, 0, len(predictions))
	for _, p := range predictions {
		var change float64
		if p.CurrentValue != 0 {
			change = (p.PredictedValue - p.CurrentValue) / p.CurrentValue * 100
		}
		rows = append(rows, PredictionRow{
			ID:             p.ID,
			SessionID:      p.SessionID,
			Player:         p.PlayerName,
			Year:           p.Year,
			CurrentValue:   p.CurrentValue,
			PredictedValue: p.PredictedValue,
			ChangePercent:  change,
			Confidence:     p.Confidence,
			CreatedAt:      p.CreatedAt,
		})
	}
	return rows
}
