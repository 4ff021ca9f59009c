package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/session"
)

func TestDisplayComparison(t *testing.T) {
	results := []session.ComparisonResult{
		{
			Player:     session.PlayerDetails{Name: "Bukayo Saka"},
			Stats:      map[string]float64{"Goals": 16},
			Normalized: map[string]float64{"Goals": 59.26},
		},
		{
			Player:     session.PlayerDetails{Name: "Erling Haaland"},
			Stats:      map[string]float64{"Goals": 27},
			Normalized: map[string]float64{"Goals": 100},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewDisplayer(&buf).DisplayComparison(positions.Forward, results))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 1+len(positions.Features(positions.Forward)))
	assert.Contains(t, lines[0], "Bukayo Saka")
	assert.Contains(t, lines[0], "Erling Haaland")
	assert.Contains(t, out, "(100)")
	assert.Contains(t, out, "(59)")
}

func TestDisplayComparison_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDisplayer(&buf).DisplayComparison(positions.Forward, nil))
	assert.Equal(t, "No players selected.\n", buf.String())
}

func TestDisplayDetails(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDisplayer(&buf).DisplayDetails([]session.PlayerDetails{{
		Name:   "William Saliba",
		Nation: "FRA",
		Fields: []session.DetailField{
			{Key: "Age", Label: "Age", Value: "24"},
			{Key: "Squad", Label: "Squad", Value: "Arsenal"},
		},
	}}))

	assert.Equal(t, "William Saliba [FRA]\n├─ Age: 24\n└─ Squad: Arsenal\n", buf.String())
}

func TestDisplayPrediction(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDisplayer(&buf).DisplayPrediction(&backend.Prediction{
		PlayerName:      "Bukayo Saka",
		Year:            2026,
		CurrentValue:    100_000_000,
		PredictedValue:  125_000_000,
		ConfidenceLevel: "High (85%)",
	}))
	assert.Equal(t, "Bukayo Saka in 2026: $125.0M (+25.0% from $100.0M), confidence High (85%)\n", buf.String())

	buf.Reset()
	require.NoError(t, NewDisplayer(&buf).DisplayPrediction(&backend.Prediction{PlayerName: "X", Year: 2026, PredictedValue: 500}))
	assert.Equal(t, "X in 2026: $500, confidence \n", buf.String())
}
