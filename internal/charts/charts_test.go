package charts

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statvalue/statvalue-companion/internal/normalize"
	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/radar"
)

func forwardChart(t *testing.T) radar.Chart {
	t.Helper()
	players := []normalize.PlayerRecord{
		{"name": "Saka", "Goals": 16, "SoT": 40, "Assists": 9},
		{"name": "Ødegaard & Co", "Goals": 8, "SoT": 20, "Assists": 10},
	}
	features := positions.Features(positions.Forward)
	return radar.Project(normalize.Normalize(players, features), features, radar.DefaultOptions())
}

func TestRenderRadarSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderRadarSVG(&buf, forwardChart(t), "Forward comparison"))

	svg := buf.String()
	assert.True(t, strings.HasPrefix(svg, "<svg "))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(svg), "</svg>"))
	assert.Equal(t, 5+2*7, strings.Count(svg, "<circle"), "rings plus markers")
	assert.Equal(t, 2, strings.Count(svg, "<polygon"))
	assert.Contains(t, svg, `fill-opacity="0.3"`)
	assert.Contains(t, svg, `stroke-width="2"`)
	assert.Contains(t, svg, `text-anchor="end"`)
	assert.Contains(t, svg, "Shots on Target")
	assert.Contains(t, svg, "Ødegaard &amp; Co")
	assert.NotContains(t, svg, emptyMessage)
}

func TestRenderRadarSVG_Placeholder(t *testing.T) {
	features := positions.Features(positions.Goalkeeper)
	c := radar.Project(nil, features, radar.DefaultOptions())

	var buf bytes.Buffer
	require.NoError(t, RenderRadarSVG(&buf, c, ""))

	assert.Contains(t, buf.String(), emptyMessage)
	assert.NotContains(t, buf.String(), "<polygon")
	assert.Equal(t, len(features), strings.Count(buf.String(), "<line"))
}

func TestRenderRadarHTML(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultChartConfig()
	cfg.Title = "Forward comparison"

	require.NoError(t, RenderRadarHTML(&buf, forwardChart(t), cfg))

	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Saka")
	assert.Contains(t, html, "#4F46E5")
}

func TestRenderRadarHTML_NoAxes(t *testing.T) {
	var buf bytes.Buffer
	err := RenderRadarHTML(&buf, radar.Chart{}, DefaultChartConfig())
	assert.Error(t, err)
}

func TestRenderValueHistoryHTML(t *testing.T) {
	points := []ValuePoint{
		{Year: 2023, Value: 90},
		{Year: 2024, Value: 120},
		{Year: 2026, Value: 150, Predicted: true},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderValueHistoryHTML(&buf, points, DefaultChartConfig()))

	html := buf.String()
	assert.Contains(t, html, "Market value")
	assert.Contains(t, html, "Predicted")
	assert.Contains(t, html, "2026")
}

func TestRenderValueHistoryHTML_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderValueHistoryHTML(&buf, nil, DefaultChartConfig()))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "chart.svg")

	err := WriteFile(path, func(w io.Writer) error {
		return RenderRadarSVG(w, forwardChart(t), "")
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "rgba(79, 70, 229, 0.3)", rgba("#4F46E5", 0.3))
	assert.Equal(t, "red", rgba("red", 0.3))
	assert.Equal(t, "0", num(-0.001))
	assert.Equal(t, "170", num(170))
	assert.Equal(t, "-85.5", num(-85.5))
	assert.Equal(t, 12.35, round2(12.345678))
	assert.Equal(t, "Defender comparison", RadarTitle(positions.Defender))
}
