package charts

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/radar"
)

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title      string   // Chart title
	Subtitle   string   // Chart subtitle
	YAxisLabel string   // Y-axis label
	XAxisLabel string   // X-axis label
	Width      string   // Chart width (e.g., "900px")
	Height     string   // Chart height (e.g., "500px")
	Theme      string   // Chart theme
	ShowLegend bool     // Show legend
	Smooth     bool     // Smooth line (for line charts)
	Colors     []string // Custom colors
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:      "900px",
		Height:     "500px",
		Theme:      "light",
		ShowLegend: true,
		Smooth:     true,
		Colors:     append([]string(nil), radar.DefaultColors...),
	}
}

// ValuePoint is one year of a player's market-value series.
type ValuePoint struct {
	Year      int      `json:"year"`
	Value     float64  `json:"marketValue"`
	Age       *float64 `json:"age,omitempty"`
	Predicted bool     `json:"predicted"`
}

func (c ChartConfig) globalOptions() []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  c.Width,
			Height: c.Height,
			Theme:  c.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    c.Title,
			Subtitle: c.Subtitle,
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(c.ShowLegend),
		}),
	}
}

// RenderRadarHTML writes an interactive radar chart of c. Every indicator
// runs 0-100 and each series keeps the colour assigned by the projector.
func RenderRadarHTML(w io.Writer, c radar.Chart, config ChartConfig) error {
	if len(c.Axes) == 0 {
		return fmt.Errorf("radar chart has no axes")
	}

	rc := charts.NewRadar()

	indicators := make([]*opts.Indicator, len(c.Axes))
	for i, axis := range c.Axes {
		indicators[i] = &opts.Indicator{Name: axis.Label, Max: 100}
	}

	global := append(config.globalOptions(),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "item",
		}),
		charts.WithRadarComponentOpts(opts.RadarComponent{
			Indicator:   indicators,
			Shape:       "polygon",
			SplitNumber: len(c.Rings),
		}),
	)
	rc.SetGlobalOptions(global...)

	for _, s := range c.Series {
		values := make([]float64, len(c.Axes))
		for i, axis := range c.Axes {
			values[i] = round2(s.Values[axis.Feature])
		}
		rc.AddSeries(s.Name, []opts.RadarData{{Name: s.Name, Value: values}},
			charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Color: rgba(s.Color, s.FillOpacity)}),
		)
	}

	if err := rc.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// RenderValueHistoryHTML writes a line chart of market value by year. The
// predicted point, if any, is drawn as a separate series joined to the last
// recorded year.
func RenderValueHistoryHTML(w io.Writer, points []ValuePoint, config ChartConfig) error {
	if len(points) == 0 {
		return fmt.Errorf("no value history provided")
	}

	line := charts.NewLine()

	global := append(config.globalOptions(),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: config.XAxisLabel}),
		charts.WithYAxisOpts(opts.YAxis{Name: config.YAxisLabel}),
	)
	line.SetGlobalOptions(global...)

	colors := config.Colors
	if len(colors) == 0 {
		colors = radar.DefaultColors
	}

	xLabels := make([]string, len(points))
	recorded := make([]opts.LineData, len(points))
	predicted := make([]opts.LineData, len(points))
	hasPrediction := false
	for i, p := range points {
		xLabels[i] = strconv.Itoa(p.Year)
		recorded[i] = opts.LineData{Value: "-"}
		predicted[i] = opts.LineData{Value: "-"}

		if p.Predicted {
			hasPrediction = true
			predicted[i] = opts.LineData{Value: p.Value}
			if i > 0 && !points[i-1].Predicted {
				predicted[i-1] = opts.LineData{Value: points[i-1].Value}
			}
			continue
		}
		recorded[i] = opts.LineData{Value: p.Value}
	}

	line.SetXAxis(xLabels)
	line.AddSeries("Market value", recorded,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(config.Smooth)}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[0]}),
	)
	if hasPrediction {
		line.AddSeries("Predicted", predicted,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[1%len(colors)]}),
		)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// RadarTitle builds the default chart title for a position.
func RadarTitle(pos positions.Position) string {
	return pos.Title() + " comparison"
}

// WriteFile creates path and renders into it.
func WriteFile(path string, render func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create chart directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return render(f)
}

// OpenInBrowser opens the given file path in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

func round2(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return f
}

// rgba converts "#RRGGBB" plus an opacity into a CSS rgba() string.
// Anything else is returned unchanged.
func rgba(hex string, alpha float64) string {
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return hex
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return hex
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", v>>16&0xff, v>>8&0xff, v&0xff, strconv.FormatFloat(alpha, 'f', -1, 64))
}
