// Package radar projects normalized player vectors onto a polar chart
// description. Rendering the description is left to internal/charts.
package radar

import (
	"math"

	"github.com/statvalue/statvalue-companion/internal/normalize"
	"github.com/statvalue/statvalue-companion/internal/positions"
)

// Label placement thresholds on the unit circle.
const anchorThreshold = 0.1

// Point is a position relative to the chart centre.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Axis is one spoke of the chart.
type Axis struct {
	Feature  string  `json:"feature"`
	Label    string  `json:"label"`
	Angle    float64 `json:"angle"`
	End      Point   `json:"end"`
	LabelPos Point   `json:"label_pos"`
	Anchor   string  `json:"anchor"`
	DY       string  `json:"dy"`
}

// Ring is a concentric grid circle.
type Ring struct {
	Value  float64 `json:"value"`
	Radius float64 `json:"radius"`
}

// Series is one player's polygon.
type Series struct {
	Name         string             `json:"name"`
	Color        string             `json:"color"`
	Points       []Point            `json:"points"`
	Values       map[string]float64 `json:"values"`
	Closed       bool               `json:"closed"`
	FillOpacity  float64            `json:"fill_opacity"`
	StrokeWidth  float64            `json:"stroke_width"`
	MarkerRadius float64            `json:"marker_radius"`
}

// LegendEntry pairs a player with its colour.
type LegendEntry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Chart is a complete, renderer-agnostic radar chart.
type Chart struct {
	Width  float64       `json:"width"`
	Height float64       `json:"height"`
	Center Point         `json:"center"`
	Radius float64       `json:"radius"`
	Axes   []Axis        `json:"axes"`
	Rings  []Ring        `json:"rings"`
	Series []Series      `json:"series"`
	Legend []LegendEntry `json:"legend"`
	Empty  bool          `json:"empty"`
}

// Options controls chart geometry and colouring.
type Options struct {
	Width       float64
	Height      float64
	Margin      float64
	Ticks       []float64
	LabelRadius float64
	Palette     Palette
}

// DefaultOptions returns the standard 600x500 layout.
func DefaultOptions() Options {
	return Options{
		Width:       600,
		Height:      500,
		Margin:      80,
		Ticks:       []float64{20, 40, 60, 80, 100},
		LabelRadius: 110,
		Palette:     IndexPalette{},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Margin < 0 {
		o.Margin = d.Margin
	}
	if len(o.Ticks) == 0 {
		o.Ticks = d.Ticks
	}
	if o.LabelRadius <= 0 {
		o.LabelRadius = d.LabelRadius
	}
	if o.Palette == nil {
		o.Palette = d.Palette
	}
	return o
}

// Radius returns the outer radius for the given canvas, never negative.
func (o Options) Radius() float64 {
	r := math.Min(o.Width, o.Height)/2 - o.Margin
	if r < 0 {
		return 0
	}
	return r
}

// AxisAngles returns the angle of each of n axes, starting straight up and
// proceeding clockwise in screen coordinates.
func AxisAngles(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)*2*math.Pi/float64(n) - math.Pi/2
	}
	return out
}

// Polar converts a 0-100 value at angle into a centre-relative point on a
// chart of outer radius r.
func Polar(r, value, angle float64) Point {
	scaled := r * value / 100
	return Point{X: scaled * math.Cos(angle), Y: scaled * math.Sin(angle)}
}

func labelAnchor(angle float64) (string, string) {
	cos, sin := math.Cos(angle), math.Sin(angle)

	anchor := "middle"
	switch {
	case cos < -anchorThreshold:
		anchor = "end"
	case cos > anchorThreshold:
		anchor = "start"
	}

	dy := "0.3em"
	switch {
	case sin < -anchorThreshold:
		dy = "-0.5em"
	case sin > anchorThreshold:
		dy = "1em"
	}
	return anchor, dy
}

// Project builds the chart description for the given vectors. Vectors are
// drawn in order; missing values project to the centre. With no vectors or
// no features the chart is marked Empty and carries only its grid.
func Project(vectors []normalize.Vector, features []string, opts Options) Chart {
	opts = opts.withDefaults()
	r := opts.Radius()

	c := Chart{
		Width:  opts.Width,
		Height: opts.Height,
		Center: Point{X: opts.Width / 2, Y: opts.Height / 2},
		Radius: r,
	}

	for _, tick := range opts.Ticks {
		c.Rings = append(c.Rings, Ring{Value: tick, Radius: r * tick / 100})
	}

	angles := AxisAngles(len(features))
	for i, feature := range features {
		anchor, dy := labelAnchor(angles[i])
		c.Axes = append(c.Axes, Axis{
			Feature:  feature,
			Label:    positions.Label(feature),
			Angle:    angles[i],
			End:      Polar(r, 100, angles[i]),
			LabelPos: Polar(r, opts.LabelRadius, angles[i]),
			Anchor:   anchor,
			DY:       dy,
		})
	}

	if len(vectors) == 0 || len(features) == 0 {
		c.Empty = true
		return c
	}

	for i, v := range vectors {
		color := opts.Palette.Color(i, v.Name)
		s := Series{
			Name:         v.Name,
			Color:        color,
			Points:       make([]Point, 0, len(features)),
			Values:       make(map[string]float64, len(features)),
			Closed:       true,
			FillOpacity:  0.3,
			StrokeWidth:  2,
			MarkerRadius: 4,
		}
		for j, feature := range features {
			val := v.Values[feature]
			s.Values[feature] = val
			s.Points = append(s.Points, Polar(r, val, angles[j]))
		}
		c.Series = append(c.Series, s)
		c.Legend = append(c.Legend, LegendEntry{Name: v.Name, Color: color})
	}
	return c
}
