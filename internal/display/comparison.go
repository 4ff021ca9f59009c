// Package display prints comparisons and predictions for the terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/session"
)

// Displayer writes readable tables to w.
type Displayer struct {
	w io.Writer
}

// NewDisplayer creates a new displayer writing to w.
func NewDisplayer(w io.Writer) *Displayer {
	return &Displayer{w: w}
}

// DisplayComparison prints one row per stat of pos, with each player's raw
// value and its normalized score in parentheses.
func (d *Displayer) DisplayComparison(pos positions.Position, results []session.ComparisonResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(d.w, "No players selected.")
		return err
	}

	tw := tabwriter.NewWriter(d.w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "STAT")
	for _, r := range results {
		fmt.Fprintf(tw, "\t%s", r.Player.Name)
	}
	fmt.Fprintln(tw)

	for _, f := range positions.Features(pos) {
		fmt.Fprint(tw, positions.Label(f))
		for _, r := range results {
			fmt.Fprintf(tw, "\t%s (%.0f)", session.FormatValue(r.Stats[f]), r.Normalized[f])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// DisplayDetails prints each player's profile as a tree.
func (d *Displayer) DisplayDetails(details []session.PlayerDetails) error {
	var b strings.Builder
	for _, p := range details {
		fmt.Fprintf(&b, "%s", p.Name)
		if p.Nation != "" {
			fmt.Fprintf(&b, " [%s]", p.Nation)
		}
		b.WriteByte('\n')

		for i, f := range p.Fields {
			prefix := "├─"
			if i == len(p.Fields)-1 {
				prefix = "└─"
			}
			fmt.Fprintf(&b, "%s %s: %s\n", prefix, f.Label, f.Value)
		}
	}
	_, err := io.WriteString(d.w, b.String())
	return err
}

// DisplayPrediction prints a one-line prediction summary. The change is
// omitted when there is no current value to compare against.
func (d *Displayer) DisplayPrediction(p *backend.Prediction) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s in %d: %s", p.PlayerName, p.Year, session.FormatMarketValue(p.PredictedValue))
	if change, ok := session.ValueChange(p.CurrentValue, p.PredictedValue); ok {
		fmt.Fprintf(&b, " (%+.1f%% from %s)", change, session.FormatMarketValue(p.CurrentValue))
	}
	fmt.Fprintf(&b, ", confidence %s\n", p.ConfidenceLevel)
	_, err := io.WriteString(d.w, b.String())
	return err
}
