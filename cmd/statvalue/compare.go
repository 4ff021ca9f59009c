package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/statvalue/statvalue-companion/internal/cache"
	"github.com/statvalue/statvalue-companion/internal/charts"
	"github.com/statvalue/statvalue-companion/internal/display"
	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/session"
)

func newCompareCommand(cli *cliContext) *cobra.Command {
	var (
		position string
		players  []string
		output   string
		open     bool
		details  bool
	)

	cmd := &cobra.Command{
		Use:   "compare --position POSITION --player NAME --player NAME [...]",
		Short: "Compare up to four players and render their radar chart",
		Example: `  statvalue compare -P forward -n "Bukayo Saka" -n "Cole Palmer" -o saka-palmer.svg
  statvalue compare -P defender -n "William Saliba" -n "Gabriel" -o defenders.html --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := positions.Parse(position)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, cleanup, err := newCLISession(ctx, cli)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := s.SetPosition(ctx, pos); err != nil {
				return err
			}
			for _, name := range players {
				if _, err := s.Select(ctx, name); err != nil {
					return err
				}
			}

			results, err := s.Compare(ctx)
			if err != nil {
				return err
			}
			disp := display.NewDisplayer(cmd.OutOrStdout())
			if err := disp.DisplayComparison(pos, results); err != nil {
				return err
			}
			if details {
				fmt.Fprintln(cmd.OutOrStdout())
				if err := disp.DisplayDetails(s.Details()); err != nil {
					return err
				}
			}

			if output == "" {
				return nil
			}
			if err := renderChart(s, cli, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nChart written to %s\n", output)

			if open {
				return charts.OpenInBrowser(output)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&position, "position", "P", "", "position: defender, forward, goalkeeper or midfielder")
	f.StringArrayVarP(&players, "player", "n", nil, "player name (repeat for each player, at most 4)")
	f.StringVarP(&output, "output", "o", "", "write the chart to this .svg or .html file")
	f.BoolVar(&open, "open", false, "open the chart in the default browser")
	f.BoolVar(&details, "details", false, "also print each player's profile")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}

func newPredictCommand(cli *cliContext) *cobra.Command {
	var (
		year int
		out  string
		open bool
	)

	cmd := &cobra.Command{
		Use:   "predict NAME",
		Short: "Predict a player's market value and plot it against its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, cleanup, err := newCLISession(ctx, cli)
			if err != nil {
				return err
			}
			defer cleanup()

			if year == 0 {
				year = s.PredictionYears()[1]
			}
			p, err := s.Predict(ctx, args[0], year)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if err := display.NewDisplayer(w).DisplayPrediction(p); err != nil {
				return err
			}

			if out == "" {
				return nil
			}
			if _, err := s.History(ctx, p.PlayerName); err != nil {
				return err
			}
			cfg := newChartSettings(cli.config).Get()
			cfg.Title = p.PlayerName + " market value"
			series := s.ValueSeries()
			if err := charts.WriteFile(out, func(w io.Writer) error {
				return charts.RenderValueHistoryHTML(w, series, cfg)
			}); err != nil {
				return err
			}
			fmt.Fprintf(w, "Chart written to %s\n", out)
			if open {
				return charts.OpenInBrowser(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&year, "year", "y", 0, "target year (default: next year)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the value history chart to this .html file")
	cmd.Flags().BoolVar(&open, "open", false, "open the chart in the default browser")
	return cmd
}

// newCLISession builds a standalone session against the configured backend.
// The returned cleanup closes the session and the cache connection.
func newCLISession(ctx context.Context, cli *cliContext) (*session.Session, func(), error) {
	client, err := newBackendClient(cli.config, cli.logger, nil)
	if err != nil {
		return nil, nil, err
	}
	playerCache, closeCache, err := newCache(ctx, cli.config, cli.logger)
	if err != nil {
		return nil, nil, err
	}

	loader := cache.NewCachedLoader(client, playerCache, cli.logger)
	s := session.New("cli", sessionOptions(cli.config, cli.logger, loader, nil))
	return s, func() {
		s.Close()
		closeCache()
	}, nil
}

func renderChart(s *session.Session, cli *cliContext, path string) error {
	chart := s.Chart()
	title := charts.RadarTitle(s.Position())

	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		return charts.WriteFile(path, func(w io.Writer) error {
			return charts.RenderRadarSVG(w, chart, title)
		})
	case ".html", ".htm":
		cfg := newChartSettings(cli.config).Get()
		cfg.Title = title
		return charts.WriteFile(path, func(w io.Writer) error {
			return charts.RenderRadarHTML(w, chart, cfg)
		})
	default:
		return errors.New("output must end in .svg or .html")
	}
}
