package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/statvalue/statvalue-companion/internal/export"
	"github.com/statvalue/statvalue-companion/internal/storage"
)

func newExportCommand(cli *cliContext) *cobra.Command {
	var (
		format    string
		output    string
		limit     int
		pretty    bool
		overwrite bool
	)

	run := func(cmd *cobra.Command, kind, sessionID string) error {
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}

		if err := ensureDir(cli.config.Storage.Path); err != nil {
			return err
		}
		db, err := storage.Open(storage.DefaultConfig(cli.config.Storage.Path))
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() { _ = db.Close() }()

		repo := storage.NewHistoryRepository(db)
		var rows interface{}
		switch kind {
		case "comparisons":
			list, err := repo.ListComparisons(cmd.Context(), sessionID, limit)
			if err != nil {
				return err
			}
			rows = export.ComparisonRows(list)
		default:
			list, err := repo.ListPredictions(cmd.Context(), sessionID, limit)
			if err != nil {
				return err
			}
			rows = export.PredictionRows(list)
		}

		if output == "" {
			return export.ExportToWriter(cmd.OutOrStdout(), f, rows, pretty)
		}
		if output == "auto" {
			output = export.GenerateFilename(kind, f, time.Now())
		}
		if err := export.NewExporter(export.Options{
			Format:     f,
			FilePath:   output,
			PrettyJSON: pretty,
			Overwrite:  overwrite,
		}).Export(rows); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", kind, output)
		return nil
	}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored comparison and prediction history",
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&format, "format", "f", "csv", "output format (csv, json)")
	pf.StringVarP(&output, "output", "o", "", `output file, "auto" for a timestamped name (default: stdout)`)
	pf.IntVar(&limit, "limit", storage.DefaultHistoryLimit, "maximum number of records")
	pf.BoolVar(&pretty, "pretty", false, "indent JSON output")
	pf.BoolVar(&overwrite, "overwrite", false, "replace an existing output file")

	for _, kind := range []string{"comparisons", "predictions"} {
		cmd.AddCommand(&cobra.Command{
			Use:   kind + " SESSION_ID",
			Short: "Export the " + kind + " of a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, kind, args[0])
			},
		})
	}
	return cmd
}
