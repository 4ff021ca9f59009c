package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/statvalue/statvalue-companion/internal/storage"
)

func newMigrateCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withManager := func(fn func(*storage.MigrationManager) error) error {
		path := cli.config.Storage.Path
		if err := ensureDir(path); err != nil {
			return err
		}
		mm, err := storage.NewMigrationManager(path)
		if err != nil {
			return err
		}
		defer func() { _ = mm.Close() }()
		return fn(mm)
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mm *storage.MigrationManager) error {
				if err := mm.Up(); err != nil {
					return err
				}
				return printVersion(cmd, mm)
			})
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mm *storage.MigrationManager) error {
				var err error
				if steps > 0 {
					err = mm.Steps(-steps)
				} else {
					err = mm.Down()
				}
				if err != nil {
					return err
				}
				return printVersion(cmd, mm)
			})
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back (0 rolls back all)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mm *storage.MigrationManager) error {
				return printVersion(cmd, mm)
			})
		},
	}

	forceCmd := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark a dirty database as being at VERSION without migrating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withManager(func(mm *storage.MigrationManager) error {
				if err := mm.Force(v); err != nil {
					return err
				}
				return printVersion(cmd, mm)
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, versionCmd, forceCmd)
	return cmd
}

func printVersion(cmd *cobra.Command, mm *storage.MigrationManager) error {
	version, dirty, err := mm.Version()
	if err != nil {
		return err
	}
	state := ""
	if dirty {
		state = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d%s\n", version, state)
	return nil
}
