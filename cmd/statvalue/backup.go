package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/statvalue/statvalue-companion/internal/storage"
)

func newBackupCommand(cli *cliContext) *cobra.Command {
	var (
		dir  string
		keep int
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the session database",
		RunE: func(cmd *cobra.Command, args []string) error {
			bm := storage.NewBackupManager(cli.config.Storage.Path)
			path, err := bm.Backup(cmd.Context(), &storage.BackupConfig{BackupDir: dir, Keep: keep})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "backup directory (default: backups next to the database)")
	cmd.Flags().IntVar(&keep, "keep", storage.DefaultBackupConfig().Keep, "number of backups to keep (0 keeps all)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			bm := storage.NewBackupManager(cli.config.Storage.Path)
			backups, err := bm.ListBackups(dir)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tCREATED\tSHA256")
			for _, b := range backups {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%.12s\n", b.Name, b.Size, b.ModTime.Format("2006-01-02 15:04"), b.Checksum)
			}
			return tw.Flush()
		},
	}

	restoreCmd := &cobra.Command{
		Use:   "restore FILE",
		Short: "Replace the database with a backup (stop the server first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bm := storage.NewBackupManager(cli.config.Storage.Path)
			if err := bm.Restore(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", cli.config.Storage.Path, args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, restoreCmd)
	return cmd
}
