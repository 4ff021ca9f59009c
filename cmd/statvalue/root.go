package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/statvalue/statvalue-companion/internal/config"
	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/version"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

type cliContext struct {
	configPath string
	config     *config.Config
	logger     logging.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cli := &cliContext{}

	cmd := &cobra.Command{
		Use:     "statvalue",
		Short:   "Compare football players on per-position radar charts",
		Version: version.String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.init(opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cli.logger != nil {
				_ = cli.logger.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (default: ~/.statvalue/config.toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCommand(cli),
		newCompareCommand(cli),
		newPredictCommand(cli),
		newMigrateCommand(cli),
		newBackupCommand(cli),
		newExportCommand(cli),
		newConfigCommand(cli),
	)
	return cmd
}

func (c *cliContext) init(opts *rootOptions) error {
	path := opts.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	c.configPath = path

	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	c.config = cfg

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}
