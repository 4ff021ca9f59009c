package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/statvalue/statvalue-companion/internal/api"
	"github.com/statvalue/statvalue-companion/internal/cache"
	"github.com/statvalue/statvalue-companion/internal/config"
	"github.com/statvalue/statvalue-companion/internal/events"
	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/metrics"
	"github.com/statvalue/statvalue-companion/internal/session"
	"github.com/statvalue/statvalue-companion/internal/storage"
)

const purgeInterval = time.Hour

func newServeCommand(cli *cliContext) *cobra.Command {
	var (
		port  int
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				cli.config.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cli, watch)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "API server port (overrides the config file)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload log level and chart settings when the config file changes")
	return cmd
}

func serve(ctx context.Context, cli *cliContext, watch bool) error {
	cfg, logger := cli.config, cli.logger

	m := metrics.New()

	client, err := newBackendClient(cfg, logger, m)
	if err != nil {
		return err
	}

	playerCache, closeCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()
	loader := cache.NewCachedLoader(client, playerCache, logger)

	if err := ensureDir(cfg.Storage.Path); err != nil {
		return err
	}
	dbConfig := storage.DefaultConfig(cfg.Storage.Path)
	dbConfig.AutoMigrate = cfg.Storage.AutoMigrate
	db, err := storage.Open(dbConfig)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("error closing database", logging.Err(err))
		}
	}()
	logger.Info("database opened", logging.String("path", db.Path()))

	if cfg.Session.Secret == "" {
		logger.Warn("no session secret configured, signed-in sessions cannot be persisted")
	}
	cipher := storage.NewTokenCipher(storage.DefaultEncryptionConfig(cfg.Session.Secret))
	sessionRepo := storage.NewSessionRepository(db, cipher)
	historyRepo := storage.NewHistoryRepository(db)

	dispatcher := events.NewEventDispatcher(logger)
	dispatcher.Register(events.NewLoggingObserver(logger, cfg.Log.Level == "debug"))

	opts := sessionOptions(cfg, logger, loader, m)
	opts.Emitter = dispatcher
	opts.History = historyRepo
	manager := session.NewManager(opts, sessionRepo)
	defer manager.Close()

	timeout, err := cfg.GetRequestTimeout()
	if err != nil {
		return err
	}
	chart := newChartSettings(cfg)
	deps := api.Deps{
		Sessions: manager,
		Backend:  client,
		History:  historyRepo,
		Metrics:  m,
		Chart:    chart.Get,
		Logger:   logger,
	}
	if cfg.Cache.Enabled {
		deps.Cache = playerCache
	}
	server := api.NewServer(&api.Config{
		Port:           cfg.Server.Port,
		RequestTimeout: timeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		EnableMetrics:  cfg.Server.EnableMetrics,
	}, deps)
	dispatcher.Register(server.NewWebSocketObserver())

	if err := server.Start(); err != nil {
		return err
	}
	logger.Info("serving",
		logging.Int("port", cfg.Server.Port),
		logging.String("backend", cfg.Backend.BaseURL),
		logging.Bool("cache", cfg.Cache.Enabled))

	if watch {
		go func() {
			err := config.Watch(ctx, cli.configPath, func(next *config.Config) {
				logger.SetLevel(next.Log.Level)
				chart.Update(next)
				logger.Info("configuration reloaded", logging.String("log_level", next.Log.Level))
			}, func(err error) {
				logger.Warn("ignoring invalid configuration", logging.Err(err))
			})
			if err != nil {
				logger.Warn("config watch disabled", logging.Err(err))
			}
		}()
	}

	if idle, err := cfg.GetIdleTimeout(); err == nil && idle > 0 {
		purger := storage.NewPurgeScheduler(sessionRepo, &storage.SchedulerConfig{
			Interval:         purgeInterval,
			MaxIdle:          idle,
			StartImmediately: true,
			OnPurge: func(n int64, err error) {
				switch {
				case err != nil:
					logger.Warn("session purge failed", logging.Err(err))
				case n > 0:
					logger.Info("purged idle sessions", logging.Int("count", int(n)))
				}
			},
		})
		if err := purger.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = purger.Stop() }()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
