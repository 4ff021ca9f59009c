package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/cache"
	"github.com/statvalue/statvalue-companion/internal/charts"
	"github.com/statvalue/statvalue-companion/internal/config"
	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/metrics"
	"github.com/statvalue/statvalue-companion/internal/radar"
	"github.com/statvalue/statvalue-companion/internal/session"
	"github.com/statvalue/statvalue-companion/internal/version"
)

// newBackendClient builds the backend client from cfg.
func newBackendClient(cfg *config.Config, logger logging.Logger, recorder backend.Recorder) (*backend.Client, error) {
	timeout, err := cfg.GetBackendTimeout()
	if err != nil {
		return nil, err
	}
	return backend.NewClient(backend.ClientOptions{
		BaseURL:   cfg.Backend.BaseURL,
		RateLimit: rate.Limit(cfg.Backend.RateLimit),
		Timeout:   timeout,
		UserAgent: version.UserAgent(),
		Logger:    logger,
		Recorder:  recorder,
	}), nil
}

// newCache connects to Redis when the cache is enabled. The returned
// cleanup closes the connection.
func newCache(ctx context.Context, cfg *config.Config, logger logging.Logger) (cache.PlayerCache, func(), error) {
	if !cfg.Cache.Enabled {
		return cache.NopCache{}, func() {}, nil
	}

	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, nil, err
	}
	opts := cache.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		Prefix:   cfg.Cache.Prefix,
		TTL:      ttl,
	}
	rdb := cache.NewRedisClient(opts)
	c := cache.NewRedisCache(rdb, opts, logger)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, continuing without a warm cache",
			logging.String("addr", opts.Addr), logging.Err(err))
	}
	return c, func() { _ = rdb.Close() }, nil
}

// radarOptions maps the chart settings onto the projector's options.
func radarOptions(cfg *config.Config) radar.Options {
	opts := radar.DefaultOptions()
	opts.Width = cfg.Chart.Width
	opts.Height = cfg.Chart.Height
	opts.Margin = cfg.Chart.Margin
	return opts
}

// sessionOptions builds the shared session options. loader, emitter,
// recorder and history may be nil.
func sessionOptions(cfg *config.Config, logger logging.Logger, loader session.Loader, m *metrics.Metrics) session.Options {
	opts := session.Options{
		Loader:       loader,
		Logger:       logger,
		Chart:        radarOptions(cfg),
		StableColors: cfg.Chart.StableColors,
	}
	if m != nil {
		opts.Recorder = m
	}
	return opts
}

// chartSettings holds the HTML chart configuration so a reloaded config
// file can change it while serving.
type chartSettings struct {
	v atomic.Pointer[charts.ChartConfig]
}

func newChartSettings(cfg *config.Config) *chartSettings {
	s := &chartSettings{}
	s.Update(cfg)
	return s
}

// Update applies the chart section of cfg.
func (s *chartSettings) Update(cfg *config.Config) {
	c := charts.DefaultChartConfig()
	c.Width = fmt.Sprintf("%.0fpx", cfg.Chart.Width)
	c.Height = fmt.Sprintf("%.0fpx", cfg.Chart.Height)
	if cfg.Chart.Theme != "" {
		c.Theme = cfg.Chart.Theme
	}
	s.v.Store(&c)
}

// Get returns the current configuration.
func (s *chartSettings) Get() charts.ChartConfig {
	return *s.v.Load()
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	return nil
}
