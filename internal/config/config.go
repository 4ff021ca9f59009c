// Package config loads and saves the TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/positions"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig      `toml:"server"`
	Backend BackendConfig     `toml:"backend"`
	Cache   CacheConfig       `toml:"cache"`
	Storage StorageConfig     `toml:"storage"`
	Session SessionConfig     `toml:"session"`
	Chart   ChartConfig       `toml:"chart"`
	Log     logging.LogConfig `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	RequestTimeout string   `toml:"request_timeout"` // e.g. "60s"
	AllowedOrigins []string `toml:"allowed_origins"` // CORS origins
	EnableMetrics  bool     `toml:"enable_metrics"`  // serve /metrics
}

// BackendConfig contains settings for the prediction backend.
type BackendConfig struct {
	BaseURL   string  `toml:"base_url"`
	Timeout   string  `toml:"timeout"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
}

// CacheConfig contains Redis cache settings.
type CacheConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
	TTL      string `toml:"ttl"` // e.g. "10m"
}

// StorageConfig contains database settings.
type StorageConfig struct {
	Path        string `toml:"path"`
	AutoMigrate bool   `toml:"auto_migrate"`
}

// SessionConfig contains session settings.
type SessionConfig struct {
	// Secret derives the key that encrypts auth tokens at rest.
	Secret          string `toml:"secret"`
	DefaultPosition string `toml:"default_position"`
	IdleTimeout     string `toml:"idle_timeout"` // stored sessions older than this are purged
}

// ChartConfig contains radar chart settings.
type ChartConfig struct {
	Width        float64 `toml:"width"`
	Height       float64 `toml:"height"`
	Margin       float64 `toml:"margin"`
	StableColors bool    `toml:"stable_colors"` // keep a player's colour while others are removed
	Theme        string  `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			RequestTimeout: "60s",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			EnableMetrics:  true,
		},
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   "30s",
			RateLimit: 10,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			Prefix:  "statvalue:",
			TTL:     "10m",
		},
		Storage: StorageConfig{
			Path:        defaultDataPath("statvalue.db"),
			AutoMigrate: true,
		},
		Session: SessionConfig{
			DefaultPosition: string(positions.Defender),
			IdleTimeout:     "720h",
		},
		Chart: ChartConfig{
			Width:  600,
			Height: 500,
			Margin: 80,
			Theme:  "light",
		},
		Log: logging.LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".statvalue", name)
}

// DefaultPath returns ~/.statvalue/config.toml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".statvalue", "config.toml"), nil
}

// Load loads the configuration from the default path. Returns the default
// config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration at path over the defaults, so keys
// missing from the file keep their default values. A missing file yields
// the defaults.
func LoadFile(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// Save writes the configuration to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The file may hold the session secret and the Redis password.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request timeout %q: %w", c.Server.RequestTimeout, err)
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend base URL %q", c.Backend.BaseURL)
	}
	if _, err := time.ParseDuration(c.Backend.Timeout); err != nil {
		return fmt.Errorf("invalid backend timeout %q: %w", c.Backend.Timeout, err)
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("backend rate limit cannot be negative: %v", c.Backend.RateLimit)
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache is enabled but no address is set")
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache TTL %q: %w", c.Cache.TTL, err)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	if _, err := positions.Parse(c.Session.DefaultPosition); err != nil {
		return fmt.Errorf("invalid default position: %w", err)
	}
	if _, err := time.ParseDuration(c.Session.IdleTimeout); err != nil {
		return fmt.Errorf("invalid session idle timeout %q: %w", c.Session.IdleTimeout, err)
	}

	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart size must be positive: %vx%v", c.Chart.Width, c.Chart.Height)
	}
	if c.Chart.Margin < 0 {
		return fmt.Errorf("chart margin cannot be negative: %v", c.Chart.Margin)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}

	return nil
}

// GetRequestTimeout returns the server request timeout.
func (c *Config) GetRequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.RequestTimeout)
}

// GetBackendTimeout returns the backend client timeout.
func (c *Config) GetBackendTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Backend.Timeout)
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() (time.Duration, error) {
	return time.ParseDuration(c.Cache.TTL)
}

// GetIdleTimeout returns how long an unused stored session is kept.
func (c *Config) GetIdleTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Session.IdleTimeout)
}

// DefaultPosition returns the parsed default position.
func (c *Config) DefaultPosition() positions.Position {
	p, err := positions.Parse(c.Session.DefaultPosition)
	if err != nil {
		return positions.Defender
	}
	return p
}
