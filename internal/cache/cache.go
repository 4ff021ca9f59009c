// Package cache keeps backend player lists and market-value histories in
// Redis so repeated position switches do not refetch the full list.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/normalize"
	"github.com/statvalue/statvalue-companion/internal/positions"
)

// ErrMiss is returned when a key is absent.
var ErrMiss = errors.New("cache miss")

// DefaultPrefix namespaces every key.
const DefaultPrefix = "statvalue:"

// PlayerCache stores decoded backend payloads.
type PlayerCache interface {
	GetPlayers(ctx context.Context, pos positions.Position) ([]normalize.PlayerRecord, error)
	SetPlayers(ctx context.Context, pos positions.Position, players []normalize.PlayerRecord) error
	GetHistory(ctx context.Context, playerName string) ([]backend.HistoryPoint, error)
	SetHistory(ctx context.Context, playerName string, points []backend.HistoryPoint) error
	Invalidate(ctx context.Context, pos positions.Position) error
	Ping(ctx context.Context) error
}

// Options configures a RedisCache.
type Options struct {
	Addr     string        `toml:"addr"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	Prefix   string        `toml:"prefix"`
	TTL      time.Duration `toml:"ttl"`
}

// RedisCache implements PlayerCache on go-redis.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisClient opens a client for opts. It does not contact the server.
func NewRedisClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb redis.UniversalClient, opts Options, logger logging.Logger) *RedisCache {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: logging.OrNop(logger).Named("cache"),
	}
}

// PlayersKey returns the key of a position's player list.
func (c *RedisCache) PlayersKey(pos positions.Position) string {
	return fmt.Sprintf("%splayers:%s", c.prefix, pos)
}

// HistoryKey returns the key of a player's value history.
func (c *RedisCache) HistoryKey(playerName string) string {
	return fmt.Sprintf("%shistory:%s", c.prefix, strings.ToLower(playerName))
}

func (c *RedisCache) get(ctx context.Context, key string, dest any) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// GetPlayers implements PlayerCache.
func (c *RedisCache) GetPlayers(ctx context.Context, pos positions.Position) ([]normalize.PlayerRecord, error) {
	var players []normalize.PlayerRecord
	if err := c.get(ctx, c.PlayersKey(pos), &players); err != nil {
		return nil, err
	}
	return players, nil
}

// SetPlayers implements PlayerCache.
func (c *RedisCache) SetPlayers(ctx context.Context, pos positions.Position, players []normalize.PlayerRecord) error {
	return c.set(ctx, c.PlayersKey(pos), players)
}

// GetHistory implements PlayerCache.
func (c *RedisCache) GetHistory(ctx context.Context, playerName string) ([]backend.HistoryPoint, error) {
	var points []backend.HistoryPoint
	if err := c.get(ctx, c.HistoryKey(playerName), &points); err != nil {
		return nil, err
	}
	return points, nil
}

// SetHistory implements PlayerCache.
func (c *RedisCache) SetHistory(ctx context.Context, playerName string, points []backend.HistoryPoint) error {
	return c.set(ctx, c.HistoryKey(playerName), points)
}

// Invalidate drops a position's player list.
func (c *RedisCache) Invalidate(ctx context.Context, pos positions.Position) error {
	if err := c.rdb.Del(ctx, c.PlayersKey(pos)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// NopCache always misses and discards writes.
type NopCache struct{}

func (NopCache) GetPlayers(context.Context, positions.Position) ([]normalize.PlayerRecord, error) {
	return nil, ErrMiss
}

func (NopCache) SetPlayers(context.Context, positions.Position, []normalize.PlayerRecord) error {
	return nil
}

func (NopCache) GetHistory(context.Context, string) ([]backend.HistoryPoint, error) {
	return nil, ErrMiss
}

func (NopCache) SetHistory(context.Context, string, []backend.HistoryPoint) error { return nil }
func (NopCache) Invalidate(context.Context, positions.Position) error            { return nil }
func (NopCache) Ping(context.Context) error                                      { return nil }
