package cache

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/normalize"
	"github.com/statvalue/statvalue-companion/internal/positions"
)

// Source is the subset of the backend client a session depends on.
type Source interface {
	ListPlayers(ctx context.Context, pos positions.Position) ([]normalize.PlayerRecord, error)
	SimilarPlayers(ctx context.Context, ref backend.PlayerRef, pos positions.Position) ([]backend.SimilarPlayer, error)
	Predict(ctx context.Context, playerName string, year int) (*backend.Prediction, error)
	PredictionPlayers(ctx context.Context) ([]backend.PredictionPlayer, error)
	PlayerHistory(ctx context.Context, playerName string) ([]backend.HistoryPoint, error)
}

// CachedLoader reads player lists and histories through a PlayerCache and
// passes every other call straight to the Source. Concurrent loads of the
// same key share one backend request. Cache failures are logged and never
// fail the call.
type CachedLoader struct {
	Source
	cache  PlayerCache
	group  singleflight.Group
	logger logging.Logger
}

// NewCachedLoader wraps src. A nil cache behaves like NopCache.
func NewCachedLoader(src Source, c PlayerCache, logger logging.Logger) *CachedLoader {
	if c == nil {
		c = NopCache{}
	}
	return &CachedLoader{
		Source: src,
		cache:  c,
		logger: logging.OrNop(logger).Named("cache"),
	}
}

// ListPlayers implements Source.
func (l *CachedLoader) ListPlayers(ctx context.Context, pos positions.Position) ([]normalize.PlayerRecord, error) {
	players, err := l.cache.GetPlayers(ctx, pos)
	if err == nil {
		return players, nil
	}
	if !errors.Is(err, ErrMiss) {
		l.logger.Warn("player cache read failed", logging.String("position", pos.String()), logging.Err(err))
	}

	v, err := l.shared(ctx, "players:"+pos.String(), func(ctx context.Context) (any, error) {
		fresh, err := l.Source.ListPlayers(ctx, pos)
		if err != nil {
			return nil, err
		}
		if err := l.cache.SetPlayers(ctx, pos, fresh); err != nil {
			l.logger.Warn("player cache write failed", logging.String("position", pos.String()), logging.Err(err))
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]normalize.PlayerRecord), nil
}

// PlayerHistory implements Source.
func (l *CachedLoader) PlayerHistory(ctx context.Context, playerName string) ([]backend.HistoryPoint, error) {
	points, err := l.cache.GetHistory(ctx, playerName)
	if err == nil {
		return points, nil
	}
	if !errors.Is(err, ErrMiss) {
		l.logger.Warn("history cache read failed", logging.String("player", playerName), logging.Err(err))
	}

	v, err := l.shared(ctx, "history:"+playerName, func(ctx context.Context) (any, error) {
		fresh, err := l.Source.PlayerHistory(ctx, playerName)
		if err != nil {
			return nil, err
		}
		if err := l.cache.SetHistory(ctx, playerName, fresh); err != nil {
			l.logger.Warn("history cache write failed", logging.String("player", playerName), logging.Err(err))
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]backend.HistoryPoint), nil
}

// shared runs fn once per key for all concurrent callers. fn runs on a
// context detached from any single caller's cancellation, and each caller
// stops waiting only when its own ctx is done.
func (l *CachedLoader) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
