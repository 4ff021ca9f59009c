package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/normalize"
	"github.com/statvalue/statvalue-companion/internal/positions"
)

type RedisCacheSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache *RedisCache
}

func (s *RedisCacheSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.cache = NewRedisCache(db, Options{Prefix: "test", TTL: time.Minute}, logging.NewNop())
}

func (s *RedisCacheSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *RedisCacheSuite) TestKeys() {
	assert.Equal(s.T(), "test:players:forward", s.cache.PlayersKey(positions.Forward))
	assert.Equal(s.T(), "test:history:bukayo saka", s.cache.HistoryKey("Bukayo Saka"))
}

func (s *RedisCacheSuite) TestGetPlayers_Hit() {
	data, _ := json.Marshal([]normalize.PlayerRecord{{"name": "Saka", "Goals": 16}})
	s.mock.ExpectGet("test:players:forward").SetVal(string(data))

	players, err := s.cache.GetPlayers(context.Background(), positions.Forward)

	require.NoError(s.T(), err)
	require.Len(s.T(), players, 1)
	assert.Equal(s.T(), "Saka", players[0].Name())
	assert.Equal(s.T(), 16.0, players[0]["Goals"])
}

func (s *RedisCacheSuite) TestGetPlayers_Miss() {
	s.mock.ExpectGet("test:players:defender").RedisNil()

	_, err := s.cache.GetPlayers(context.Background(), positions.Defender)

	assert.True(s.T(), errors.Is(err, ErrMiss))
}

func (s *RedisCacheSuite) TestSetHistory() {
	points := []backend.HistoryPoint{{Year: 2024, MarketValue: 120}}
	data, _ := json.Marshal(points)
	s.mock.ExpectSet("test:history:saka", data, time.Minute).SetVal("OK")

	err := s.cache.SetHistory(context.Background(), "Saka", points)

	assert.NoError(s.T(), err)
}

func (s *RedisCacheSuite) TestGet_RedisError() {
	s.mock.ExpectGet("test:history:x").SetErr(errors.New("connection refused"))

	_, err := s.cache.GetHistory(context.Background(), "x")

	require.Error(s.T(), err)
	assert.False(s.T(), errors.Is(err, ErrMiss))
}

func (s *RedisCacheSuite) TestInvalidate() {
	s.mock.ExpectDel("test:players:goalkeeper").SetVal(1)

	assert.NoError(s.T(), s.cache.Invalidate(context.Background(), positions.Goalkeeper))
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheSuite))
}

type fakeSource struct {
	listCalls    int
	historyCalls int
	listErr      error
}

func (f *fakeSource) ListPlayers(_ context.Context, pos positions.Position) ([]normalize.PlayerRecord, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []normalize.PlayerRecord{{"name": "P-" + pos.String()}}, nil
}

func (f *fakeSource) SimilarPlayers(context.Context, backend.PlayerRef, positions.Position) ([]backend.SimilarPlayer, error) {
	return nil, nil
}

func (f *fakeSource) Predict(context.Context, string, int) (*backend.Prediction, error) {
	return &backend.Prediction{PlayerName: "x"}, nil
}

func (f *fakeSource) PredictionPlayers(context.Context) ([]backend.PredictionPlayer, error) {
	return nil, nil
}

func (f *fakeSource) PlayerHistory(context.Context, string) ([]backend.HistoryPoint, error) {
	f.historyCalls++
	return []backend.HistoryPoint{{Year: 2024, MarketValue: 1}}, nil
}

type memCache struct {
	NopCache
	players map[positions.Position][]normalize.PlayerRecord
	readErr error
}

func (m *memCache) GetPlayers(_ context.Context, pos positions.Position) ([]normalize.PlayerRecord, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	p, ok := m.players[pos]
	if !ok {
		return nil, ErrMiss
	}
	return p, nil
}

func (m *memCache) SetPlayers(_ context.Context, pos positions.Position, players []normalize.PlayerRecord) error {
	if m.players == nil {
		m.players = map[positions.Position][]normalize.PlayerRecord{}
	}
	m.players[pos] = players
	return nil
}

func TestCachedLoader_ReadThrough(t *testing.T) {
	src := &fakeSource{}
	loader := NewCachedLoader(src, &memCache{}, nil)

	first, err := loader.ListPlayers(context.Background(), positions.Forward)
	require.NoError(t, err)
	second, err := loader.ListPlayers(context.Background(), positions.Forward)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.listCalls)
}

func TestCachedLoader_CacheErrorIsNotFatal(t *testing.T) {
	src := &fakeSource{}
	loader := NewCachedLoader(src, &memCache{readErr: errors.New("redis down")}, nil)

	players, err := loader.ListPlayers(context.Background(), positions.Defender)

	require.NoError(t, err)
	assert.Equal(t, "P-defender", players[0].Name())
}

func TestCachedLoader_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("backend down")
	loader := NewCachedLoader(&fakeSource{listErr: boom}, nil, nil)

	_, err := loader.ListPlayers(context.Background(), positions.Defender)

	assert.ErrorIs(t, err, boom)
}

func TestCachedLoader_NopCacheAlwaysFetches(t *testing.T) {
	src := &fakeSource{}
	loader := NewCachedLoader(src, NopCache{}, nil)

	_, _ = loader.PlayerHistory(context.Background(), "Saka")
	_, _ = loader.PlayerHistory(context.Background(), "Saka")

	assert.Equal(t, 2, src.historyCalls)
}

func TestCachedLoader_PassesThroughOtherCalls(t *testing.T) {
	loader := NewCachedLoader(&fakeSource{}, nil, nil)

	p, err := loader.Predict(context.Background(), "x", 2026)

	require.NoError(t, err)
	assert.Equal(t, "x", p.PlayerName)
}

type blockingSource struct {
	fakeSource
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingSource) ListPlayers(ctx context.Context, pos positions.Position) ([]normalize.PlayerRecord, error) {
	b.calls.Add(1)
	close(b.started)
	select {
	case <-b.release:
		return []normalize.PlayerRecord{{"name": "P-" + pos.String()}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCachedLoader_CancelledCallerDoesNotFailOthers(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	loader := NewCachedLoader(src, nil, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := loader.ListPlayers(ctxA, positions.Defender)
		errA <- err
	}()
	<-src.started

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	type result struct {
		players []normalize.PlayerRecord
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		players, err := loader.ListPlayers(context.Background(), positions.Defender)
		resB <- result{players, err}
	}()

	time.Sleep(50 * time.Millisecond)
	close(src.release)

	select {
	case res := <-resB:
		require.NoError(t, res.err)
		assert.Equal(t, "P-defender", res.players[0].Name())
	case <-time.After(time.Second):
		t.Fatal("live caller did not return")
	}
	assert.Equal(t, int32(1), src.calls.Load(), "both callers share one backend request")
}
