package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiwebsocket "github.com/statvalue/statvalue-companion/internal/api/websocket"
	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/events"
	"github.com/statvalue/statvalue-companion/internal/metrics"
	"github.com/statvalue/statvalue-companion/internal/normalize"
	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/session"
)

type stubBackend struct{}

func (stubBackend) ListPlayers(_ context.Context, pos positions.Position) ([]normalize.PlayerRecord, error) {
	if pos != positions.Defender {
		return nil, nil
	}
	return []normalize.PlayerRecord{
		{"name": "William Saliba", "Nation": "fr FRA", "Clr": 80},
		{"name": "Virgil van Dijk", "Nation": "nl NED", "Clr": 100},
	}, nil
}

func (stubBackend) SimilarPlayers(context.Context, backend.PlayerRef, positions.Position) ([]backend.SimilarPlayer, error) {
	return nil, nil
}

func (stubBackend) Predict(context.Context, string, int) (*backend.Prediction, error) {
	return &backend.Prediction{}, nil
}

func (stubBackend) PlayerHistory(context.Context, string) ([]backend.HistoryPoint, error) {
	return nil, nil
}

func (stubBackend) PredictionPlayers(context.Context) ([]backend.PredictionPlayer, error) {
	return []backend.PredictionPlayer{{Name: "William Saliba"}}, nil
}

func (stubBackend) Login(context.Context, string, string) (*backend.AuthResponse, error) {
	return &backend.AuthResponse{Token: "t"}, nil
}

func (stubBackend) Register(context.Context, backend.RegisterRequest) (*backend.AuthResponse, error) {
	return &backend.AuthResponse{Token: "t"}, nil
}

func (stubBackend) GetStats() backend.ClientStats {
	return backend.ClientStats{TotalRequests: 3}
}

type testServer struct {
	*Server
	dispatcher *events.EventDispatcher
	manager    *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dispatcher := events.NewEventDispatcher(nil)
	m := metrics.New()
	manager := session.NewManager(session.Options{
		Loader:   stubBackend{},
		Emitter:  dispatcher,
		Recorder: m,
	}, nil)
	t.Cleanup(manager.Close)

	srv := NewServer(nil, Deps{
		Sessions: manager,
		Backend:  stubBackend{},
		Metrics:  m,
	})
	dispatcher.Register(srv.NewWebSocketObserver())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testServer{Server: srv, dispatcher: dispatcher, manager: manager}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data session.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.ID
}

func TestNewServer_NilConfig(t *testing.T) {
	server := NewServer(nil, Deps{})
	defer func() { _ = server.Shutdown(context.Background()) }()

	assert.Equal(t, 8080, server.Port())
	assert.NotNil(t, server.WebSocketHub())
	assert.NotNil(t, server.NewWebSocketObserver())
}

func TestServer_Port(t *testing.T) {
	server := NewServer(&Config{Port: 9999}, Deps{})
	defer func() { _ = server.Shutdown(context.Background()) }()

	assert.Equal(t, 9999, server.Port())
}

func TestServer_Shutdown_NotStarted(t *testing.T) {
	server := NewServer(nil, Deps{})

	assert.NoError(t, server.Shutdown(context.Background()))
	assert.Eventually(t, server.WebSocketHub().IsStopped, time.Second, 10*time.Millisecond)
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"total_requests":3`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.createSession(t)

	w := srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "statvalue_active_sessions 1")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	server := NewServer(&Config{Port: 8080}, Deps{Metrics: metrics.New()})
	defer func() { _ = server.Shutdown(context.Background()) }()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJSONContentTypeMiddleware(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/"+id+"/position", strings.NewReader(`{"position":"forward"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestSessionRoutes(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	w := srv.do(t, http.MethodGet, "/api/v1/positions", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/selection", map[string]string{"name": "William Saliba"})
	require.Equal(t, http.StatusOK, w.Code)
	w = srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/selection", map[string]string{"name": "Virgil van Dijk"})
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/compare", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/chart?format=svg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<svg")

	w = srv.do(t, http.MethodGet, "/api/v1/prediction-players", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/system/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessions":1`)

	w = srv.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestWebSocket_UnknownSession(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/ws?session=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocket_ReceivesSessionEvents(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	httpServer := httptest.NewServer(srv.Handler())
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws?session=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		return srv.WebSocketHub().SessionClientCount(id) == 1
	}, time.Second, 10*time.Millisecond)

	w := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/selection", map[string]string{"name": "William Saliba"})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var received apiwebsocket.Event
	require.NoError(t, json.Unmarshal(message, &received))
	assert.Equal(t, events.SelectionChanged, received.Type)
	assert.Equal(t, id, received.SessionID)
}
