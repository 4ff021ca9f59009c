package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/statvalue/statvalue-companion/internal/positions"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientOptions{
		BaseURL:   server.URL,
		RateLimit: rate.Inf,
		Timeout:   5 * time.Second,
	})
}

func TestNewClient(t *testing.T) {
	client := NewClient(DefaultClientOptions())

	if client == nil {
		t.Fatal("NewClient returned nil")
	}
	if client.httpClient == nil {
		t.Error("HTTP client is nil")
	}
	if client.limiter == nil {
		t.Error("Rate limiter is nil")
	}
	if client.baseURL != DefaultBaseURL {
		t.Errorf("Expected base URL %s, got %s", DefaultBaseURL, client.baseURL)
	}
}

func TestListPlayers_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/midfielders/" {
			t.Errorf("Expected path /api/midfielders/, got %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"name":"Rodri","Nation":"es ESP","Recovery":210,"PasTotCmp_percentage":"92.1"}]`)
	})

	players, err := client.ListPlayers(context.Background(), positions.Midfielder)
	require.NoError(t, err)
	require.Len(t, players, 1)

	assert.Equal(t, "Rodri", players[0].Name())
	assert.Equal(t, 210.0, players[0]["Recov"])
	assert.Equal(t, "92.1", players[0]["PasTotCmpPerc"])

	stats := client.GetStats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 0, stats.FailedRequests)
}

func TestListPlayers_NotArrayIsShapeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"players":[]}`)
	})

	_, err := client.ListPlayers(context.Background(), positions.Forward)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrTypeShape, apiErr.Type)
}

func TestListPlayers_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"name":`)
	})

	_, err := client.ListPlayers(context.Background(), positions.Forward)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrTypeParse, apiErr.Type)
}

func TestListPlayers_InvalidPosition(t *testing.T) {
	client := NewClient(DefaultClientOptions())

	_, err := client.ListPlayers(context.Background(), positions.Position("winger"))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrTypeInvalidParams, apiErr.Type)
	assert.True(t, errors.Is(err, positions.ErrUnknownPosition))
}

func TestSimilarPlayers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/similar_players/" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}

		var req struct {
			Player   map[string]string `json:"player"`
			Position string            `json:"position"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Player["name"] != "Saka" || req.Player["Nation"] != "eng ENG" || req.Position != "forward" {
			t.Errorf("unexpected payload %+v", req)
		}

		_, _ = io.WriteString(w, `{"similar_players":[
			{"name":"Foden","stats":{"goals":19,"sot_percentage":41.2},"distance":12.5},
			{"name":"Palmer","stats":{"goals":22},"distance":140.2}
		]}`)
	})

	similar, err := client.SimilarPlayers(context.Background(), PlayerRef{Name: "Saka", Nation: "eng ENG"}, positions.Forward)
	require.NoError(t, err)
	require.Len(t, similar, 2)

	assert.Equal(t, "Foden", similar[0].Name)
	assert.Equal(t, 12.5, similar[0].Distance)
	assert.Equal(t, 19.0, similar[0].Stats["Goals"])
	assert.Equal(t, 41.2, similar[0].Stats["SoTPerc"])
}

func TestSimilarPlayers_MissingField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	})

	_, err := client.SimilarPlayers(context.Background(), PlayerRef{Name: "Saka"}, positions.Forward)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrTypeShape, apiErr.Type)
}

func TestPredict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.PlayerName != "Saka" || req.Year != 2027 {
			t.Errorf("unexpected payload %+v", req)
		}
		_, _ = io.WriteString(w, `{"playerName":"Saka","year":2027,"predictedValue":150.5,"currentValue":120,
			"confidenceLevel":"High (85%)","yearsForward":2,"lastKnownYear":2025,"lastKnownAge":23,"projectedAge":null}`)
	})

	p, err := client.Predict(context.Background(), "Saka", 2027)
	require.NoError(t, err)

	assert.Equal(t, 150.5, p.PredictedValue)
	assert.Equal(t, "High (85%)", p.ConfidenceLevel)
	require.NotNil(t, p.LastKnownAge)
	assert.Equal(t, 23.0, *p.LastKnownAge)
	assert.Nil(t, p.ProjectedAge)
}

func TestPredict_BackendErrorMessageSurfaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Year must be between 2000 and 2030"}`)
	})

	_, err := client.Predict(context.Background(), "Saka", 1990)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrTypeUnavailable, apiErr.Type)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Year must be between 2000 and 2030", apiErr.Message)
	assert.Equal(t, 1, client.GetStats().FailedRequests)
}

func TestPlayerHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/player-history/Bukayo%20Saka" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		_, _ = io.WriteString(w, `[{"year":2023,"marketValue":110,"age":21},{"year":2024,"marketValue":130,"age":null}]`)
	})

	points, err := client.PlayerHistory(context.Background(), "Bukayo Saka")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 2023, points[0].Year)
	assert.Nil(t, points[1].Age)
}

func TestPlayerHistory_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"No historical data found for player 'X'"}`)
	})

	_, err := client.PlayerHistory(context.Background(), "X")

	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestPredictionPlayers_ShapeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name":"x"}`)
	})

	_, err := client.PredictionPlayers(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrTypeShape, apiErr.Type)
}

func TestLogin_SendsCredentialsAndReadsToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"message":"Login successful","user":{"id":7,"username":"ana","email":"a@x.io","is_active":true},"token":"jwt"}`)
	})

	resp, err := client.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt", resp.Token)
	assert.Equal(t, int64(7), resp.User.ID)
}

func TestLogin_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
	})

	_, err := client.Login(context.Background(), "ana", "bad")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestRegister_DefaultsConfirmPassword(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ConfirmPassword != "secret" {
			t.Errorf("Expected confirm_password to be defaulted, got %q", req.ConfirmPassword)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"message":"Registration successful","user":{"id":1,"username":"ana"},"token":"jwt"}`)
	})

	resp, err := client.Register(context.Background(), RegisterRequest{Username: "ana", Email: "a@x.io", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "Registration successful", resp.Message)
}

func TestBearerTokenFromContext(t *testing.T) {
	var mu sync.Mutex
	var got []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := client.PredictionPlayers(WithToken(context.Background(), "abc"))
	require.NoError(t, err)
	_, err = client.PredictionPlayers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer abc", ""}, got)
}

func TestCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListPlayers(ctx, positions.Defender)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

type fakeRecorder struct {
	mu        sync.Mutex
	endpoints []string
}

func (f *fakeRecorder) ObserveRequest(endpoint string, _ int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints = append(f.endpoints, endpoint)
}

func TestRecorderObservesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer server.Close()

	rec := &fakeRecorder{}
	client := NewClient(ClientOptions{BaseURL: server.URL, RateLimit: rate.Inf, Recorder: rec})

	_, err := client.PredictionPlayers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"prediction_players"}, rec.endpoints)
}
