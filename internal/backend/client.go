// Package backend is the HTTP client for the StatValue backend: player
// lists, similarity search, market-value prediction and authentication.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/normalize"
	"github.com/statvalue/statvalue-companion/internal/positions"
)

const (
	// DefaultBaseURL points at a locally running backend.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "StatValue-Companion/1.0"
)

// DefaultRateLimit allows short bursts of UI-driven calls.
var DefaultRateLimit = rate.Limit(10)

// Recorder receives per-call measurements. internal/metrics implements it.
type Recorder interface {
	ObserveRequest(endpoint string, status int, d time.Duration)
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
	recorder   Recorder

	stats   *ClientStats
	statsMu sync.RWMutex
}

// ClientOptions configures the backend client.
type ClientOptions struct {
	// BaseURL of the backend (default: http://localhost:8000)
	BaseURL string

	// RateLimit controls request frequency (default: 10 req/second)
	RateLimit rate.Limit

	// Timeout for HTTP requests (default: 30 seconds)
	Timeout time.Duration

	// HTTPClient allows a custom HTTP client
	HTTPClient *http.Client

	UserAgent string
	Logger    logging.Logger
	Recorder  Recorder
}

// DefaultClientOptions returns the default options.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		BaseURL:   DefaultBaseURL,
		RateLimit: DefaultRateLimit,
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// NewClient creates a backend client.
func NewClient(options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	if options.RateLimit == 0 {
		options.RateLimit = DefaultRateLimit
	}
	if options.Timeout == 0 {
		options.Timeout = DefaultTimeout
	}
	if options.UserAgent == "" {
		options.UserAgent = DefaultUserAgent
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: options.Timeout,
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(options.BaseURL, "/"),
		userAgent:  options.UserAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(options.RateLimit, 1),
		logger:     logging.OrNop(options.Logger).Named("backend"),
		recorder:   options.Recorder,
		stats:      &ClientStats{},
	}
}

type tokenKey struct{}

// WithToken returns a context whose backend calls carry a bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx, if any.
func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// ListPlayers fetches every player of a position.
func (c *Client) ListPlayers(ctx context.Context, pos positions.Position) ([]normalize.PlayerRecord, error) {
	if _, err := positions.Parse(string(pos)); err != nil {
		return nil, &APIError{Type: ErrTypeInvalidParams, Message: "invalid position", Err: err}
	}

	body, err := c.doRequest(ctx, "list_players", http.MethodGet, "/api/"+pos.Collection()+"/", nil)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &APIError{Type: ErrTypeParse, Message: "failed to parse player list", Err: err}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &APIError{Type: ErrTypeShape, Message: "player list is not an array"}
	}

	players := make([]normalize.PlayerRecord, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &APIError{Type: ErrTypeShape, Message: "player entry is not an object"}
		}
		players = append(players, normalize.PlayerRecord(positions.CanonicalizeRecord(obj)))
	}
	return players, nil
}

// SimilarPlayers asks the backend for the nearest neighbours of ref.
func (c *Client) SimilarPlayers(ctx context.Context, ref PlayerRef, pos positions.Position) ([]SimilarPlayer, error) {
	if ref.Name == "" {
		return nil, &APIError{Type: ErrTypeInvalidParams, Message: "reference player name is required"}
	}

	payload := similarRequest{Player: ref, Position: pos.String()}
	body, err := c.doRequest(ctx, "similar_players", http.MethodPost, "/api/similar_players/", payload)
	if err != nil {
		return nil, err
	}

	var resp similarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Type: ErrTypeParse, Message: "failed to parse similar players", Err: err}
	}
	if resp.SimilarPlayers == nil {
		return nil, &APIError{Type: ErrTypeShape, Message: "similar_players field missing"}
	}

	out := *resp.SimilarPlayers
	for i := range out {
		if out[i].Stats != nil {
			out[i].Stats = normalize.PlayerRecord(positions.CanonicalizeRecord(out[i].Stats))
		}
	}
	return out, nil
}

// Predict requests a market-value prediction for a player and year.
func (c *Client) Predict(ctx context.Context, playerName string, year int) (*Prediction, error) {
	if playerName == "" || year == 0 {
		return nil, &APIError{Type: ErrTypeInvalidParams, Message: "player name and year are required"}
	}

	body, err := c.doRequest(ctx, "predict", http.MethodPost, "/api/predict/", predictRequest{PlayerName: playerName, Year: year})
	if err != nil {
		return nil, err
	}

	var p Prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &APIError{Type: ErrTypeParse, Message: "failed to parse prediction", Err: err}
	}
	if p.PlayerName == "" {
		return nil, &APIError{Type: ErrTypeShape, Message: "prediction is missing playerName"}
	}
	return &p, nil
}

// PredictionPlayers lists the players the prediction model knows about.
func (c *Client) PredictionPlayers(ctx context.Context) ([]PredictionPlayer, error) {
	body, err := c.doRequest(ctx, "prediction_players", http.MethodGet, "/api/players/", nil)
	if err != nil {
		return nil, err
	}

	var players []PredictionPlayer
	if err := decodeArray(body, &players, "prediction players"); err != nil {
		return nil, err
	}
	return players, nil
}

// PlayerHistory fetches the recorded market values of a player.
func (c *Client) PlayerHistory(ctx context.Context, playerName string) ([]HistoryPoint, error) {
	if playerName == "" {
		return nil, &APIError{Type: ErrTypeInvalidParams, Message: "player name is required"}
	}

	path := "/api/player-history/" + url.PathEscape(playerName)
	body, err := c.doRequest(ctx, "player_history", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var points []HistoryPoint
	if err := decodeArray(body, &points, "player history"); err != nil {
		return nil, err
	}
	return points, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	if username == "" || password == "" {
		return nil, &APIError{Type: ErrTypeInvalidParams, Message: "username and password are required"}
	}
	return c.auth(ctx, "login", "/api/auth/login/", loginRequest{Username: username, Password: password})
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, &APIError{Type: ErrTypeInvalidParams, Message: "username, email and password are required"}
	}
	if req.ConfirmPassword == "" {
		req.ConfirmPassword = req.Password
	}
	return c.auth(ctx, "register", "/api/auth/register/", req)
}

func (c *Client) auth(ctx context.Context, endpoint, path string, payload any) (*AuthResponse, error) {
	body, err := c.doRequest(ctx, endpoint, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Type: ErrTypeParse, Message: "failed to parse auth response", Err: err}
	}
	if resp.Token == "" {
		return nil, &APIError{Type: ErrTypeShape, Message: "auth response is missing token"}
	}
	return &resp, nil
}

func decodeArray(body []byte, dst any, what string) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return &APIError{Type: ErrTypeParse, Message: "failed to parse " + what}
		}
		return &APIError{Type: ErrTypeShape, Message: what + " is not an array"}
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return &APIError{Type: ErrTypeParse, Message: "failed to parse " + what, Err: err}
	}
	return nil
}

// doRequest performs one rate-limited request and returns the body of a 2xx
// response. No retries are attempted.
func (c *Client) doRequest(ctx context.Context, endpoint, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &APIError{
			Type:    ErrTypeRateLimited,
			Message: "rate limiter error",
			Err:     err,
		}
	}

	c.updateStats(func(s *ClientStats) {
		s.TotalRequests++
		s.LastRequestTime = time.Now()
	})

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &APIError{Type: ErrTypeInvalidParams, Message: "failed to encode request", Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &APIError{
			Type:    ErrTypeInvalidParams,
			Message: "failed to create request",
			Err:     err,
		}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := TokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(startTime)

	if err != nil {
		c.recordFailure(endpoint, 0, latency)
		return nil, &APIError{
			Type:    ErrTypeUnavailable,
			Message: "failed to execute request",
			Err:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(endpoint, resp.StatusCode, latency)
		return nil, &APIError{
			Type:    ErrTypeUnavailable,
			Message: "failed to read response body",
			Err:     err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.recordFailure(endpoint, resp.StatusCode, latency)
		return nil, &APIError{
			Type:       ErrTypeUnavailable,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
		}
	}

	c.recordSuccess(endpoint, resp.StatusCode, latency)
	return body, nil
}

// errorMessage prefers the backend's own error text when it sent one.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			return payload.Error
		case payload.Message != "":
			return payload.Message
		case payload.Detail != "":
			return payload.Detail
		}
	}
	return fmt.Sprintf("unexpected status code: %d", status)
}

func (c *Client) recordFailure(endpoint string, status int, latency time.Duration) {
	c.logger.Warn("backend request failed",
		logging.String("endpoint", endpoint),
		logging.Int("status", status),
		logging.Duration("latency", latency))
	if c.recorder != nil {
		c.recorder.ObserveRequest(endpoint, status, latency)
	}

	c.updateStats(func(s *ClientStats) {
		s.FailedRequests++
		s.LastFailureTime = time.Now()
		s.ConsecutiveErrors++
	})
}

func (c *Client) recordSuccess(endpoint string, status int, latency time.Duration) {
	c.logger.Debug("backend request",
		logging.String("endpoint", endpoint),
		logging.Duration("latency", latency))
	if c.recorder != nil {
		c.recorder.ObserveRequest(endpoint, status, latency)
	}

	c.updateStats(func(s *ClientStats) {
		s.LastSuccessTime = time.Now()
		s.ConsecutiveErrors = 0

		if s.AverageLatency == 0 {
			s.AverageLatency = latency
		} else {
			s.AverageLatency = (s.AverageLatency + latency) / 2
		}
	})
}

func (c *Client) updateStats(fn func(*ClientStats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	fn(c.stats)
}

// GetStats returns a copy of the current client statistics.
func (c *Client) GetStats() ClientStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return *c.stats
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
