package backend

import (
	"time"

	"github.com/statvalue/statvalue-companion/internal/normalize"
)

// PlayerRef identifies the reference player for a similarity search.
type PlayerRef struct {
	Name   string `json:"name"`
	Nation string `json:"Nation"`
	Squad  string `json:"Squad,omitempty"`
}

// RefFromRecord builds a PlayerRef from a player record.
func RefFromRecord(r normalize.PlayerRecord) PlayerRef {
	return PlayerRef{Name: r.Name(), Nation: r.Nation(), Squad: r.Squad()}
}

type similarRequest struct {
	Player   PlayerRef `json:"player"`
	Position string    `json:"position"`
}

// SimilarPlayer is one neighbour returned by the similarity search.
// Distance is a dissimilarity score defined by the backend; lower is closer.
type SimilarPlayer struct {
	Name     string                 `json:"name"`
	Stats    normalize.PlayerRecord `json:"stats"`
	Distance float64                `json:"distance"`
}

type similarResponse struct {
	SimilarPlayers *[]SimilarPlayer `json:"similar_players"`
}

type predictRequest struct {
	PlayerName string `json:"playerName"`
	Year       int    `json:"year"`
}

// Prediction is the market-value model output for one player and year.
type Prediction struct {
	PlayerName      string   `json:"playerName"`
	Year            int      `json:"year"`
	PredictedValue  float64  `json:"predictedValue"`
	CurrentValue    float64  `json:"currentValue"`
	ConfidenceLevel string   `json:"confidenceLevel"`
	YearsForward    int      `json:"yearsForward"`
	LastKnownYear   int      `json:"lastKnownYear"`
	LastKnownAge    *float64 `json:"lastKnownAge,omitempty"`
	ProjectedAge    *float64 `json:"projectedAge,omitempty"`
}

// PredictionPlayer is an entry of the prediction player picker.
type PredictionPlayer struct {
	Name string `json:"name"`
}

// HistoryPoint is a player's recorded market value for one season.
type HistoryPoint struct {
	Year        int      `json:"year"`
	MarketValue float64  `json:"marketValue"`
	Age         *float64 `json:"age,omitempty"`
}

// User is the account object returned by the auth endpoints.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest carries the fields of a new account.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ClientStats tracks backend client activity.
type ClientStats struct {
	TotalRequests     int           `json:"total_requests"`
	FailedRequests    int           `json:"failed_requests"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	LastRequestTime   time.Time     `json:"last_request_time"`
	LastSuccessTime   time.Time     `json:"last_success_time"`
	LastFailureTime   time.Time     `json:"last_failure_time"`
	AverageLatency    time.Duration `json:"average_latency"`
}

// Error types.
const (
	ErrTypeUnavailable   = "unavailable"
	ErrTypeParse         = "parse_error"
	ErrTypeShape         = "shape_error"
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeRateLimited   = "rate_limited"
)

// APIError represents a failed backend call.
type APIError struct {
	Type       string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}
