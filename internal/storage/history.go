package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/session"
)

// DefaultHistoryLimit caps list queries when no limit is given.
const DefaultHistoryLimit = 50

// StoredComparison is a persisted comparison.
type StoredComparison struct {
	ID         int64                        `json:"id"`
	SessionID  string                       `json:"session_id"`
	Position   string                       `json:"position"`
	Players    []string                     `json:"players"`
	Normalized map[string]map[string]float64 `json:"normalized"`
	CreatedAt  time.Time                    `json:"created_at"`
}

// StoredPrediction is a persisted prediction.
type StoredPrediction struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session_id"`
	PlayerName     string    `json:"player_name"`
	Year           int       `json:"year"`
	PredictedValue float64   `json:"predicted_value"`
	CurrentValue   float64   `json:"current_value"`
	Confidence     string    `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryRepository stores completed comparisons and predictions. It
// implements session.HistoryStore.
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewHistoryRepository creates a history repository.
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db.Conn(), now: time.Now}
}

// SaveComparison records a comparison. Normalized values are stored keyed
// by player name.
func (r *HistoryRepository) SaveComparison(ctx context.Context, rec session.ComparisonRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("failed to marshal players: %w", err)
	}

	normalized := make(map[string]map[string]float64, len(rec.Results))
	for _, res := range rec.Results {
		normalized[res.Player.Name] = res.Normalized
	}
	normJSON, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("failed to marshal normalized stats: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO comparisons (session_id, position, players_json, normalized_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.SessionID, rec.Position, string(players), string(normJSON), createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save comparison: %w", err)
	}
	return nil
}

// ListComparisons returns a session's comparisons, newest first.
func (r *HistoryRepository) ListComparisons(ctx context.Context, sessionID string, limit int) ([]StoredComparison, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, position, players_json, normalized_json, created_at
		FROM comparisons
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comparisons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredComparison
	for rows.Next() {
		var (
			c                  StoredComparison
			players, normalized string
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Position, &players, &normalized, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}
		if err := json.Unmarshal([]byte(players), &c.Players); err != nil {
			return nil, fmt.Errorf("failed to unmarshal players of comparison %d: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(normalized), &c.Normalized); err != nil {
			return nil, fmt.Errorf("failed to unmarshal normalized stats of comparison %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SavePrediction records a prediction.
func (r *HistoryRepository) SavePrediction(ctx context.Context, sessionID string, p backend.Prediction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO predictions (session_id, player_name, year, predicted_value, current_value, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sessionID, p.PlayerName, p.Year, p.PredictedValue, p.CurrentValue, p.ConfidenceLevel, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// ListPredictions returns a session's predictions, newest first.
func (r *HistoryRepository) ListPredictions(ctx context.Context, sessionID string, limit int) ([]StoredPrediction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, player_name, year, predicted_value, current_value, confidence, created_at
		FROM predictions
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredPrediction
	for rows.Next() {
		var p StoredPrediction
		if err := rows.Scan(&p.ID, &p.SessionID, &p.PlayerName, &p.Year, &p.PredictedValue,
			&p.CurrentValue, &p.Confidence, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
