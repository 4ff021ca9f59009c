package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/session"
)

// SessionRepository persists session records. It implements session.Store.
type SessionRepository struct {
	store  *DB
	db     *sql.DB
	cipher *TokenCipher
}

// NewSessionRepository creates a session repository. Tokens are sealed with
// cipher before they are written.
func NewSessionRepository(db *DB, cipher *TokenCipher) *SessionRepository {
	if cipher == nil {
		cipher = NewTokenCipher(nil)
	}
	return &SessionRepository{store: db, db: db.Conn(), cipher: cipher}
}

// Save inserts or updates a session record.
func (r *SessionRepository) Save(ctx context.Context, rec session.Record) error {
	sealed, err := r.cipher.Seal(rec.Identity.Token)
	if err != nil {
		return fmt.Errorf("failed to seal token for session %s: %w", rec.ID, err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, position, user_id, username, email, token_ciphertext, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position,
			user_id = excluded.user_id,
			username = excluded.username,
			email = excluded.email,
			token_ciphertext = excluded.token_ciphertext,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Position.String(), rec.Identity.UserID, rec.Identity.Username, rec.Identity.Email,
		sealed, createdAt.UTC(), updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns the record for id, or session.ErrNotFound.
func (r *SessionRepository) Load(ctx context.Context, id string) (*session.Record, error) {
	var (
		rec      session.Record
		position string
		sealed   string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, position, user_id, username, email, token_ciphertext, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id).Scan(&rec.ID, &position, &rec.Identity.UserID, &rec.Identity.Username, &rec.Identity.Email,
		&sealed, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	rec.Position = positions.Position(position)
	rec.Identity.Token, err = r.cipher.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open token for session %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes a session and its history.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// PurgeBefore deletes sessions not updated since cutoff, together with
// their comparisons and predictions, and returns how many sessions were
// removed.
func (r *SessionRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := r.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		stale := "SELECT id FROM sessions WHERE updated_at < ?"
		for _, table := range []string{"comparisons", "predictions"} {
			q := fmt.Sprintf("DELETE FROM %s WHERE session_id IN (%s)", table, stale)
			if _, err := tx.ExecContext(ctx, q, cutoff.UTC()); err != nil {
				return fmt.Errorf("failed to purge %s: %w", table, err)
			}
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to purge sessions: %w", err)
		}
		purged, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}
