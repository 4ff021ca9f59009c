package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func countSessions(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	if err := db.Conn().QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func insertSession(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (id, position, created_at, updated_at) VALUES (?, 'forward', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)", id)
	return err
}

func TestWithTransaction_Commit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return insertSession(ctx, tx, "a")
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}
	if n := countSessions(t, db); n != 1 {
		t.Errorf("expected 1 session, got %d", n)
	}
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := insertSession(ctx, tx, "a"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := countSessions(t, db); n != 0 {
		t.Errorf("insert should be rolled back, got %d sessions", n)
	}
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic should be re-raised")
			}
		}()
		_ = db.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := insertSession(ctx, tx, "a"); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	if n := countSessions(t, db); n != 0 {
		t.Errorf("insert should be rolled back, got %d sessions", n)
	}
}
