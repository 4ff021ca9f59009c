package storage

import (
	"path/filepath"
	"testing"
)

// fastEncryption keeps Argon2 cheap in tests.
func fastEncryption(secret string) *EncryptionConfig {
	return &EncryptionConfig{Secret: secret, Argon2Time: 1, Argon2Memory: 1024, Argon2Threads: 1}
}

// setupTestDB opens a migrated database in a temporary directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}
