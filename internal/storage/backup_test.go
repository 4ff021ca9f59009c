package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/session"
)

func TestBackupManager_BackupAndRestore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db, nil)
	ctx := context.Background()

	if err := repo.Save(ctx, session.Record{ID: "before", Position: positions.Forward}); err != nil {
		t.Fatal(err)
	}

	bm := NewBackupManager(db.Path())
	backupPath, err := bm.Backup(ctx, &BackupConfig{BackupName: "snapshot"})
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if filepath.Base(backupPath) != "snapshot.db" {
		t.Errorf("unexpected backup path %s", backupPath)
	}
	if filepath.Dir(backupPath) != filepath.Join(filepath.Dir(db.Path()), "backups") {
		t.Errorf("backup should default to the backups directory, got %s", backupPath)
	}

	if _, err := bm.Backup(ctx, &BackupConfig{BackupName: "snapshot"}); err == nil {
		t.Error("backing up over an existing file should fail")
	}

	if err := repo.Save(ctx, session.Record{ID: "after", Position: positions.Forward}); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	if err := bm.Restore(ctx, backupPath); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	restored, err := Open(DefaultConfig(db.Path()))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = restored.Close() }()

	repo = NewSessionRepository(restored, nil)
	if _, err := repo.Load(ctx, "before"); err != nil {
		t.Errorf("session saved before the backup should be restored: %v", err)
	}
	if _, err := repo.Load(ctx, "after"); err == nil {
		t.Error("session saved after the backup should be gone")
	}
}

func TestVerifyBackup_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	if err := os.WriteFile(path, []byte("not a database"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := VerifyBackup(context.Background(), path); err == nil {
		t.Error("expected verification to fail")
	}
	if err := VerifyBackup(context.Background(), filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected verification of a missing file to fail")
	}
}

func TestBackupManager_ListAndPrune(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	bm := NewBackupManager(db.Path())
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		bm.now = func() time.Time { return ts }
		path, err := bm.Backup(ctx, &BackupConfig{BackupDir: dir})
		if err != nil {
			t.Fatalf("Backup() #%d error = %v", i, err)
		}
		if err := os.Chtimes(path, ts, ts); err != nil {
			t.Fatal(err)
		}
	}

	backups, err := bm.ListBackups(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 4 {
		t.Fatalf("expected 4 backups, got %d", len(backups))
	}
	if backups[0].Name != "statvalue_20250101_030000.db" {
		t.Errorf("newest backup should be first, got %s", backups[0].Name)
	}
	if len(backups[0].Checksum) != 64 {
		t.Errorf("unexpected checksum %q", backups[0].Checksum)
	}

	removed, err := bm.Prune(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed %d backups, want 2", removed)
	}

	backups, _ = bm.ListBackups(dir)
	if len(backups) != 2 {
		t.Errorf("expected 2 backups after pruning, got %d", len(backups))
	}
}

func TestBackupManager_ListMissingDir(t *testing.T) {
	bm := NewBackupManager(filepath.Join(t.TempDir(), "x.db"))
	backups, err := bm.ListBackups(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 0 {
		t.Errorf("expected no backups, got %d", len(backups))
	}
}
