package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const backupExt = ".db"

// BackupManager copies the session database to timestamped backup files
// and restores from them.
type BackupManager struct {
	dbPath string
	now    func() time.Time
}

// NewBackupManager creates a backup manager for the database at dbPath.
func NewBackupManager(dbPath string) *BackupManager {
	return &BackupManager{dbPath: dbPath, now: time.Now}
}

// BackupConfig holds configuration for backup operations.
type BackupConfig struct {
	// BackupDir defaults to a "backups" directory next to the database.
	BackupDir string

	// BackupName is the file name without extension. Defaults to a
	// timestamp.
	BackupName string

	// Keep prunes all but the newest Keep backups after a successful
	// backup. Zero keeps everything.
	Keep int
}

// DefaultBackupConfig returns a BackupConfig that keeps the last 7 backups.
func DefaultBackupConfig() *BackupConfig {
	return &BackupConfig{Keep: 7}
}

// BackupDir returns the directory config writes to.
func (bm *BackupManager) BackupDir(config *BackupConfig) string {
	if config != nil && config.BackupDir != "" {
		return config.BackupDir
	}
	return filepath.Join(filepath.Dir(bm.dbPath), "backups")
}

// Backup writes a consistent copy of the database with VACUUM INTO, which
// does not block concurrent readers, verifies it and returns its path.
func (bm *BackupManager) Backup(ctx context.Context, config *BackupConfig) (string, error) {
	if config == nil {
		config = DefaultBackupConfig()
	}

	dir := bm.BackupDir(config)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := config.BackupName
	if name == "" {
		name = "statvalue_" + bm.now().Format("20060102_150405")
	}
	backupPath := filepath.Join(dir, name+backupExt)
	if _, err := os.Stat(backupPath); err == nil {
		return "", fmt.Errorf("backup already exists: %s", backupPath)
	}

	src, err := sql.Open("sqlite", bm.dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() { _ = src.Close() }()

	if _, err := src.ExecContext(ctx, "VACUUM INTO ?", backupPath); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	if err := VerifyBackup(ctx, backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup verification failed: %w", err)
	}

	if config.Keep > 0 {
		if _, err := bm.Prune(dir, config.Keep); err != nil {
			return backupPath, err
		}
	}
	return backupPath, nil
}

// VerifyBackup checks that path is an intact database carrying the
// sessions schema.
func VerifyBackup(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup as database: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to check backup integrity: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("backup is corrupt: %s", result)
	}

	var n int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sessions'").Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to query backup schema: %w", err)
	}
	if n == 0 {
		return errors.New("backup has no sessions table")
	}
	return nil
}

// Restore replaces the database with a verified backup. The current file
// is kept alongside as <db>.old.<timestamp>. Callers must close every
// connection to the database first.
func (bm *BackupManager) Restore(ctx context.Context, backupPath string) error {
	if err := VerifyBackup(ctx, backupPath); err != nil {
		return fmt.Errorf("backup verification failed: %w", err)
	}

	tempPath := bm.dbPath + ".restore.tmp"
	if err := copyFile(backupPath, tempPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to copy backup file: %w", err)
	}

	if _, err := os.Stat(bm.dbPath); err == nil {
		oldPath := bm.dbPath + ".old." + bm.now().Format("20060102_150405")
		if err := os.Rename(bm.dbPath, oldPath); err != nil {
			_ = os.Remove(tempPath)
			return fmt.Errorf("failed to move current database aside: %w", err)
		}
		// WAL side files belong to the replaced database.
		for _, suffix := range []string{"-wal", "-shm"} {
			_ = os.Remove(bm.dbPath + suffix)
		}
	}

	if err := os.Rename(tempPath, bm.dbPath); err != nil {
		return fmt.Errorf("failed to replace database with restored backup: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// BackupInfo contains information about a backup file.
type BackupInfo struct {
	Path     string
	Name     string
	Size     int64
	ModTime  time.Time
	Checksum string
}

// ListBackups returns the backups in dir, newest first. A missing
// directory yields an empty list.
func (bm *BackupManager) ListBackups(dir string) ([]BackupInfo, error) {
	if dir == "" {
		dir = bm.BackupDir(nil)
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), backupExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		checksum, err := calculateChecksum(path)
		if err != nil {
			checksum = "unknown"
		}
		backups = append(backups, BackupInfo{
			Path:     path,
			Name:     entry.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Checksum: checksum,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.After(backups[j].ModTime)
		}
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// Prune deletes all but the newest keep backups in dir and returns how
// many were removed.
func (bm *BackupManager) Prune(dir string, keep int) (int, error) {
	backups, err := bm.ListBackups(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := keep; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return removed, fmt.Errorf("failed to remove old backup: %w", err)
		}
		removed++
	}
	return removed, nil
}

// calculateChecksum calculates the SHA-256 checksum of a file.
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
