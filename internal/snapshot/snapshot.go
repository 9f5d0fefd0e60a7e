// Package snapshot writes per-client account snapshots to durable CSV
// files, backing up the previous snapshot before replacing it so a crash
// mid-write never leaves a client without a readable snapshot.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ewong/ledgerd/internal/codec"
	"github.com/ewong/ledgerd/internal/ledger"
)

// Write renders acc as a snapshot CSV file under dir and atomically
// replaces any prior snapshot for the same client, first copying it into
// backupDir as <client_id>_<unix_millis>.csv (no backup when backupDir is
// empty).
func Write(dir, backupDir string, clientID uint16, acc ledger.Account) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("snapshot: failed to create directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d.csv", clientID))

	if backupDir != "" {
		if _, err := os.Stat(path); err == nil {
			if err := backup(path, backupDir, clientID); err != nil {
				return err
			}
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("snapshot: failed to create temp file: %w", err)
	}

	if err := codec.WriteSnapshotHeader(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("snapshot: failed to write header: %w", err)
	}
	if err := codec.WriteSnapshotRow(f, acc); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("snapshot: failed to write row: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("snapshot: failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: failed to replace %s: %w", path, err)
	}
	return nil
}

func backup(path, backupDir string, clientID uint16) error {
	if err := os.MkdirAll(backupDir, 0o700); err != nil {
		return fmt.Errorf("snapshot: failed to create backup directory: %w", err)
	}
	dest := filepath.Join(backupDir, fmt.Sprintf("%d_%d.csv", clientID, time.Now().UnixMilli()))
	if err := copyFile(path, dest); err != nil {
		return fmt.Errorf("snapshot: failed to back up previous snapshot: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}
