// Package runlock guards a ledgerd data directory against concurrent runs.
// Two ledgerd processes racing over the same durable account/transaction
// trees would corrupt both, so a run takes an exclusive file lock on its
// data directory for its entire lifetime.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the name of the lock file created inside a data
// directory.
const LockFileName = ".ledgerd.lock"

// Lock wraps an acquired exclusive lock on a data directory.
type Lock struct {
	flock *flock.Flock
	path  string
}

// Acquire takes an exclusive, non-blocking lock on dataDir. It returns an
// error immediately if another ledgerd process already holds the lock,
// rather than waiting — a batch run should fail fast, not queue silently
// behind another run that may never finish.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("runlock: failed to create data directory: %w", err)
	}

	path := filepath.Join(dataDir, LockFileName)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("runlock: failed to acquire lock on %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("runlock: %s is already locked by another ledgerd process", dataDir)
	}

	return &Lock{flock: fl, path: path}, nil
}

// Release releases the lock and removes the lock file.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("runlock: failed to release lock on %s: %w", l.path, err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("runlock: failed to remove lock file %s: %w", l.path, err)
	}
	return nil
}
