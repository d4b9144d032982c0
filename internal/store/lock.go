package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName is created in the data directory while a store is open.
const lockFileName = ".lock"

// dirLock is an exclusive cross-process lock on a data directory.
type dirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newDirLock(dataDir string) *dirLock {
	path := filepath.Join(dataDir, lockFileName)
	return &dirLock{path: path, flock: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking. It returns false
// when another process holds it.
func (l *dirLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked dirLock.
func (l *dirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
