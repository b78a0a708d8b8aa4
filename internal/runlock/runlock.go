// Package runlock holds a host-wide file lock so that two runs never inject
// and clean up synthetic identities in the same database at once.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DefaultName is the lock file created in the temp dir when no path is set.
const DefaultName = "authstorm.lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("another authstorm run holds the lock")

// Lock is an acquired run lock.
type Lock struct {
	fl *flock.Flock
}

// DefaultPath returns the lock path used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), DefaultName)
}

// Acquire takes the lock at path without blocking.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		path = DefaultPath()
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return &Lock{fl: fl}, nil
}

// Path is the lock file location.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release unlocks. It is safe to call on a nil lock and more than once.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}
