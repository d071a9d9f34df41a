package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process on this host holds the lock.
var ErrLocked = errors.New("another sitebak operation is already running")

// DefaultPath is used when no lock file is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "sitebak.lock")
}

type Lock struct {
	file *flock.Flock
}

// Acquire takes a host-local file lock around operations that write to the
// bucket. It does not coordinate with other hosts.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		path = DefaultPath()
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock: %s)", ErrLocked, path)
	}
	return &Lock{file: lock}, nil
}

// Release frees the lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Unlock()
}
