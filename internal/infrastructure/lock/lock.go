// Package lock provides the exclusive run lock. Two overlapping runs
// racing on the same container and volume is undefined behavior, so the
// second run fails fast with ErrBusy instead.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

// RunLock is a pid-stamped lock file held for the duration of a run.
type RunLock struct {
	path string
}

// Acquire creates the lock file exclusively. An existing file means
// another run is in progress (or a previous run died; the pid inside is
// reported to help the operator decide).
func Acquire(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			holder := "unknown"
			if data, readErr := os.ReadFile(path); readErr == nil && len(data) > 0 {
				holder = string(data)
			}
			return nil, fmt.Errorf("%w: lock %s held by pid %s", domain.ErrBusy, path, holder)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close lock file: %w", err)
	}

	return &RunLock{path: path}, nil
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *RunLock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}
