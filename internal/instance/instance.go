// Package instance keeps a single studylit process per data directory.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/logger"
)

var findProcessFunc = ps.FindProcess

// LockedError means another live process holds the data directory.
type LockedError struct {
	PID  int
	Path string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("data directory is in use by process %d (lockfile %s)", e.PID, e.Path)
}

func IsLocked(err error) bool {
	var e *LockedError
	return errors.As(err, &e)
}

type Lock struct {
	path string
}

// Acquire creates the lockfile in dataDir. A lockfile left by a process that is no
// longer running is replaced.
func Acquire(dataDir string) (*Lock, error) {
	path := filepath.Join(dataDir, constants.LockFileName)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lockfile: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lockfile: %w", err)
		}

		pid, alive := Holder(path)
		if alive {
			return nil, &LockedError{PID: pid, Path: path}
		}
		logger.Warn("Removing stale lockfile", "path", path, "pid", pid)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
	}
	return nil, fmt.Errorf("could not acquire lockfile %s", path)
}

// Holder returns the pid recorded in the lockfile at path and whether that process is
// still running.
func Holder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	proc, err := findProcessFunc(pid)
	if err != nil || proc == nil {
		return pid, false
	}
	return pid, true
}

func (l *Lock) Path() string {
	return l.path
}

// Release removes the lockfile.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}
