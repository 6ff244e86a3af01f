// Package lock serializes pyrite processes that may bootstrap the app
// directory.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// Filename is the lock file created inside the app directory.
	Filename = "bootstrap.lock"
	// StaleThreshold is the age after which a lock whose owner is gone
	// is assumed to be left over from a killed process.
	StaleThreshold = 10 * time.Minute
)

var ErrLocked = errors.New("another pyrite process is bootstrapping; remove the lock file if this is not the case")

// Lock is a held bootstrap lock.
type Lock struct {
	path string
	file *os.File
}

// pidAlive reports whether a process with the given pid exists.
var pidAlive = func(ctx context.Context, pid int32) bool {
	alive, err := process.PidExistsWithContext(ctx, pid)
	// Unknown counts as alive.
	return alive || err != nil
}

// Acquire creates the lock file in appDir exclusively. A lock older
// than StaleThreshold is replaced unless the process that wrote it is
// still running.
func Acquire(ctx context.Context, appDir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return nil, fmt.Errorf("create app directory: %w", err)
	}

	path := filepath.Join(appDir, Filename)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if !isStale(ctx, path) {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
		}
		_ = os.Remove(path)
		file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
		}
	}

	data := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(data); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. Releasing twice is harmless.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path != "" {
		path := l.path
		l.path = ""
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
	}
	return nil
}

func isStale(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) <= StaleThreshold {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, ok := ownerPid(string(data))
	return !ok || !pidAlive(ctx, pid)
}

// ownerPid extracts the pid= line of a lock file.
func ownerPid(data string) (int32, bool) {
	for _, line := range strings.Split(data, "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "pid=")
		if !ok {
			continue
		}
		pid, err := strconv.ParseInt(value, 10, 32)
		if err != nil || pid <= 0 {
			return 0, false
		}
		return int32(pid), true
	}
	return 0, false
}
