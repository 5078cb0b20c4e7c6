// Package lock provides a file-based lock preventing concurrent mirror
// operations against the same configuration directory.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cvdmirror/cvdmirror/internal/domain"
)

const (
	// FileName of the lock file inside the configuration directory
	FileName = ".cvdmirror.lock"

	// DefaultStaleAfter is the age past which a lock from an unreachable
	// holder is ignored
	DefaultStaleAfter = 30 * time.Minute
)

// Info records the holder of a lock
type Info struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	Operation string    `json:"operation,omitempty"`
}

// FileLock guards mirror operations with an O_EXCL-created lock file
type FileLock struct {
	path       string
	staleAfter time.Duration
	held       bool
}

// New creates a lock rooted in the given directory, creating it if needed
func New(dir string) (*FileLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &FileLock{
		path:       filepath.Join(dir, FileName),
		staleAfter: DefaultStaleAfter,
	}, nil
}

// SetStaleAfter adjusts the stale timeout
func (l *FileLock) SetStaleAfter(d time.Duration) {
	l.staleAfter = d
}

// Acquire takes the lock for the named operation. Returns
// domain.ErrMirrorLocked when another live process holds it; stale locks
// from dead processes are removed and re-acquired.
func (l *FileLock) Acquire(operation string) error {
	if existing, err := l.read(); err == nil {
		if l.stale(existing) {
			if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove stale lock: %w", err)
			}
		} else {
			return fmt.Errorf("%w: held by pid %d on %s since %s (%s)",
				domain.ErrMirrorLocked, existing.PID, existing.Hostname,
				existing.StartTime.Format(time.RFC3339), existing.Operation)
		}
	}

	hostname, _ := os.Hostname()
	info := Info{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Operation: operation,
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			// Raced with another process between read and create
			return fmt.Errorf("%w: lock taken during acquisition", domain.ErrMirrorLocked)
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(info); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	l.held = true
	return nil
}

// Release removes the lock if this instance holds it
func (l *FileLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Holder returns the live holder's info, or nil when unlocked or stale
func (l *FileLock) Holder() *Info {
	info, err := l.read()
	if err != nil || l.stale(info) {
		return nil
	}
	return info
}

func (l *FileLock) read() (*Info, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file: %w", err)
	}
	return &info, nil
}

// stale reports whether the lock can be ignored: same host and the
// recorded process is gone, or any host once the timeout passes
func (l *FileLock) stale(info *Info) bool {
	hostname, _ := os.Hostname()
	if info.Hostname == hostname {
		return !processExists(info.PID)
	}
	return time.Since(info.StartTime) > l.staleAfter
}
