//go:build !windows

package lock

import (
	"errors"
	"os"
	"syscall"
)

// processExists checks whether a process with the given PID is alive
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes for existence
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else
	return errors.Is(err, syscall.EPERM)
}
