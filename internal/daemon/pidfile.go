// Package daemon manages the PID file for the background mirror daemon.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cvdmirror/cvdmirror/internal/config"
)

// PIDFile tracks the daemon process ID on disk
type PIDFile struct {
	path string
}

// NewPIDFile creates a PID file manager for the given path
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// DefaultPIDPath returns the PID file location inside the mirror
// configuration directory
func DefaultPIDPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(dir, "daemon.pid"), nil
}

// Write records the current process ID, replacing a stale file but
// refusing to clobber a live daemon
func (p *PIDFile) Write() error {
	if _, err := os.Stat(p.path); err == nil {
		if running, _ := p.IsRunning(); running {
			return fmt.Errorf("daemon is already running (PID file exists: %s)", p.path)
		}
		os.Remove(p.path)
	}

	content := fmt.Sprintf("%d\n", os.Getpid())
	if err := os.WriteFile(p.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID
func (p *PIDFile) Read() (int, error) {
	content, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("PID file does not exist: %s", p.path)
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %s", pidStr)
	}
	return pid, nil
}

// Remove deletes the PID file
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the recorded process is alive
func (p *PIDFile) IsRunning() (bool, error) {
	pid, err := p.Read()
	if err != nil {
		return false, err
	}
	return isProcessRunning(pid), nil
}

// Kill asks the recorded process to terminate
func (p *PIDFile) Kill() error {
	pid, err := p.Read()
	if err != nil {
		return err
	}
	return killProcess(pid)
}
