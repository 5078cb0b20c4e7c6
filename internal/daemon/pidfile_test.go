package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cvdmirror/cvdmirror/internal/config"
)

func testPIDFile(t *testing.T) *PIDFile {
	t.Helper()
	return NewPIDFile(filepath.Join(t.TempDir(), "daemon.pid"))
}

func TestWriteReadRemove(t *testing.T) {
	p := testPIDFile(t)

	if err := p.Write(); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	pid, err := p.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("expected PID %d, got %d", os.Getpid(), pid)
	}

	if err := p.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := p.Read(); err == nil {
		t.Error("Read should fail after Remove")
	}
}

func TestWrite_RefusesLiveDaemon(t *testing.T) {
	p := testPIDFile(t)

	// Current test process is alive, so its PID counts as a live daemon
	if err := p.Write(); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := p.Write(); err == nil {
		t.Error("expected error writing over a live daemon's PID file")
	}
}

func TestWrite_ReplacesStaleFile(t *testing.T) {
	p := testPIDFile(t)

	if err := os.WriteFile(p.path, []byte("999999\n"), 0644); err != nil {
		t.Fatalf("failed to seed stale PID file: %v", err)
	}

	if err := p.Write(); err != nil {
		t.Fatalf("Write should replace a stale PID file: %v", err)
	}

	pid, err := p.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("expected PID %d, got %d", os.Getpid(), pid)
	}
}

func TestIsRunning(t *testing.T) {
	p := testPIDFile(t)

	if _, err := p.IsRunning(); err == nil {
		t.Error("IsRunning without a PID file should error")
	}

	if err := p.Write(); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	running, err := p.IsRunning()
	if err != nil {
		t.Fatalf("IsRunning failed: %v", err)
	}
	if !running {
		t.Error("current process should count as running")
	}

	if err := os.WriteFile(p.path, []byte("999999\n"), 0644); err != nil {
		t.Fatalf("failed to overwrite PID file: %v", err)
	}
	running, err = p.IsRunning()
	if err != nil {
		t.Fatalf("IsRunning failed: %v", err)
	}
	if running {
		t.Error("dead PID should not count as running")
	}
}

func TestRead_InvalidContent(t *testing.T) {
	p := testPIDFile(t)

	if err := os.WriteFile(p.path, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}
	if _, err := p.Read(); err == nil {
		t.Error("expected error for invalid PID content")
	}
}

func TestRemove_MissingFileIsNoOp(t *testing.T) {
	p := testPIDFile(t)
	if err := p.Remove(); err != nil {
		t.Errorf("Remove of missing file should be a no-op: %v", err)
	}
}

func TestDefaultPIDPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvHome, dir)

	path, err := DefaultPIDPath()
	if err != nil {
		t.Fatalf("DefaultPIDPath failed: %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Errorf("expected path under %s, got %s", dir, path)
	}
	if filepath.Base(path) != "daemon.pid" {
		t.Errorf("expected daemon.pid, got %s", filepath.Base(path))
	}
}
