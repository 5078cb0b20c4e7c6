package lock

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cvdmirror/cvdmirror/internal/domain"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	expected := filepath.Join(dir, FileName)
	if l.path != expected {
		t.Errorf("expected lock path %s, got %s", expected, l.path)
	}
	if l.staleAfter != DefaultStaleAfter {
		t.Errorf("expected stale timeout %v, got %v", DefaultStaleAfter, l.staleAfter)
	}
}

func TestNew_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cfg")

	if _, err := New(dir); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("lock directory was not created: %v", err)
	}
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := l.Acquire("upload"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		t.Error("lock file does not exist after acquire")
	}

	holder := l.Holder()
	if holder == nil {
		t.Fatal("expected a holder")
	}
	if holder.PID != os.Getpid() {
		t.Errorf("expected PID %d, got %d", os.Getpid(), holder.PID)
	}
	if holder.Operation != "upload" {
		t.Errorf("expected operation upload, got %s", holder.Operation)
	}
	if time.Since(holder.StartTime) > time.Second {
		t.Error("start time should be recent")
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(l.path); !os.IsNotExist(err) {
		t.Error("lock file still exists after release")
	}
	if l.Holder() != nil {
		t.Error("no holder expected after release")
	}
}

func TestAcquire_HeldByLiveProcess(t *testing.T) {
	dir := t.TempDir()
	first, _ := New(dir)
	second, _ := New(dir)

	if err := first.Acquire("upload"); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer first.Release()

	err := second.Acquire("download")
	if !errors.Is(err, domain.ErrMirrorLocked) {
		t.Fatalf("expected ErrMirrorLocked, got %v", err)
	}
	if err.Error() == "" {
		t.Error("lock error should describe the holder")
	}
}

func TestAcquire_RemovesStaleDeadProcessLock(t *testing.T) {
	dir := t.TempDir()
	l, _ := New(dir)

	hostname, _ := os.Hostname()
	stale := Info{
		PID:       999999, // unlikely to exist
		Hostname:  hostname,
		StartTime: time.Now().Add(-time.Hour),
		Operation: "upload",
	}
	writeInfo(t, l.path, stale)

	if err := l.Acquire("download"); err != nil {
		t.Fatalf("stale lock should be re-acquired: %v", err)
	}
	defer l.Release()

	holder := l.Holder()
	if holder == nil || holder.PID != os.Getpid() {
		t.Error("expected current process as holder")
	}
}

func TestAcquire_ForeignHostStaleByTimeout(t *testing.T) {
	dir := t.TempDir()
	l, _ := New(dir)
	l.SetStaleAfter(100 * time.Millisecond)

	foreign := Info{
		PID:       12345,
		Hostname:  "some-other-host",
		StartTime: time.Now().Add(-time.Hour),
		Operation: "upload",
	}
	writeInfo(t, l.path, foreign)

	if err := l.Acquire("download"); err != nil {
		t.Fatalf("timed-out foreign lock should be re-acquired: %v", err)
	}
	defer l.Release()
}

func TestAcquire_ForeignHostFreshLockHeld(t *testing.T) {
	dir := t.TempDir()
	l, _ := New(dir)

	foreign := Info{
		PID:       12345,
		Hostname:  "some-other-host",
		StartTime: time.Now(),
		Operation: "upload",
	}
	writeInfo(t, l.path, foreign)

	err := l.Acquire("download")
	if !errors.Is(err, domain.ErrMirrorLocked) {
		t.Errorf("fresh foreign lock should block, got %v", err)
	}
}

func TestStale_LiveProcessNeverStale(t *testing.T) {
	dir := t.TempDir()
	l, _ := New(dir)
	l.SetStaleAfter(time.Millisecond)

	if err := l.Acquire("upload"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer l.Release()

	time.Sleep(10 * time.Millisecond)

	info, err := l.read()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if l.stale(info) {
		t.Error("lock held by a live local process must not go stale")
	}
}

func TestConcurrentAcquire(t *testing.T) {
	dir := t.TempDir()
	const goroutines = 10

	var wg sync.WaitGroup
	acquired := make([]bool, goroutines)
	lockErrors := make([]bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			l, err := New(dir)
			if err != nil {
				return
			}
			if err := l.Acquire("concurrent"); err == nil {
				acquired[idx] = true
				time.Sleep(10 * time.Millisecond)
				l.Release()
			} else if errors.Is(err, domain.ErrMirrorLocked) {
				lockErrors[idx] = true
			}
		}(i)
	}
	wg.Wait()

	acquireCount := 0
	errorCount := 0
	for i := 0; i < goroutines; i++ {
		if acquired[i] {
			acquireCount++
		}
		if lockErrors[i] {
			errorCount++
		}
	}

	if acquireCount != 1 {
		t.Errorf("expected exactly 1 acquisition, got %d", acquireCount)
	}
	if errorCount != goroutines-1 {
		t.Errorf("expected %d lock errors, got %d", goroutines-1, errorCount)
	}
}

func TestRelease_NotHeldIsNoOp(t *testing.T) {
	dir := t.TempDir()
	l, _ := New(dir)

	if err := l.Release(); err != nil {
		t.Errorf("releasing an unheld lock should be a no-op: %v", err)
	}
}

func writeInfo(t *testing.T, path string, info Info) {
	t.Helper()
	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write lock info: %v", err)
	}
}
