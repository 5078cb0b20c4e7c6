package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cvdmirror/cvdmirror/internal/domain"
	"github.com/cvdmirror/cvdmirror/internal/testutil"
)

func TestRecognized(t *testing.T) {
	recognized := []string{
		"daily.cvd", "main.cld", "daily-26001.cdiff", "freshclam.dat",
		"COPYING.txt", "mirrors.dat", "local.sign", "whitelist.inc",
		"version.info", "freshclam.cfg", "DAILY.CVD",
	}
	for _, name := range recognized {
		if !Recognized(name) {
			t.Errorf("expected %s to be recognized", name)
		}
	}

	rejected := []string{"daily.cvd.tmp", "notes.md", "archive.tar.gz", "daily", ".hidden"}
	for _, name := range rejected {
		if Recognized(name) {
			t.Errorf("expected %s to be rejected", name)
		}
	}
}

func TestSnapshot_FiltersByExtension(t *testing.T) {
	dbDir := testutil.MirrorDir(t)
	mod := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	testutil.WriteFile(t, dbDir, "daily.cvd", []byte("daily"), mod)
	testutil.WriteFile(t, dbDir, "main.cvd", []byte("main"), mod)
	testutil.WriteFile(t, dbDir, "readme.md", []byte("skip me"), mod)
	testutil.WriteFile(t, dbDir, "daily.cvd.tmp", []byte("partial"), mod)

	files, err := Snapshot(context.Background(), dbDir)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(files), files)
	}
	if _, ok := files["daily.cvd"]; !ok {
		t.Error("daily.cvd missing from snapshot")
	}
	if files["daily.cvd"].Size != 5 {
		t.Errorf("expected size 5, got %d", files["daily.cvd"].Size)
	}
	if !files["daily.cvd"].ModTime.Equal(mod) {
		t.Errorf("expected mtime %v, got %v", mod, files["daily.cvd"].ModTime)
	}
}

func TestSnapshot_SkipsSubdirectories(t *testing.T) {
	dbDir := testutil.MirrorDir(t)
	if err := os.MkdirAll(filepath.Join(dbDir, "nested.cvd"), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	files, err := Snapshot(context.Background(), dbDir)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("directories must be ignored, got %v", files)
	}
}

func TestSnapshot_RecursesIntoSubdirectories(t *testing.T) {
	dbDir := testutil.MirrorDir(t)
	sub := filepath.Join(dbDir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	mod := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	testutil.WriteFile(t, dbDir, "daily.cvd", []byte("daily"), mod)
	testutil.WriteFile(t, sub, "daily.cvd", []byte("nested daily"), mod)
	testutil.WriteFile(t, sub, ".daily.cvd.123", []byte("partial"), mod)

	files, err := Snapshot(context.Background(), dbDir)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(files), files)
	}
	nested, ok := files["sub/daily.cvd"]
	if !ok {
		t.Fatal("sub/daily.cvd missing from snapshot")
	}
	if nested.Path != "sub/daily.cvd" {
		t.Errorf("expected relative path sub/daily.cvd, got %s", nested.Path)
	}
	if _, ok := files["sub/.daily.cvd.123"]; ok {
		t.Error("in-flight temp file should not be in the snapshot")
	}
}

func TestSnapshot_AuxiliaryFromParent(t *testing.T) {
	dbDir := testutil.MirrorDir(t)
	parent := filepath.Dir(dbDir)
	mod := time.Now().Add(-time.Hour)

	testutil.WriteFile(t, parent, "state.json", []byte(`{"dbs":{}}`), mod)
	testutil.WriteFile(t, parent, "config.json", []byte(`{}`), mod)
	testutil.WriteFile(t, parent, "unrelated.json", []byte(`{}`), mod)

	files, err := Snapshot(context.Background(), dbDir)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	state, ok := files["state.json"]
	if !ok {
		t.Fatal("state.json missing from snapshot")
	}
	if !state.Auxiliary {
		t.Error("state.json should be marked auxiliary")
	}
	if _, ok := files["config.json"]; !ok {
		t.Error("config.json missing from snapshot")
	}
	if _, ok := files["unrelated.json"]; ok {
		t.Error("unrelated.json should not be in the snapshot")
	}
}

func TestSnapshot_MissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	files, err := Snapshot(context.Background(), missing)
	if !errors.Is(err, domain.ErrDirectoryMissing) {
		t.Fatalf("expected ErrDirectoryMissing, got %v", err)
	}
	if files == nil {
		t.Fatal("expected empty snapshot, got nil")
	}
	if len(files) != 0 {
		t.Errorf("expected empty snapshot, got %v", files)
	}
}

func TestSnapshot_CancelledContext(t *testing.T) {
	dbDir := testutil.MirrorDir(t)
	testutil.WriteFile(t, dbDir, "daily.cvd", []byte("daily"), time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Snapshot(ctx, dbDir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
