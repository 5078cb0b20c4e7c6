// Package testutil provides helpers shared across the package tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cvdmirror/cvdmirror/internal/adapter"
	"github.com/cvdmirror/cvdmirror/internal/domain"
)

// MirrorDir builds a throwaway config layout: a parent directory holding
// the database directory plus the auxiliary files next to it. It returns
// the database directory path.
func MirrorDir(t *testing.T) string {
	t.Helper()

	parent := t.TempDir()
	dbDir := filepath.Join(parent, "database")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		t.Fatalf("failed to create database dir: %v", err)
	}
	return dbDir
}

// WriteFile creates a file with the given content and modification time
func WriteFile(t *testing.T, dir, name string, content []byte, modTime time.Time) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create test file %s: %v", name, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("failed to set mtime on %s: %v", name, err)
		}
	}
	return path
}

// WaitForCondition polls until the condition is true or the timeout passes
func WaitForCondition(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}

// FakeObject is one stored object in a FakeStore
type FakeObject struct {
	Data         []byte
	LastModified time.Time
}

// FakeStore is an in-memory adapter.ObjectStore for tests. Individual
// operations can be made to fail by setting the corresponding error field.
type FakeStore struct {
	mu      sync.Mutex
	Objects map[string]FakeObject
	Region  string

	ListErr error
	HeadErr error
	GetErr  error
	PutErr  error

	// PutKeys records the order Put was called in
	PutKeys []string
}

// NewFakeStore creates an empty fake store
func NewFakeStore() *FakeStore {
	return &FakeStore{
		Objects: make(map[string]FakeObject),
		Region:  "us-east-1",
	}
}

// Add seeds an object
func (f *FakeStore) Add(key string, data []byte, lastModified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[key] = FakeObject{Data: data, LastModified: lastModified}
}

// List implements adapter.ObjectStore
func (f *FakeStore) List(ctx context.Context, prefix string) ([]adapter.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	var infos []adapter.ObjectInfo
	for key, obj := range f.Objects {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		infos = append(infos, adapter.ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.Data)),
			LastModified: obj.LastModified,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Head implements adapter.ObjectStore
func (f *FakeStore) Head(ctx context.Context, key string) (adapter.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.HeadErr != nil {
		return adapter.ObjectInfo{}, f.HeadErr
	}
	obj, ok := f.Objects[key]
	if !ok {
		return adapter.ObjectInfo{}, domain.ErrObjectNotFound
	}
	return adapter.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.Data)),
		LastModified: obj.LastModified,
	}, nil
}

// Get implements adapter.ObjectStore
func (f *FakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}
	obj, ok := f.Objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

// Put implements adapter.ObjectStore
func (f *FakeStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PutErr != nil {
		return f.PutErr
	}
	f.Objects[key] = FakeObject{Data: data, LastModified: time.Now()}
	f.PutKeys = append(f.PutKeys, key)
	return nil
}

// BucketRegion implements adapter.ObjectStore
func (f *FakeStore) BucketRegion(ctx context.Context) (string, error) {
	return f.Region, nil
}

var _ adapter.ObjectStore = (*FakeStore)(nil)
