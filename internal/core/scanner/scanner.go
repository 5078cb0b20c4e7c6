// Package scanner snapshots the local database directory for planning.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cvdmirror/cvdmirror/internal/domain"
)

// databaseExtensions is the fixed allow-list of file types the mirror
// replicates: signature databases, incremental updates, signature files,
// and the engine's metadata/config/text files.
var databaseExtensions = map[string]bool{
	".cvd":   true,
	".cld":   true,
	".cdiff": true,
	".sign":  true,
	".dat":   true,
	".inc":   true,
	".txt":   true,
	".info":  true,
	".cfg":   true,
}

// auxiliaryFiles live beside the database directory (in its parent) and are
// mirrored under the metadata/ key namespace.
var auxiliaryFiles = []string{"state.json", "config.json"}

// Recognized reports whether a filename matches the replication allow-list
func Recognized(name string) bool {
	return databaseExtensions[strings.ToLower(filepath.Ext(name))]
}

// Snapshot walks the database directory and lists the files eligible for
// replication, keyed by slash-separated relative path (auxiliary files by
// bare name, marked Auxiliary). The walk recurses so downloads placed into
// subdirectories are seen on the next run. The listing is taken once;
// decisions are computed against this snapshot.
//
// A missing database directory returns an empty snapshot together with
// domain.ErrDirectoryMissing so callers can report the condition while
// still producing an empty plan.
func Snapshot(ctx context.Context, dbDir string) (map[string]domain.FileInfo, error) {
	files := make(map[string]domain.FileInfo)

	if _, err := os.Stat(dbDir); err != nil {
		if os.IsNotExist(err) {
			return files, domain.ErrDirectoryMissing
		}
		return nil, err
	}

	err := filepath.WalkDir(dbDir, func(p string, entry fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return walkErr
		}
		// dotfiles include in-flight download temp files
		if entry.IsDir() || !Recognized(entry.Name()) || strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil // raced with deletion, drop from snapshot
		}
		rel, err := filepath.Rel(dbDir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		files[rel] = domain.FileInfo{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	parent := filepath.Dir(dbDir)
	for _, name := range auxiliaryFiles {
		info, err := os.Stat(filepath.Join(parent, name))
		if err != nil || info.IsDir() {
			continue
		}
		files[name] = domain.FileInfo{
			Path:      name,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Auxiliary: true,
		}
	}

	return files, nil
}
