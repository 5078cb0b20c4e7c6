package planner

import (
	"path"
	"strings"

	"github.com/cvdmirror/cvdmirror/internal/domain"
)

// MetadataDir is the key namespace for auxiliary files that live beside
// the database directory rather than inside it.
const MetadataDir = "metadata"

// RelKey returns the prefix-relative key for a file: auxiliary files map
// into the metadata/ namespace, everything else keeps its relative path.
func RelKey(f domain.FileInfo) string {
	if f.Auxiliary {
		return path.Join(MetadataDir, f.Path)
	}
	return f.Path
}

// RemoteKey joins the configured prefix and a file's relative key into the
// full object key. Prefixes are stored without surrounding slashes, so this
// is a plain path join rather than string concatenation.
func RemoteKey(prefix string, f domain.FileInfo) string {
	return path.Join(prefix, RelKey(f))
}

// SplitKey strips the prefix from a full object key and resolves the
// metadata/ namespace. ok is false when the key does not sit under the
// prefix directory: the match requires the / boundary, so a sibling
// prefix like databases-old never aliases into databases. Keys whose
// remainder is not a clean forward relative path are rejected too, they
// would resolve outside the database directory.
func SplitKey(prefix, key string) (relPath string, auxiliary bool, ok bool) {
	prefix = strings.Trim(prefix, "/")
	rel := key
	if prefix != "" {
		var found bool
		rel, found = strings.CutPrefix(key, prefix+"/")
		if !found {
			return "", false, false
		}
	}
	if rel == "" || rel == "." || rel != path.Clean(rel) ||
		strings.HasPrefix(rel, "/") || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false, false
	}

	if after, found := strings.CutPrefix(rel, MetadataDir+"/"); found {
		// auxiliary files are bare names beside the database directory
		if after == "" || strings.Contains(after, "/") {
			return "", false, false
		}
		return after, true, true
	}
	return rel, false, true
}
