package domain

import "time"

// FileInfo describes one side of a reconciliation pair: either a local
// database file (Path relative to the database directory) or a remote
// object (Path is the relative part of the key, after the prefix).
type FileInfo struct {
	// Path is the relative path from the database directory root.
	// Auxiliary files carry a bare filename and Auxiliary=true.
	Path string

	// Size in bytes
	Size int64

	// ModTime is the last modification time: filesystem mtime locally,
	// store-reported LastModified remotely
	ModTime time.Time

	// Auxiliary marks the state/config files that live beside the
	// database directory and map to the metadata/ key namespace
	Auxiliary bool
}

// Newer reports whether f was modified strictly after other.
// Equal timestamps are not newer; ties never cause a transfer.
func (f FileInfo) Newer(other FileInfo) bool {
	return f.ModTime.After(other.ModTime)
}
