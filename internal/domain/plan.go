package domain

// Direction indicates which way a transfer moves data
type Direction int

const (
	// DirUpload copies a local file to the object store
	DirUpload Direction = iota
	// DirDownload copies a remote object to the local filesystem
	DirDownload
)

// String returns the lowercase name of the direction
func (d Direction) String() string {
	if d == DirDownload {
		return "download"
	}
	return "upload"
}

// Transfer is a single planned copy between the local database directory
// and the remote store
type Transfer struct {
	// Direction of the copy
	Direction Direction

	// Path is the relative path under the database directory
	// (bare filename for auxiliary files)
	Path string

	// Key is the full remote object key including the prefix
	Key string

	// Size of the source side in bytes
	Size int64

	// Auxiliary marks metadata/ namespace entries (state.json, config.json)
	Auxiliary bool

	// Reason explains why this transfer was planned
	Reason string
}

// Plan is the ordered set of transfers one reconciliation run would perform.
// Planning is pure: building a Plan performs no I/O, so a dry run and a
// real run share identical decisions.
type Plan struct {
	// Direction all transfers in this plan share
	Direction Direction

	// Transfers to apply in order
	Transfers []Transfer

	// Skipped counts pairs examined but left alone (destination newer or tie)
	Skipped int

	// Stats summary
	Stats PlanStats
}

// PlanStats summarises a plan
type PlanStats struct {
	FilesToTransfer int
	BytesToTransfer int64
}

// Result reports the outcome of executing a plan. Per-file failures are
// non-fatal to the batch; Succeeded counts only completed transfers.
type Result struct {
	Planned   int
	Succeeded int
	Failed    int
	Bytes     int64
	DryRun    bool
}
