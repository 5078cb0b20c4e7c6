package adapter

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a remote object
type ObjectInfo struct {
	// Key is the full object key
	Key string

	// Size in bytes
	Size int64

	// LastModified as reported by the store (UTC)
	LastModified time.Time
}

// ObjectStore is the contract the reconciler needs from a remote store:
// list-by-prefix, head, get, put. Implementations map store-specific
// failures onto the domain errors so callers can branch with errors.Is:
// domain.ErrObjectNotFound for absent keys, domain.ErrPermissionDenied for
// authorization failures, domain.ErrCredentialsMissing when no usable
// credentials are available.
type ObjectStore interface {
	// List returns all objects under the given key prefix. The listing is
	// a snapshot; it is taken once per reconciliation run.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Head returns metadata for a single key without fetching the body
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Get opens an object for reading. Caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put creates or overwrites an object from r
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// BucketRegion verifies the bucket is reachable and returns its
	// region, for the connection test
	BucketRegion(ctx context.Context) (string, error)
}
