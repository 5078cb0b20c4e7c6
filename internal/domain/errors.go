package domain

import "errors"

// Configuration errors
var (
	// ErrConfigMissing indicates the S3 bucket has not been configured
	ErrConfigMissing = errors.New("bucket not configured")

	// ErrSyncDisabled indicates S3 sync is disabled in the configuration
	ErrSyncDisabled = errors.New("sync disabled")

	// ErrInvalidConfig indicates a config file is malformed
	ErrInvalidConfig = errors.New("invalid config")
)

// Filesystem and store errors
var (
	// ErrDirectoryMissing indicates the database directory does not exist
	ErrDirectoryMissing = errors.New("database directory missing")

	// ErrObjectNotFound indicates the remote object does not exist.
	// During planning this means "must upload", not a failure.
	ErrObjectNotFound = errors.New("object not found")

	// ErrPermissionDenied indicates the store rejected the operation
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCredentialsMissing indicates no usable AWS credentials were found
	ErrCredentialsMissing = errors.New("credentials missing")
)

// Process coordination errors
var (
	// ErrMirrorLocked indicates another mirror operation is in progress
	ErrMirrorLocked = errors.New("mirror operation already in progress")

	// ErrEngineNotFound indicates the external cvd binary is not installed
	ErrEngineNotFound = errors.New("cvd command not found")
)
