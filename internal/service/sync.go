// Package service orchestrates the mirror operations behind the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cvdmirror/cvdmirror/internal/adapter"
	"github.com/cvdmirror/cvdmirror/internal/config"
	"github.com/cvdmirror/cvdmirror/internal/core/planner"
	"github.com/cvdmirror/cvdmirror/internal/core/scanner"
	"github.com/cvdmirror/cvdmirror/internal/domain"
	"github.com/cvdmirror/cvdmirror/internal/lock"
	"github.com/cvdmirror/cvdmirror/internal/logger"
)

// SyncService reconciles the local database directory with the object store
type SyncService struct {
	cfg   *config.S3Config
	dbDir string
	store adapter.ObjectStore
	lock  *lock.FileLock
}

// NewSyncService creates a sync service for the given bucket configuration
// and database directory. The mirror lock lives beside the database
// directory so concurrent invocations exclude each other.
func NewSyncService(cfg *config.S3Config, dbDir string, store adapter.ObjectStore) (*SyncService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if dbDir == "" {
		return nil, fmt.Errorf("database directory cannot be empty")
	}
	if store == nil {
		return nil, fmt.Errorf("object store cannot be nil")
	}

	fileLock, err := lock.New(filepath.Dir(dbDir))
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror lock: %w", err)
	}

	return &SyncService{
		cfg:   cfg,
		dbDir: dbDir,
		store: store,
		lock:  fileLock,
	}, nil
}

// LockHolder returns information about the current lock holder, if any
func (s *SyncService) LockHolder() *lock.Info {
	return s.lock.Holder()
}

// snapshotLocal lists the local database directory. A missing directory
// yields an empty snapshot with a warning rather than a hard failure, so
// a download into a fresh host still works.
func (s *SyncService) snapshotLocal(ctx context.Context) (map[string]domain.FileInfo, error) {
	local, err := scanner.Snapshot(ctx, s.dbDir)
	if err != nil {
		if errors.Is(err, domain.ErrDirectoryMissing) {
			logger.Get().Warn("database directory missing, treating as empty", "dir", s.dbDir)
			return local, nil
		}
		return nil, fmt.Errorf("failed to scan database directory: %w", err)
	}
	return local, nil
}

// snapshotRemote lists the store once and reshapes the objects into the
// planner's keyspace. Keys outside the configured prefix layout are ignored.
func (s *SyncService) snapshotRemote(ctx context.Context) (map[string]domain.FileInfo, error) {
	objects, err := s.store.List(ctx, s.cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket: %w", err)
	}

	remote := make(map[string]domain.FileInfo, len(objects))
	for _, obj := range objects {
		relPath, auxiliary, ok := planner.SplitKey(s.cfg.Prefix, obj.Key)
		if !ok {
			continue
		}
		if !auxiliary && !scanner.Recognized(relPath) {
			logger.Get().Debug("ignoring unrecognized remote object", "key", obj.Key)
			continue
		}
		fi := domain.FileInfo{
			Path:      relPath,
			Size:      obj.Size,
			ModTime:   obj.LastModified,
			Auxiliary: auxiliary,
		}
		remote[planner.RelKey(fi)] = fi
	}
	return remote, nil
}

// PlanUpload computes the upload plan from fresh local and remote snapshots
func (s *SyncService) PlanUpload(ctx context.Context, force bool) (*domain.Plan, error) {
	local, err := s.snapshotLocal(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := s.snapshotRemote(ctx)
	if err != nil {
		return nil, err
	}

	plan := planner.PlanUpload(local, remote, s.cfg.Prefix, force)
	logger.Get().Info("upload plan ready",
		"files", plan.Stats.FilesToTransfer,
		"bytes", plan.Stats.BytesToTransfer,
		"skipped", plan.Skipped,
	)
	return plan, nil
}

// PlanDownload computes the download plan from fresh snapshots
func (s *SyncService) PlanDownload(ctx context.Context, force bool) (*domain.Plan, error) {
	local, err := s.snapshotLocal(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := s.snapshotRemote(ctx)
	if err != nil {
		return nil, err
	}

	plan := planner.PlanDownload(local, remote, s.cfg.Prefix, force)
	logger.Get().Info("download plan ready",
		"files", plan.Stats.FilesToTransfer,
		"bytes", plan.Stats.BytesToTransfer,
		"skipped", plan.Skipped,
	)
	return plan, nil
}

// Execute applies a plan. In dry-run mode it only reports what the plan
// would do. Per-file failures do not abort the batch; the counts in the
// returned Result reflect them.
func (s *SyncService) Execute(ctx context.Context, plan *domain.Plan, dryRun bool) (*domain.Result, error) {
	result := &domain.Result{Planned: len(plan.Transfers), DryRun: dryRun}

	if dryRun {
		for _, t := range plan.Transfers {
			logger.Get().Info("dry run: would transfer",
				"direction", t.Direction.String(),
				"path", t.Path,
				"key", t.Key,
				"size", t.Size,
				"reason", t.Reason,
			)
		}
		logger.Get().Info("dry run complete", "planned", result.Planned, "skipped", plan.Skipped)
		return result, nil
	}

	if err := s.lock.Acquire(plan.Direction.String()); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.lock.Release(); err != nil {
			logger.Get().Error("failed to release mirror lock", "error", err)
		}
	}()

	for _, t := range plan.Transfers {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var err error
		switch t.Direction {
		case domain.DirUpload:
			err = s.uploadOne(ctx, t)
		case domain.DirDownload:
			err = s.downloadOne(ctx, t)
		}

		if err != nil {
			result.Failed++
			logger.Get().Error("transfer failed",
				"direction", t.Direction.String(),
				"path", t.Path,
				"key", t.Key,
				"error", err,
			)
			continue
		}

		result.Succeeded++
		result.Bytes += t.Size
		logger.Get().Info("transferred",
			"direction", t.Direction.String(),
			"path", t.Path,
			"key", t.Key,
			"size", t.Size,
			"reason", t.Reason,
		)
	}

	logger.Get().Info("transfer batch finished",
		"direction", plan.Direction.String(),
		"planned", result.Planned,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"bytes", result.Bytes,
	)
	return result, nil
}

// localPath resolves where a transfer's file lives on disk: auxiliary
// files sit beside the database directory, everything else inside it
func (s *SyncService) localPath(t domain.Transfer) string {
	if t.Auxiliary {
		return filepath.Join(filepath.Dir(s.dbDir), t.Path)
	}
	return filepath.Join(s.dbDir, t.Path)
}

func (s *SyncService) uploadOne(ctx context.Context, t domain.Transfer) error {
	f, err := os.Open(s.localPath(t))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", t.Path, err)
	}
	defer f.Close()

	return s.store.Put(ctx, t.Key, f, t.Size)
}

// downloadOne fetches one object into a temp file and renames it into
// place, then stamps the local copy with the remote modification time so
// the next run sees the pair as in sync.
func (s *SyncService) downloadOne(ctx context.Context, t domain.Transfer) error {
	body, err := s.store.Get(ctx, t.Key)
	if err != nil {
		return err
	}
	defer body.Close()

	dest := s.localPath(t)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", t.Path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.ReadFrom(body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", t.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", t.Path, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", t.Path, err)
	}

	info, err := s.store.Head(ctx, t.Key)
	if err == nil && !info.LastModified.IsZero() {
		if err := os.Chtimes(dest, info.LastModified, info.LastModified); err != nil {
			logger.Get().Warn("failed to set modification time", "path", dest, "error", err)
		}
	}
	return nil
}

// TestConnection verifies the bucket is reachable and that objects can be
// listed. A listing denied by policy is reported as a warning, not a
// failure, since upload-only credentials are a supported setup.
func (s *SyncService) TestConnection(ctx context.Context) error {
	region, err := s.store.BucketRegion(ctx)
	if err != nil {
		return fmt.Errorf("bucket %s is not reachable: %w", s.cfg.Bucket, err)
	}
	logger.Get().Info("bucket reachable", "bucket", s.cfg.Bucket, "region", region)

	if region != "" && s.cfg.Region != "" && region != s.cfg.Region {
		logger.Get().Warn("configured region differs from bucket region",
			"configured", s.cfg.Region,
			"actual", region,
		)
	}

	if _, err := s.store.List(ctx, s.cfg.Prefix); err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			logger.Get().Warn("credentials cannot list objects, downloads will not work",
				"bucket", s.cfg.Bucket,
				"prefix", s.cfg.Prefix,
			)
			return nil
		}
		return fmt.Errorf("failed to list bucket %s: %w", s.cfg.Bucket, err)
	}

	logger.Get().Info("connection test passed", "bucket", s.cfg.Bucket, "prefix", s.cfg.Prefix)
	return nil
}
