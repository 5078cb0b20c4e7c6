package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cvdmirror/cvdmirror/internal/logger"
	"github.com/cvdmirror/cvdmirror/internal/scheduler"
	"github.com/cvdmirror/cvdmirror/internal/state"
)

// DaemonService refreshes the mirror on a fixed interval: each cycle runs
// the signature update engine and, when replication is enabled, uploads the
// resulting databases.
type DaemonService struct {
	mu        sync.RWMutex
	updateSvc *UpdateService
	syncSvc   *SyncService // nil when replication is disabled
	stateMgr  *state.Manager
	scheduler scheduler.Scheduler
}

// DaemonStatus represents the current daemon status
type DaemonStatus struct {
	Running        bool
	SchedulerStats *scheduler.Status
	LastRun        *state.RunRecord
}

// NewDaemonService creates a daemon service. syncSvc may be nil when no
// bucket is configured; the daemon then only refreshes local databases.
func NewDaemonService(updateSvc *UpdateService, syncSvc *SyncService, stateMgr *state.Manager) (*DaemonService, error) {
	if updateSvc == nil {
		return nil, fmt.Errorf("update service cannot be nil")
	}
	return &DaemonService{
		updateSvc: updateSvc,
		syncSvc:   syncSvc,
		stateMgr:  stateMgr,
	}, nil
}

// Start begins the refresh loop in the background
func (d *DaemonService) Start(ctx context.Context, interval time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scheduler != nil {
		return fmt.Errorf("daemon is already running")
	}

	runner := &mirrorRunner{
		updateSvc: d.updateSvc,
		syncSvc:   d.syncSvc,
		stateMgr:  d.stateMgr,
	}

	sched, err := scheduler.NewIntervalScheduler(scheduler.Config{
		Interval:   interval,
		RunAtStart: true,
	}, runner)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	d.scheduler = sched
	logger.Get().Info("daemon started", "interval", interval)
	return nil
}

// Stop stops the refresh loop
func (d *DaemonService) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scheduler == nil {
		return fmt.Errorf("daemon is not running")
	}

	if err := d.scheduler.Stop(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	d.scheduler = nil
	logger.Get().Info("daemon stopped")
	return nil
}

// Status returns the current daemon status
func (d *DaemonService) Status() *DaemonStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := &DaemonStatus{
		Running: d.scheduler != nil,
	}

	if d.scheduler != nil {
		status.SchedulerStats = d.scheduler.Status()
	}

	if d.stateMgr != nil {
		history, err := d.stateMgr.GetAllHistory(1)
		if err == nil && len(history) > 0 {
			status.LastRun = &history[0]
		}
	}

	return status
}

// Close releases all resources
func (d *DaemonService) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var lastErr error

	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			lastErr = err
		}
		d.scheduler = nil
	}

	if d.stateMgr != nil {
		if err := d.stateMgr.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// mirrorRunner implements scheduler.Runner for the daemon cycle
type mirrorRunner struct {
	updateSvc *UpdateService
	syncSvc   *SyncService
	stateMgr  *state.Manager
}

// RunMirror performs one refresh: engine update, then upload. An update
// failure skips the upload; stale databases should not displace the
// bucket's newer copies.
func (r *mirrorRunner) RunMirror(ctx context.Context) error {
	if err := r.updateSvc.Run(ctx); err != nil {
		return err
	}

	if r.syncSvc == nil {
		return nil
	}

	start := time.Now()
	record := state.RunRecord{
		Operation: state.OpUpload,
		StartTime: start,
		Status:    state.StatusSuccess,
	}

	plan, err := r.syncSvc.PlanUpload(ctx, false)
	if err != nil {
		record.EndTime = time.Now()
		record.Status = state.StatusFailed
		record.Error = err.Error()
		r.record(record)
		return fmt.Errorf("upload planning failed: %w", err)
	}

	result, err := r.syncSvc.Execute(ctx, plan, false)
	record.EndTime = time.Now()
	if result != nil {
		record.FilesTransferred = result.Succeeded
		record.BytesTransferred = result.Bytes
	}
	switch {
	case err != nil:
		record.Status = state.StatusFailed
		record.Error = err.Error()
	case result.Failed > 0:
		record.Status = state.StatusPartial
		record.Error = fmt.Sprintf("%d of %d transfers failed", result.Failed, result.Planned)
	}
	r.record(record)

	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("upload incomplete: %d of %d transfers failed", result.Failed, result.Planned)
	}
	return nil
}

func (r *mirrorRunner) record(rec state.RunRecord) {
	if r.stateMgr == nil {
		return
	}
	if err := r.stateMgr.SaveRun(rec); err != nil {
		logger.Get().Warn("failed to record run history", "operation", rec.Operation, "error", err)
	}
}

var _ scheduler.Runner = (*mirrorRunner)(nil)
