package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cvdmirror/cvdmirror/internal/cvd"
	"github.com/cvdmirror/cvdmirror/internal/logger"
	"github.com/cvdmirror/cvdmirror/internal/state"
)

// UpdateService runs the signature update engine and records the outcome
type UpdateService struct {
	runner   *cvd.Runner
	stateMgr *state.Manager
}

// NewUpdateService creates an update service. stateMgr may be nil, in
// which case runs are not recorded in history.
func NewUpdateService(runner *cvd.Runner, stateMgr *state.Manager) (*UpdateService, error) {
	if runner == nil {
		return nil, fmt.Errorf("engine runner cannot be nil")
	}
	return &UpdateService{runner: runner, stateMgr: stateMgr}, nil
}

// Run invokes the engine's update and records it in run history
func (s *UpdateService) Run(ctx context.Context) error {
	start := time.Now()
	logger.Get().Info("updating signature databases")

	output, err := s.runner.Update(ctx)

	record := state.RunRecord{
		Operation: state.OpUpdate,
		StartTime: start,
		EndTime:   time.Now(),
		Status:    state.StatusSuccess,
	}
	if err != nil {
		record.Status = state.StatusFailed
		record.Error = err.Error()
	}
	s.record(record)

	if err != nil {
		logger.Get().Error("signature update failed", "error", err)
		return fmt.Errorf("signature update failed: %w", err)
	}

	if output != "" {
		logger.Get().Debug("engine output", "output", output)
	}
	logger.Get().Info("signature databases updated", "elapsed", time.Since(start))
	return nil
}

func (s *UpdateService) record(r state.RunRecord) {
	if s.stateMgr == nil {
		return
	}
	if err := s.stateMgr.SaveRun(r); err != nil {
		logger.Get().Warn("failed to record run history", "operation", r.Operation, "error", err)
	}
}
