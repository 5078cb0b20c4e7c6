// Package scheduler drives the periodic update-and-replicate cycle.
package scheduler

import (
	"context"
	"time"
)

// Scheduler defines the interface for mirror schedulers
type Scheduler interface {
	// Start begins the scheduling loop
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler
	Stop() error

	// Status returns the current scheduler status
	Status() *Status
}

// Status represents the current state of a scheduler
type Status struct {
	Running        bool
	LastRunTime    time.Time
	NextRunTime    time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	LastError      string
}

// Config contains scheduler configuration
type Config struct {
	// Interval specifies the duration between mirror refreshes
	Interval time.Duration

	// RunAtStart triggers a refresh immediately when the loop starts
	// instead of waiting one full interval
	RunAtStart bool
}

// Runner is the interface schedulers use to execute a mirror refresh
type Runner interface {
	// RunMirror performs one engine update followed by replication
	RunMirror(ctx context.Context) error
}

// RunnerFunc adapts a plain function to the Runner interface
type RunnerFunc func(ctx context.Context) error

// RunMirror implements Runner
func (f RunnerFunc) RunMirror(ctx context.Context) error { return f(ctx) }
