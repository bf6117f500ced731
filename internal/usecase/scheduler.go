package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"FinanceCollector/internal/ports"
)

// Job is one scheduled collection run.
type Job func(ctx context.Context, trigger time.Time) error

// Scheduler wires the daily driver with a collection job.
type Scheduler struct {
	driver ports.Scheduler
	job    Job
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, job: job, logger: logger}
}

// Start registers the job with the driver. A trigger that fires while the
// previous run is still going is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.job == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		if !s.begin() {
			s.logger.Warn("previous run still in progress, skipping trigger", "trigger", trigger)
			return
		}
		defer s.end()

		if err := s.job(ctx, trigger); err != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
		}
	})
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
