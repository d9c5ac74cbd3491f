// Package scheduler runs the periodic collection jobs.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/bizscope/weather-collector/internal/observability"
)

// Scheduler wraps gocron with job-level error isolation: a failing job is
// logged and counted, never propagated into the scheduler loop.
type Scheduler struct {
	inner   *gocron.Scheduler
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a stopped scheduler. Jobs run in singleton mode so a slow
// run never overlaps the next tick of the same job.
func New(logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	inner := gocron.NewScheduler(time.UTC)
	inner.SingletonModeAll()
	return &Scheduler{inner: inner, logger: logger, metrics: metrics}
}

// AddJob registers fn to run every interval. The job context is the one
// passed here so shutdown cancellation reaches in-flight runs.
func (s *Scheduler) AddJob(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) error {
	_, err := s.inner.Every(interval).Do(func() {
		if err := fn(ctx); err != nil {
			s.metrics.SourceFailures.WithLabelValues(name).Inc()
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	})
	return err
}

// Start launches the scheduler loop in the background.
func (s *Scheduler) Start() {
	s.metrics.CollectorRunning.Set(1)
	s.inner.StartAsync()
	s.logger.Info("scheduler started", "jobs", len(s.inner.Jobs()))
}

// Stop halts the loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.inner.Stop()
	s.metrics.CollectorRunning.Set(0)
	s.logger.Info("scheduler stopped")
}
