// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one named periodic task.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler wraps a UTC cron runner whose jobs share one cancellable context.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New returns an idle scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add registers job; schedules use the standard five-field syntax or descriptors like "@hourly".
func (s *Scheduler) Add(job Job) error {
	_, err := s.cron.AddFunc(job.Schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Schedule, err)
	}
	s.logger.Info("job scheduled", "job", job.Name, "schedule", job.Schedule)
	return nil
}

func (s *Scheduler) runJob(job Job) {
	started := time.Now()
	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("scheduled job failed", "job", job.Name, "error", err.Error())
		return
	}
	s.logger.Debug("scheduled job finished", "job", job.Name, "elapsed_ms", time.Since(started).Milliseconds())
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels the jobs' context and waits for running jobs to return.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
}

// Len reports the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// SessionSweep returns the job that deletes expired browser sessions.
func SessionSweep(schedule string, sweep func(ctx context.Context) (int64, error), logger *slog.Logger) Job {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return Job{
		Name:     "session-sweep",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			removed, err := sweep(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.Info("expired sessions removed", "count", removed)
			}
			return nil
		},
	}
}
