// Package scheduler triggers jobs on fixed intervals inside the server process.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reclaim/internal/config"
	"reclaim/internal/services"
)

// Runner runs a job by name.
type Runner interface {
	Run(ctx context.Context, name string) (services.Report, error)
}

type Entry struct {
	Job      string
	Interval time.Duration
}

// Entries maps the scheduler configuration to jobs. Zero intervals disable a job.
func Entries(cfg config.SchedulerConfig) []Entry {
	all := []Entry{
		{Job: services.JobDailyReset, Interval: cfg.ResetInterval},
		{Job: services.JobCalculateStreaks, Interval: cfg.StreakInterval},
		{Job: services.JobGenerateInsights, Interval: cfg.InsightInterval},
		{Job: services.JobDispatchNotifications, Interval: cfg.DispatchInterval},
	}
	out := all[:0]
	for _, e := range all {
		if e.Interval > 0 {
			out = append(out, e)
		}
	}
	return out
}

type Scheduler struct {
	runner  Runner
	entries []Entry
	timeout time.Duration
	logger  *zap.Logger
}

func New(runner Runner, entries []Entry, timeout time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{runner: runner, entries: entries, timeout: timeout, logger: logger}
}

// Run blocks until ctx is done. A tick that arrives while the previous run of
// the same job is still going is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range s.entries {
		g.Go(func() error {
			s.loop(ctx, e)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e Entry) {
	var running atomic.Bool
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	s.logger.Info("job scheduled", zap.String("job", e.Job), zap.Duration("interval", e.Interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !running.CompareAndSwap(false, true) {
				s.logger.Warn("previous run still in progress, skipping tick", zap.String("job", e.Job))
				continue
			}
			go func() {
				defer running.Store(false)
				s.runOnce(ctx, e.Job)
			}()
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job string) {
	ctx = services.WithTrigger(ctx, "scheduler")
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	// The runner logs and records the outcome.
	_, _ = s.runner.Run(ctx, job)
}
