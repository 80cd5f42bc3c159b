package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"reclaim/internal/apperr"
	"reclaim/internal/metrics"
	"reclaim/internal/runlog"
)

// Job names, as used in routes, the scheduler and the run history.
const (
	JobDailyReset            = "daily-reset"
	JobCalculateStreaks      = "calculate-streaks"
	JobGenerateInsights      = "generate-insights"
	JobDispatchNotifications = "dispatch-notifications"
)

// Report is a job summary as returned to callers and stored in the run history.
type Report interface {
	Processed() int
	ErrorCount() int
}

func (s ResetSummary) Processed() int     { return s.UsersProcessed }
func (s ResetSummary) ErrorCount() int    { return len(s.Errors) }
func (s StreakSummary) Processed() int    { return s.UsersProcessed }
func (s StreakSummary) ErrorCount() int   { return len(s.Errors) }
func (s InsightSummary) Processed() int   { return s.UsersProcessed }
func (s InsightSummary) ErrorCount() int  { return len(s.Errors) }
func (s DispatchSummary) Processed() int  { return s.NotificationsProcessed }
func (s DispatchSummary) ErrorCount() int { return len(s.Errors) }

type JobFunc func(ctx context.Context) (Report, error)

type triggerKey struct{}

// WithTrigger names who started the runs made with ctx: a token subject, the
// scheduler or the CLI.
func WithTrigger(ctx context.Context, by string) context.Context {
	return context.WithValue(ctx, triggerKey{}, by)
}

// TriggeredBy returns the name set by WithTrigger, empty when unset.
func TriggeredBy(ctx context.Context) string {
	by, _ := ctx.Value(triggerKey{}).(string)
	return by
}

// Adapt turns a job's typed Run method into a JobFunc.
func Adapt[S Report](fn func(context.Context) (S, error)) JobFunc {
	return func(ctx context.Context) (Report, error) {
		s, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// JobRunner runs registered jobs by name, recording every run in the history
// and the job metrics.
type JobRunner struct {
	jobs     map[string]JobFunc
	recorder runlog.Recorder
	now      func() time.Time
	logger   *zap.Logger
}

func NewJobRunner(recorder runlog.Recorder, logger *zap.Logger) *JobRunner {
	return &JobRunner{
		jobs:     make(map[string]JobFunc),
		recorder: recorder,
		now:      time.Now,
		logger:   logger,
	}
}

func (r *JobRunner) Register(name string, fn JobFunc) {
	r.jobs[name] = fn
}

// Jobs lists the registered job names in sorted order.
func (r *JobRunner) Jobs() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named job. A returned error is a top-level failure; per-user
// failures are inside the report.
func (r *JobRunner) Run(ctx context.Context, name string) (Report, error) {
	fn, ok := r.jobs[name]
	if !ok {
		return nil, apperr.NotFound("job", name)
	}

	start := r.now()
	report, err := fn(ctx)
	elapsed := r.now().Sub(start)

	by := TriggeredBy(ctx)
	run := runlog.Run{
		Job:         name,
		TriggeredBy: by,
		StartedAt:   start,
		DurationMs:  elapsed.Milliseconds(),
		Success:     err == nil,
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		run.Error = err.Error()
		r.logger.Error("job failed",
			zap.String("job", name),
			zap.String("triggered_by", by),
			zap.Duration("duration", elapsed),
			zap.Error(err))
	} else {
		if summary, merr := json.Marshal(report); merr == nil {
			run.Summary = summary
		}
		metrics.UsersProcessed.WithLabelValues(name).Add(float64(report.Processed()))
		metrics.UserErrors.WithLabelValues(name).Add(float64(report.ErrorCount()))
		r.logger.Info("job finished",
			zap.String("job", name),
			zap.String("triggered_by", by),
			zap.Int("processed", report.Processed()),
			zap.Int("errors", report.ErrorCount()),
			zap.Duration("duration", elapsed))
	}
	metrics.JobRuns.WithLabelValues(name, outcome).Inc()
	metrics.JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if rerr := r.recorder.Record(context.WithoutCancel(ctx), run); rerr != nil {
		r.logger.Warn("failed to record job run", zap.String("job", name), zap.Error(rerr))
	}
	return report, err
}

// Runs returns the recorded history of a registered job, newest first.
func (r *JobRunner) Runs(ctx context.Context, name string, limit int) ([]runlog.Run, error) {
	if _, ok := r.jobs[name]; !ok {
		return nil, apperr.NotFound("job", name)
	}
	runs, err := r.recorder.List(ctx, name, limit)
	if err != nil {
		return nil, apperr.Internal("failed to load job runs", err)
	}
	return runs, nil
}
