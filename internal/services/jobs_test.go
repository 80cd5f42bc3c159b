package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reclaim/internal/apperr"
	"reclaim/internal/metrics"
	"reclaim/internal/runlog"
)

func TestJobRunnerRecordsRuns(t *testing.T) {
	recorder := runlog.NewMemoryRecorder()
	runner := NewJobRunner(recorder, zap.NewNop())
	runner.Register(JobCalculateStreaks, Adapt(func(context.Context) (StreakSummary, error) {
		return StreakSummary{Success: true, UsersProcessed: 4, StreaksUpdated: 3, Errors: []string{"User u4: boom"}}, nil
	}))
	runner.Register(JobGenerateInsights, Adapt(func(context.Context) (InsightSummary, error) {
		return InsightSummary{}, assert.AnError
	}))

	processedBefore := testutil.ToFloat64(metrics.UsersProcessed.WithLabelValues(JobCalculateStreaks))
	failuresBefore := testutil.ToFloat64(metrics.JobRuns.WithLabelValues(JobGenerateInsights, "failure"))

	report, err := runner.Run(WithTrigger(context.Background(), "ops"), JobCalculateStreaks)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Processed())
	assert.Equal(t, 1, report.ErrorCount())

	_, err = runner.Run(context.Background(), JobGenerateInsights)
	require.ErrorIs(t, err, assert.AnError)

	runs, err := runner.Runs(context.Background(), JobCalculateStreaks, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.Equal(t, "ops", runs[0].TriggeredBy)
	assert.JSONEq(t, `{"success":true,"usersProcessed":4,"streaksUpdated":3,"errors":["User u4: boom"]}`, string(runs[0].Summary))

	runs, err = runner.Runs(context.Background(), JobGenerateInsights, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Success)
	assert.Empty(t, runs[0].TriggeredBy)
	assert.Contains(t, runs[0].Error, assert.AnError.Error())

	assert.Equal(t, processedBefore+4, testutil.ToFloat64(metrics.UsersProcessed.WithLabelValues(JobCalculateStreaks)))
	assert.Equal(t, failuresBefore+1, testutil.ToFloat64(metrics.JobRuns.WithLabelValues(JobGenerateInsights, "failure")))
	assert.Equal(t, []string{JobCalculateStreaks, JobGenerateInsights}, runner.Jobs())
}

func TestJobRunnerUnknownJob(t *testing.T) {
	runner := NewJobRunner(runlog.NewMemoryRecorder(), zap.NewNop())

	_, err := runner.Run(context.Background(), "nope")
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))
	_, err = runner.Runs(context.Background(), "nope", 1)
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))
}
