package services

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reclaim/internal/config"
	"reclaim/internal/models"
	"reclaim/internal/worker"
)

func TestStep(t *testing.T) {
	tests := []struct {
		name       string
		state      models.StreakState
		maintained bool
		want       models.StreakState
		outcome    StreakOutcome
	}{
		{
			name:       "maintained day increments",
			state:      models.StreakState{FocusStreakDays: 3, LongestStreakDays: 7, StreakEvaluatedDate: "2025-03-10", LastMaintainedDate: "2025-03-10"},
			maintained: true,
			want:       models.StreakState{FocusStreakDays: 4, LongestStreakDays: 7, StreakEvaluatedDate: "2025-03-11", LastMaintainedDate: "2025-03-11"},
			outcome:    StreakIncremented,
		},
		{
			name:       "new record raises longest",
			state:      models.StreakState{FocusStreakDays: 7, LongestStreakDays: 7, StreakEvaluatedDate: "2025-03-10", LastMaintainedDate: "2025-03-10"},
			maintained: true,
			want:       models.StreakState{FocusStreakDays: 8, LongestStreakDays: 8, StreakEvaluatedDate: "2025-03-11", LastMaintainedDate: "2025-03-11"},
			outcome:    StreakIncremented,
		},
		{
			name:       "first maintained day starts at one",
			state:      models.StreakState{},
			maintained: true,
			want:       models.StreakState{FocusStreakDays: 1, LongestStreakDays: 1, StreakEvaluatedDate: "2025-03-11", LastMaintainedDate: "2025-03-11"},
			outcome:    StreakIncremented,
		},
		{
			name:       "missed day after a gap resets",
			state:      models.StreakState{FocusStreakDays: 3, LongestStreakDays: 5, StreakEvaluatedDate: "2025-03-10", LastMaintainedDate: "2025-03-09"},
			maintained: false,
			want:       models.StreakState{FocusStreakDays: 0, LongestStreakDays: 5, StreakEvaluatedDate: "2025-03-11", LastMaintainedDate: "2025-03-09"},
			outcome:    StreakReset,
		},
		{
			name:       "first missed day is held",
			state:      models.StreakState{FocusStreakDays: 3, LongestStreakDays: 5, StreakEvaluatedDate: "2025-03-10", LastMaintainedDate: "2025-03-10"},
			maintained: false,
			want:       models.StreakState{FocusStreakDays: 3, LongestStreakDays: 5, StreakEvaluatedDate: "2025-03-11", LastMaintainedDate: "2025-03-10"},
			outcome:    StreakHeld,
		},
		{
			name:       "no activity ever stays at zero",
			state:      models.StreakState{},
			maintained: false,
			want:       models.StreakState{StreakEvaluatedDate: "2025-03-11"},
			outcome:    StreakReset,
		},
		{
			name:       "already evaluated day is skipped",
			state:      models.StreakState{FocusStreakDays: 4, LongestStreakDays: 4, StreakEvaluatedDate: "2025-03-11", LastMaintainedDate: "2025-03-11"},
			maintained: true,
			want:       models.StreakState{FocusStreakDays: 4, LongestStreakDays: 4, StreakEvaluatedDate: "2025-03-11", LastMaintainedDate: "2025-03-11"},
			outcome:    StreakSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome, err := Step(tt.state, "2025-03-11", tt.maintained)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.outcome, outcome)
		})
	}
}

func TestStepLongestNeverDecreases(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("longest is monotonic and bounds the current streak", prop.ForAll(
		func(days []bool, initial int) bool {
			state := models.StreakState{FocusStreakDays: initial, LongestStreakDays: initial + 2}
			date := "2025-01-01"
			for _, maintained := range days {
				next, _, err := Step(state, date, maintained)
				if err != nil {
					return false
				}
				if next.LongestStreakDays < state.LongestStreakDays || next.LongestStreakDays < next.FocusStreakDays {
					return false
				}
				state = next
				if date, err = addDays(date, 1); err != nil {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
		gen.IntRange(0, 30),
	))

	properties.Property("re-applying the same day changes nothing", prop.ForAll(
		func(days []bool) bool {
			state := models.StreakState{}
			date := "2025-01-01"
			for _, maintained := range days {
				state, _, _ = Step(state, date, maintained)
				again, outcome, _ := Step(state, date, maintained)
				if again != state || outcome != StreakSkipped {
					return false
				}
				date, _ = addDays(date, 1)
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

var evalNow = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

func newTestEngine(accounts *fakeAccounts, stats *fakeStats) *StreakEngine {
	e := NewStreakEngine(accounts, stats, NewAggregator(stats, &fakeActivity{}))
	e.now = fixedClock(evalNow)
	return e
}

func TestEvaluateStreakIncrementsOnce(t *testing.T) {
	accounts := newFakeAccounts(models.UserAccount{
		ID: "u1", FocusStreakDays: 3, LongestStreakDays: 3,
		StreakEvaluatedDate: "2025-03-10", LastMaintainedDate: "2025-03-10",
	})
	stats := newFakeStats(models.DailyStat{UserID: "u1", StatsDate: "2025-03-11", HadFocusSession: true})
	engine := newTestEngine(accounts, stats)

	res, err := engine.EvaluateStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, StreakIncremented, res.Outcome)
	assert.Equal(t, 4, res.State.FocusStreakDays)
	assert.Equal(t, 4, accounts.get("u1").LongestStreakDays)

	again, err := engine.EvaluateStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, StreakSkipped, again.Outcome)
	assert.Equal(t, 4, accounts.get("u1").FocusStreakDays)
}

func TestEvaluateStreakMissingRecordIsNotMaintained(t *testing.T) {
	accounts := newFakeAccounts(models.UserAccount{
		ID: "u1", FocusStreakDays: 3, LongestStreakDays: 6,
		StreakEvaluatedDate: "2025-03-10", LastMaintainedDate: "2025-03-09",
	})
	engine := newTestEngine(accounts, newFakeStats())

	res, err := engine.EvaluateStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StreakReset, res.Outcome)
	assert.Equal(t, 0, accounts.get("u1").FocusStreakDays)
	assert.Equal(t, 6, accounts.get("u1").LongestStreakDays)
}

func TestEvaluateStreakAggregatesDayWithoutRecord(t *testing.T) {
	accounts := newFakeAccounts(models.UserAccount{
		ID: "u1", FocusStreakDays: 5, LongestStreakDays: 5,
		StreakEvaluatedDate: "2025-03-10", LastMaintainedDate: "2025-03-10",
	})
	activity := &fakeActivity{sessions: []models.FocusSession{
		{UserID: "u1", Completed: true, DurationMinutes: 25, StartedAt: time.Date(2025, 3, 11, 18, 0, 0, 0, time.UTC)},
	}}
	stats := newFakeStats()
	engine := NewStreakEngine(accounts, stats, NewAggregator(stats, activity))
	engine.now = fixedClock(evalNow)

	res, err := engine.EvaluateStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StreakIncremented, res.Outcome)
	assert.Equal(t, 6, accounts.get("u1").FocusStreakDays)

	stat, err := stats.Get(context.Background(), "u1", "2025-03-11")
	require.NoError(t, err)
	assert.True(t, stat.HadFocusSession)
	assert.Equal(t, 25, stat.TotalFocusMinutes)
}

func TestStreakAndResetJobsAgreeInEitherOrder(t *testing.T) {
	for _, streakFirst := range []bool{true, false} {
		name := "reset first"
		if streakFirst {
			name = "streak first"
		}
		t.Run(name, func(t *testing.T) {
			day1 := time.Date(2025, 3, 12, 0, 5, 0, 0, time.UTC)
			now := day1
			clock := func() time.Time { return now }

			accounts := newFakeAccounts(models.UserAccount{
				ID: "u1", LastActiveAt: ptrTime(day1.Add(-time.Hour)),
				FocusStreakDays: 5, LongestStreakDays: 5,
				StreakEvaluatedDate: "2025-03-10", LastMaintainedDate: "2025-03-10",
			})
			activity := &fakeActivity{sessions: []models.FocusSession{
				{UserID: "u1", Completed: true, DurationMinutes: 25, StartedAt: time.Date(2025, 3, 11, 18, 0, 0, 0, time.UTC)},
				{UserID: "u1", Completed: true, DurationMinutes: 30, StartedAt: time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC)},
			}}
			stats := newFakeStats()
			notifications := &fakeNotifications{}
			aggregator := NewAggregator(stats, activity)
			engine := NewStreakEngine(accounts, stats, aggregator)
			engine.now = clock
			pool := worker.New(2, time.Second)
			reset := NewDailyReset(accounts, notifications, aggregator, engine, pool,
				config.JobsConfig{ResetPolicy: config.ResetPolicyCounter, ResetActiveWindow: 48 * time.Hour}, zap.NewNop())
			reset.now = clock
			job := NewStreakJob(accounts, engine, pool, 7*24*time.Hour, zap.NewNop())
			job.now = clock

			runStreaks := func() {
				summary, err := job.Run(context.Background())
				require.NoError(t, err)
				assert.Empty(t, summary.Errors)
			}
			runReset := func() {
				summary, err := reset.Run(context.Background())
				require.NoError(t, err)
				assert.Empty(t, summary.Errors)
				assert.Equal(t, 1, summary.UsersReset)
			}

			for i, want := range []int{6, 7} {
				now = day1.AddDate(0, 0, i)
				accounts.update("u1", func(a *models.UserAccount) {
					a.DailyReclaimedMinutes = 25
					a.LastActiveAt = ptrTime(now.Add(-time.Hour))
				})
				if streakFirst {
					runStreaks()
					runReset()
				} else {
					runReset()
					runStreaks()
				}
				got := accounts.get("u1")
				assert.Equal(t, want, got.FocusStreakDays, now)
				assert.Equal(t, want, got.LongestStreakDays, now)
				assert.Equal(t, now.AddDate(0, 0, -1).Format(models.DateLayout), got.LastMaintainedDate)
			}
			assert.Empty(t, notifications.all())
		})
	}
}

func TestEvaluateStreakCatchesUpMissedRuns(t *testing.T) {
	// The job did not run on the 10th or 11th; the 10th had a session.
	accounts := newFakeAccounts(models.UserAccount{
		ID: "u1", FocusStreakDays: 2, LongestStreakDays: 2,
		StreakEvaluatedDate: "2025-03-09", LastMaintainedDate: "2025-03-09",
	})
	stats := newFakeStats(models.DailyStat{UserID: "u1", StatsDate: "2025-03-10", HadFocusSession: true})
	engine := newTestEngine(accounts, stats)

	res, err := engine.EvaluateStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StreakHeld, res.Outcome)
	assert.True(t, res.AtRisk())

	got := accounts.get("u1")
	assert.Equal(t, 3, got.FocusStreakDays)
	assert.Equal(t, "2025-03-11", got.StreakEvaluatedDate)
	assert.Equal(t, "2025-03-10", got.LastMaintainedDate)
}

func TestEvaluateStreakUsesLocalYesterday(t *testing.T) {
	// 12:00 UTC on the 12th is 02:00 on the 13th in Kiritimati.
	accounts := newFakeAccounts(models.UserAccount{ID: "u1", Timezone: "Pacific/Kiritimati"})
	stats := newFakeStats(models.DailyStat{UserID: "u1", StatsDate: "2025-03-12", HadFocusSession: true})
	engine := newTestEngine(accounts, stats)

	res, err := engine.EvaluateStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-12", res.Date)
	assert.Equal(t, 1, accounts.get("u1").FocusStreakDays)
}

func TestStreakJobIsolatesFailures(t *testing.T) {
	active := ptrTime(evalNow.Add(-time.Hour))
	accounts := newFakeAccounts(
		models.UserAccount{ID: "u1", LastActiveAt: active},
		models.UserAccount{ID: "u2", LastActiveAt: active},
		models.UserAccount{ID: "u3", LastActiveAt: active, StreakEvaluatedDate: "2025-03-11"},
		models.UserAccount{ID: "stale", LastActiveAt: ptrTime(evalNow.Add(-30 * 24 * time.Hour))},
	)
	stats := newFakeStats(models.DailyStat{UserID: "u1", StatsDate: "2025-03-11", HadFocusSession: true})
	stats.failFor = map[string]error{"u2": assert.AnError}

	job := NewStreakJob(accounts, newTestEngine(accounts, stats), worker.New(4, time.Second), 7*24*time.Hour, zap.NewNop())
	job.now = fixedClock(evalNow)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 3, summary.UsersProcessed)
	assert.Equal(t, 1, summary.StreaksUpdated)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "User u2: ")
	assert.Equal(t, 1, accounts.get("u1").FocusStreakDays)
}

func TestStreakJobFailsWhenUsersCannotBeListed(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.listErr = assert.AnError
	job := NewStreakJob(accounts, newTestEngine(accounts, newFakeStats()), worker.New(1, 0), time.Hour, zap.NewNop())

	_, err := job.Run(context.Background())
	require.ErrorIs(t, err, assert.AnError)
}
