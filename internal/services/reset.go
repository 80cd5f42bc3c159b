package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reclaim/internal/config"
	"reclaim/internal/models"
	"reclaim/internal/worker"
)

// ResetSummary is the response of the daily-reset job.
type ResetSummary struct {
	Success        bool     `json:"success"`
	UsersProcessed int      `json:"usersProcessed"`
	UsersReset     int      `json:"usersReset"`
	Errors         []string `json:"errors,omitempty"`
}

// DailyReset closes out the previous local day for every recently active user
// that is due: aggregate yesterday, zero the daily counters, evaluate the
// streak. Each step is idempotent, so overlapping runs are safe.
type DailyReset struct {
	accounts      AccountRepository
	notifications NotificationRepository
	aggregator    *Aggregator
	streaks       *StreakEngine
	pool          *worker.Pool
	policy        string
	window        time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

func NewDailyReset(
	accounts AccountRepository,
	notifications NotificationRepository,
	aggregator *Aggregator,
	streaks *StreakEngine,
	pool *worker.Pool,
	cfg config.JobsConfig,
	logger *zap.Logger,
) *DailyReset {
	return &DailyReset{
		accounts:      accounts,
		notifications: notifications,
		aggregator:    aggregator,
		streaks:       streaks,
		pool:          pool,
		policy:        cfg.ResetPolicy,
		window:        cfg.ResetActiveWindow,
		now:           time.Now,
		logger:        logger,
	}
}

func (r *DailyReset) Run(ctx context.Context) (ResetSummary, error) {
	users, err := r.accounts.ListActiveSince(ctx, r.now().Add(-r.window))
	if err != nil {
		return ResetSummary{}, fmt.Errorf("list active users: %w", err)
	}

	byID := make(map[string]models.UserAccount, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	results := worker.Run(ctx, r.pool, accountIDs(users), func(ctx context.Context, id string) (bool, error) {
		return r.resetUser(ctx, byID[id])
	})

	summary := ResetSummary{Success: true, UsersProcessed: len(users)}
	for _, res := range results {
		if res.Value {
			summary.UsersReset++
		}
		if res.Err != nil {
			summary.Errors = append(summary.Errors, userError(res.Key, res.Err))
		}
	}
	return summary, nil
}

// due reports whether the user's previous day still needs closing out.
func (r *DailyReset) due(u models.UserAccount, today string) bool {
	if r.policy == config.ResetPolicyLocalDate {
		return u.LastResetDate < today
	}
	return u.DailyReclaimedMinutes > 0
}

// resetUser runs the close-out sequence for one user. It reports true once the
// counters were zeroed and the streak evaluated; a failed streak-risk
// notification is still reported as an error.
func (r *DailyReset) resetUser(ctx context.Context, u models.UserAccount) (bool, error) {
	now := r.now()
	loc := u.Location()
	today := localDate(now, loc)
	if !r.due(u, today) {
		return false, nil
	}
	closed := yesterday(now, loc)
	log := r.logger.With(zap.String("user_id", u.ID), zap.String("date", closed))

	if _, err := r.aggregator.Aggregate(ctx, u, closed); err != nil {
		log.Warn("daily reset failed", zap.String("step", "aggregate"), zap.Error(err))
		return false, err
	}
	if err := r.accounts.ResetDailyCounters(ctx, u.ID, today, now); err != nil {
		log.Warn("daily reset failed", zap.String("step", "reset"), zap.Error(err))
		return false, err
	}
	streak, err := r.streaks.EvaluateStreak(ctx, u.ID)
	if err != nil {
		log.Warn("daily reset failed", zap.String("step", "streak"), zap.Error(err))
		return false, err
	}

	if streak.AtRisk() {
		n := pendingNotification(u.ID,
			"Streak at Risk!",
			fmt.Sprintf("You haven't focused yet today. Complete a session to keep your %d-day streak!", streak.State.FocusStreakDays),
			models.TypeStreakRisk, "dashboard", nil, now)
		if err := r.notifications.Create(ctx, n); err != nil {
			log.Warn("streak risk notification failed", zap.String("step", "notify"), zap.Error(err))
			return true, fmt.Errorf("queue streak risk notification: %w", err)
		}
	}
	return true, nil
}
