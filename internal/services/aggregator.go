package services

import (
	"context"
	"fmt"

	"reclaim/internal/models"
)

// Aggregator rebuilds daily stat records from the raw event logs.
type Aggregator struct {
	stats    StatsRepository
	activity ActivityRepository
}

func NewAggregator(stats StatsRepository, activity ActivityRepository) *Aggregator {
	return &Aggregator{stats: stats, activity: activity}
}

// Aggregate derives the record for the user's local date from every event in
// that local day and upserts it, replacing whatever was stored before.
func (a *Aggregator) Aggregate(ctx context.Context, user models.UserAccount, date string) (models.DailyStat, error) {
	from, to, err := dayBounds(date, user.Location())
	if err != nil {
		return models.DailyStat{}, err
	}

	sessions, err := a.activity.FocusSessionsBetween(ctx, user.ID, from, to)
	if err != nil {
		return models.DailyStat{}, fmt.Errorf("load focus sessions: %w", err)
	}
	blocks, err := a.activity.AppBlocksBetween(ctx, user.ID, from, to)
	if err != nil {
		return models.DailyStat{}, fmt.Errorf("load app blocks: %w", err)
	}
	spent, err := a.activity.PointsSpentBetween(ctx, user.ID, from, to)
	if err != nil {
		return models.DailyStat{}, fmt.Errorf("load points spent: %w", err)
	}

	stat := Fold(user.ID, date, sessions, blocks, spent)
	if err := a.stats.Upsert(ctx, stat); err != nil {
		return models.DailyStat{}, fmt.Errorf("store daily stats: %w", err)
	}
	return stat, nil
}

// Fold computes a daily stat record from one day's events. It depends only on
// its arguments, so the result does not change with event order or repetition
// of the call. UpdatedAt is left for the store to stamp.
func Fold(userID, date string, sessions []models.FocusSession, blocks []models.AppBlock, pointsSpent int) models.DailyStat {
	stat := models.DailyStat{UserID: userID, StatsDate: date, PointsSpent: pointsSpent}

	for _, s := range sessions {
		switch {
		case s.Completed:
			stat.FocusSessionsCompleted++
			stat.TotalFocusMinutes += s.DurationMinutes
			stat.PointsEarned += s.PointsEarned
		case s.CanceledAt != nil:
			stat.FocusSessionsCanceled++
		}
	}
	for _, b := range blocks {
		stat.TotalBlocks++
		stat.TotalMinutesSaved += b.MinutesReclaimed
		if b.EmergencyUnlocked {
			stat.EmergencyUnlocks++
		}
	}

	stat.HadFocusSession = stat.FocusSessionsCompleted > 0
	stat.StreakMaintained = stat.HadFocusSession
	return stat
}
