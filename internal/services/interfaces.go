package services

import (
	"context"
	"time"

	"reclaim/internal/models"
)

// AccountRepository is the slice of the profiles store the jobs need.
type AccountRepository interface {
	Get(ctx context.Context, id string) (*models.UserAccount, error)
	ListActiveSince(ctx context.Context, since time.Time) ([]models.UserAccount, error)
	ListInsightCandidates(ctx context.Context, since time.Time) ([]models.UserAccount, error)
	ResetDailyCounters(ctx context.Context, id, localDate string, now time.Time) error
	SaveStreak(ctx context.Context, id string, s models.StreakState, now time.Time) (bool, error)
}

type StatsRepository interface {
	Upsert(ctx context.Context, s models.DailyStat) error
	Get(ctx context.Context, userID, date string) (*models.DailyStat, error)
	Recent(ctx context.Context, userID string, limit int) ([]models.DailyStat, error)
}

// ActivityRepository reads the raw event logs. Every range is [from, to).
type ActivityRepository interface {
	FocusSessionsBetween(ctx context.Context, userID string, from, to time.Time) ([]models.FocusSession, error)
	AppBlocksBetween(ctx context.Context, userID string, from, to time.Time) ([]models.AppBlock, error)
	PointsSpentBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
}

type InsightRepository interface {
	Create(ctx context.Context, in models.Insight) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id, message string) error
}

type TokenRepository interface {
	ActiveForUsers(ctx context.Context, userIDs []string) ([]models.DeviceToken, error)
}

type RedemptionRepository interface {
	Get(ctx context.Context, id string) (*models.Redemption, error)
	ApplyFulfillment(ctx context.Context, id string, u models.FulfillmentUpdate, now time.Time) error
	PartnerName(ctx context.Context, rewardID string) (string, error)
}
