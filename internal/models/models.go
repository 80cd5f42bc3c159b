package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DateLayout is the layout of every local calendar date stored by the pipeline.
const DateLayout = "2006-01-02"

type UserAccount struct {
	ID                    string     `db:"id" json:"id"`
	LastActiveAt          *time.Time `db:"last_active_at" json:"last_active_at,omitempty"`
	Timezone              string     `db:"timezone" json:"timezone"` // IANA name, empty means UTC
	DailyReclaimedMinutes int        `db:"daily_reclaimed_minutes" json:"daily_reclaimed_minutes"`
	TotalReclaimedMinutes int        `db:"total_reclaimed_minutes" json:"total_reclaimed_minutes"`
	FocusStreakDays       int        `db:"focus_streak" json:"focus_streak"`
	LongestStreakDays     int        `db:"longest_streak" json:"longest_streak"`
	TotalPoints           int        `db:"total_points" json:"total_points"`
	AIInsightsEnabled     bool       `db:"ai_enabled" json:"ai_enabled"`
	LastResetDate         string     `db:"last_reset_date" json:"last_reset_date,omitempty"`
	StreakEvaluatedDate   string     `db:"streak_evaluated_date" json:"streak_evaluated_date,omitempty"`
	LastMaintainedDate    string     `db:"last_maintained_date" json:"last_maintained_date,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// Location resolves the account timezone, falling back to UTC when it is
// absent or not a valid IANA name.
func (u UserAccount) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StreakState is the streak-related slice of a UserAccount.
type StreakState struct {
	FocusStreakDays     int    `json:"focus_streak_days"`
	LongestStreakDays   int    `json:"longest_streak_days"`
	StreakEvaluatedDate string `json:"streak_evaluated_date,omitempty"`
	LastMaintainedDate  string `json:"last_maintained_date,omitempty"`
}

func (u UserAccount) Streak() StreakState {
	return StreakState{
		FocusStreakDays:     u.FocusStreakDays,
		LongestStreakDays:   u.LongestStreakDays,
		StreakEvaluatedDate: u.StreakEvaluatedDate,
		LastMaintainedDate:  u.LastMaintainedDate,
	}
}

type DailyStat struct {
	UserID                 string    `db:"user_id" json:"user_id"`
	StatsDate              string    `db:"stats_date" json:"stats_date"` // YYYY-MM-DD in the user's timezone
	TotalFocusMinutes      int       `db:"total_focus_minutes" json:"total_focus_minutes"`
	FocusSessionsCompleted int       `db:"focus_sessions_completed" json:"focus_sessions_completed"`
	FocusSessionsCanceled  int       `db:"focus_sessions_canceled" json:"focus_sessions_canceled"`
	TotalBlocks            int       `db:"total_blocks" json:"total_blocks"`
	TotalMinutesSaved      int       `db:"total_minutes_saved" json:"total_minutes_saved"`
	EmergencyUnlocks       int       `db:"emergency_unlocks" json:"emergency_unlocks"`
	PointsEarned           int       `db:"points_earned" json:"points_earned"`
	PointsSpent            int       `db:"points_spent" json:"points_spent"`
	HadFocusSession        bool      `db:"had_focus_session" json:"had_focus_session"`
	StreakMaintained       bool      `db:"streak_maintained" json:"streak_maintained"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

type FocusSession struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Completed       bool       `db:"completed" json:"completed"`
	PointsEarned    int        `db:"points_earned" json:"points_earned"`
	StartedAt       time.Time  `db:"started_at" json:"started_at"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CanceledAt      *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
}

type AppBlock struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	PackageName       string    `db:"package_name" json:"package_name"`
	AppName           string    `db:"app_name" json:"app_name"`
	MinutesReclaimed  int       `db:"minutes_reclaimed" json:"minutes_reclaimed"`
	EmergencyUnlocked bool      `db:"emergency_unlocked" json:"emergency_unlocked"`
	BlockedAt         time.Time `db:"blocked_at" json:"blocked_at"`
}

type InsightKind string

const (
	InsightProductivity InsightKind = "productivity"
	InsightRisk         InsightKind = "risk"
)

type Insight struct {
	ID          string      `db:"id" json:"id"`
	UserID      string      `db:"user_id" json:"user_id"`
	Kind        InsightKind `db:"type" json:"type"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	DismissedAt *time.Time  `db:"dismissed_at" json:"dismissed_at,omitempty"`
}

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification types produced by the pipeline.
const (
	TypeNewInsight   = "new_insight"
	TypeRewardUpdate = "reward_update"
	TypeStreakRisk   = "streak_risk"
)

type Notification struct {
	ID           string             `db:"id" json:"id"`
	UserID       string             `db:"user_id" json:"user_id"`
	Title        string             `db:"title" json:"title"`
	Body         string             `db:"body" json:"body"`
	Type         string             `db:"notification_type" json:"notification_type"`
	ActionScreen *string            `db:"action_screen" json:"action_screen,omitempty"`
	ActionData   RawJSON            `db:"action_data" json:"action_data,omitempty"`
	Status       NotificationStatus `db:"status" json:"status"`
	ScheduledFor time.Time          `db:"scheduled_for" json:"scheduled_for"`
	SentAt       *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	ErrorMessage *string            `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

type DeviceToken struct {
	UserID   string   `db:"user_id" json:"user_id"`
	Token    string   `db:"token" json:"token"`
	Platform Platform `db:"platform" json:"platform"`
	Active   bool     `db:"active" json:"active"`
}

type RedemptionStatus string

const (
	RedemptionRedeemed  RedemptionStatus = "redeemed"
	RedemptionDelivered RedemptionStatus = "delivered"
	RedemptionActivated RedemptionStatus = "activated"
	RedemptionFailed    RedemptionStatus = "failed"
)

type Redemption struct {
	ID              string           `db:"id" json:"id"`
	UserID          string           `db:"user_id" json:"user_id"`
	RewardID        string           `db:"reward_id" json:"reward_id"`
	PointsSpent     int              `db:"points_spent" json:"points_spent"`
	Status          RedemptionStatus `db:"status" json:"status"`
	RedemptionCode  *string          `db:"redemption_code" json:"redemption_code,omitempty"` // Encrypted in DB when a key is configured
	FulfillmentData RawJSON          `db:"fulfillment_data" json:"fulfillment_data,omitempty"`
	ErrorMessage    *string          `db:"error_message" json:"error_message,omitempty"`
	RedeemedAt      time.Time        `db:"redeemed_at" json:"redeemed_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// FulfillmentUpdate is the partner-reported outcome of a redemption.
type FulfillmentUpdate struct {
	Status          RedemptionStatus
	RedemptionCode  *string
	FulfillmentData RawJSON
	ErrorMessage    *string
}

// RawJSON is a nullable JSON document column.
type RawJSON []byte

func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

func (j *RawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(RawJSON(nil), v...)
	case string:
		*j = RawJSON(v)
	default:
		return fmt.Errorf("models: cannot scan %T into RawJSON", src)
	}
	return nil
}

func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *RawJSON) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*j = nil
		return nil
	}
	*j = append(RawJSON(nil), b...)
	return nil
}
