package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"reclaim/internal/apperr"
	"reclaim/internal/models"
)

const accountColumns = `id, last_active_at, timezone, daily_reclaimed_minutes, total_reclaimed_minutes,
	focus_streak, longest_streak, total_points, ai_enabled, last_reset_date,
	streak_evaluated_date, last_maintained_date, created_at, updated_at`

type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, a *models.UserAccount) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	query := `INSERT INTO profiles (` + accountColumns + `)
		VALUES (:id, :last_active_at, :timezone, :daily_reclaimed_minutes, :total_reclaimed_minutes,
			:focus_streak, :longest_streak, :total_points, :ai_enabled, :last_reset_date,
			:streak_evaluated_date, :last_maintained_date, :created_at, :updated_at)`
	row := *a
	row.LastActiveAt = utcPtr(a.LastActiveAt)
	row.CreatedAt = utc(a.CreatedAt)
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return apperr.Database("insert profile", err)
	}
	return nil
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*models.UserAccount, error) {
	var a models.UserAccount
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM profiles WHERE id = ?`)
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("profile", id)
		}
		return nil, apperr.Database("select profile", err)
	}
	return &a, nil
}

// ListActiveSince returns accounts whose last activity is at or after since.
func (r *AccountRepository) ListActiveSince(ctx context.Context, since time.Time) ([]models.UserAccount, error) {
	var out []models.UserAccount
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM profiles
		WHERE last_active_at >= ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &out, query, utc(since)); err != nil {
		return nil, apperr.Database("list active profiles", err)
	}
	return out, nil
}

// ListInsightCandidates returns opted-in accounts active at or after since.
func (r *AccountRepository) ListInsightCandidates(ctx context.Context, since time.Time) ([]models.UserAccount, error) {
	var out []models.UserAccount
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM profiles
		WHERE ai_enabled = ? AND last_active_at >= ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &out, query, true, utc(since)); err != nil {
		return nil, apperr.Database("list insight candidates", err)
	}
	return out, nil
}

// ResetDailyCounters zeroes the daily-scoped counters and records the local
// date the reset belongs to.
func (r *AccountRepository) ResetDailyCounters(ctx context.Context, id, localDate string, now time.Time) error {
	query := r.db.Rebind(`UPDATE profiles
		SET daily_reclaimed_minutes = 0, last_reset_date = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, localDate, utc(now), id)
	if err != nil {
		return apperr.Database("reset daily counters", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("profile", id)
	}
	return nil
}

// SaveStreak stores a streak evaluation only if no evaluation for the same or a
// later closed day has been stored meanwhile. It reports whether the row changed.
func (r *AccountRepository) SaveStreak(ctx context.Context, id string, s models.StreakState, now time.Time) (bool, error) {
	query := r.db.Rebind(`UPDATE profiles
		SET focus_streak = ?, longest_streak = ?, streak_evaluated_date = ?,
			last_maintained_date = ?, updated_at = ?
		WHERE id = ? AND streak_evaluated_date < ?`)
	res, err := r.db.ExecContext(ctx, query,
		s.FocusStreakDays, s.LongestStreakDays, s.StreakEvaluatedDate,
		s.LastMaintainedDate, utc(now), id, s.StreakEvaluatedDate)
	if err != nil {
		return false, apperr.Database("save streak", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Database("save streak", err)
	}
	return n > 0, nil
}
