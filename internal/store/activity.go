package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"reclaim/internal/apperr"
	"reclaim/internal/models"
)

// ActivityRepository reads the raw event logs: focus sessions, app blocks and
// reward redemptions.
type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// FocusSessionsBetween returns sessions started in [from, to).
func (r *ActivityRepository) FocusSessionsBetween(ctx context.Context, userID string, from, to time.Time) ([]models.FocusSession, error) {
	var out []models.FocusSession
	query := r.db.Rebind(`SELECT id, user_id, duration_minutes, completed, points_earned,
			started_at, completed_at, canceled_at
		FROM focus_sessions
		WHERE user_id = ? AND started_at >= ? AND started_at < ?
		ORDER BY started_at`)
	if err := r.db.SelectContext(ctx, &out, query, userID, utc(from), utc(to)); err != nil {
		return nil, apperr.Database("list focus_sessions", err)
	}
	return out, nil
}

// AppBlocksBetween returns blocks recorded in [from, to).
func (r *ActivityRepository) AppBlocksBetween(ctx context.Context, userID string, from, to time.Time) ([]models.AppBlock, error) {
	var out []models.AppBlock
	query := r.db.Rebind(`SELECT id, user_id, package_name, app_name, minutes_reclaimed,
			emergency_unlocked, blocked_at
		FROM app_blocks
		WHERE user_id = ? AND blocked_at >= ? AND blocked_at < ?
		ORDER BY blocked_at`)
	if err := r.db.SelectContext(ctx, &out, query, userID, utc(from), utc(to)); err != nil {
		return nil, apperr.Database("list app_blocks", err)
	}
	return out, nil
}

// PointsSpentBetween sums points spent on redemptions made in [from, to).
func (r *ActivityRepository) PointsSpentBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var total int
	query := r.db.Rebind(`SELECT COALESCE(SUM(points_spent), 0) FROM user_rewards
		WHERE user_id = ? AND redeemed_at >= ? AND redeemed_at < ?`)
	if err := r.db.GetContext(ctx, &total, query, userID, utc(from), utc(to)); err != nil {
		return 0, apperr.Database("sum user_rewards", err)
	}
	return total, nil
}

func (r *ActivityRepository) InsertFocusSession(ctx context.Context, s models.FocusSession) error {
	s.StartedAt = utc(s.StartedAt)
	s.CompletedAt = utcPtr(s.CompletedAt)
	s.CanceledAt = utcPtr(s.CanceledAt)
	query := `INSERT INTO focus_sessions (id, user_id, duration_minutes, completed, points_earned,
			started_at, completed_at, canceled_at)
		VALUES (:id, :user_id, :duration_minutes, :completed, :points_earned,
			:started_at, :completed_at, :canceled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return apperr.Database("insert focus_session", err)
	}
	return nil
}

func (r *ActivityRepository) InsertAppBlock(ctx context.Context, b models.AppBlock) error {
	b.BlockedAt = utc(b.BlockedAt)
	query := `INSERT INTO app_blocks (id, user_id, package_name, app_name, minutes_reclaimed,
			emergency_unlocked, blocked_at)
		VALUES (:id, :user_id, :package_name, :app_name, :minutes_reclaimed,
			:emergency_unlocked, :blocked_at)`
	if _, err := r.db.NamedExecContext(ctx, query, b); err != nil {
		return apperr.Database("insert app_block", err)
	}
	return nil
}
