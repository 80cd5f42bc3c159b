package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"reclaim/internal/apperr"
	"reclaim/internal/models"
)

const statColumns = `user_id, stats_date, total_focus_minutes, focus_sessions_completed,
	focus_sessions_canceled, total_blocks, total_minutes_saved, emergency_unlocks,
	points_earned, points_spent, had_focus_session, streak_maintained, updated_at`

type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Upsert writes the record for (user, date), replacing every aggregated column.
func (r *StatsRepository) Upsert(ctx context.Context, s models.DailyStat) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	s.UpdatedAt = utc(s.UpdatedAt)
	query := `INSERT INTO daily_stats (` + statColumns + `)
		VALUES (:user_id, :stats_date, :total_focus_minutes, :focus_sessions_completed,
			:focus_sessions_canceled, :total_blocks, :total_minutes_saved, :emergency_unlocks,
			:points_earned, :points_spent, :had_focus_session, :streak_maintained, :updated_at)
		ON CONFLICT (user_id, stats_date)
		DO UPDATE SET
			total_focus_minutes = EXCLUDED.total_focus_minutes,
			focus_sessions_completed = EXCLUDED.focus_sessions_completed,
			focus_sessions_canceled = EXCLUDED.focus_sessions_canceled,
			total_blocks = EXCLUDED.total_blocks,
			total_minutes_saved = EXCLUDED.total_minutes_saved,
			emergency_unlocks = EXCLUDED.emergency_unlocks,
			points_earned = EXCLUDED.points_earned,
			points_spent = EXCLUDED.points_spent,
			had_focus_session = EXCLUDED.had_focus_session,
			streak_maintained = EXCLUDED.streak_maintained,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return apperr.Database("upsert daily_stats", err)
	}
	return nil
}

func (r *StatsRepository) Get(ctx context.Context, userID, date string) (*models.DailyStat, error) {
	var s models.DailyStat
	query := r.db.Rebind(`SELECT ` + statColumns + ` FROM daily_stats WHERE user_id = ? AND stats_date = ?`)
	if err := r.db.GetContext(ctx, &s, query, userID, date); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("daily_stats", userID+"/"+date)
		}
		return nil, apperr.Database("select daily_stats", err)
	}
	return &s, nil
}

// Recent returns up to limit records, newest date first.
func (r *StatsRepository) Recent(ctx context.Context, userID string, limit int) ([]models.DailyStat, error) {
	var out []models.DailyStat
	query := r.db.Rebind(`SELECT ` + statColumns + ` FROM daily_stats
		WHERE user_id = ? ORDER BY stats_date DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &out, query, userID, limit); err != nil {
		return nil, apperr.Database("list daily_stats", err)
	}
	return out, nil
}
