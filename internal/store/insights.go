package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"reclaim/internal/apperr"
	"reclaim/internal/models"
)

type InsightRepository struct {
	db *sqlx.DB
}

func NewInsightRepository(db *sqlx.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Create appends an insight. Insights are never updated by the pipeline.
func (r *InsightRepository) Create(ctx context.Context, in models.Insight) error {
	in.CreatedAt = utc(in.CreatedAt)
	query := `INSERT INTO ai_insights (id, user_id, type, title, description, created_at, dismissed_at)
		VALUES (:id, :user_id, :type, :title, :description, :created_at, :dismissed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, in); err != nil {
		return apperr.Database("insert ai_insight", err)
	}
	return nil
}

func (r *InsightRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Insight, error) {
	var out []models.Insight
	query := r.db.Rebind(`SELECT id, user_id, type, title, description, created_at, dismissed_at
		FROM ai_insights WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &out, query, userID, limit); err != nil {
		return nil, apperr.Database("list ai_insights", err)
	}
	return out, nil
}
