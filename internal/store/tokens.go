package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"reclaim/internal/apperr"
	"reclaim/internal/models"
)

type TokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// ActiveForUsers returns the active device tokens of the given users.
func (r *TokenRepository) ActiveForUsers(ctx context.Context, userIDs []string) ([]models.DeviceToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT user_id, token, platform, active FROM notification_tokens
		WHERE active = ? AND user_id IN (?) ORDER BY user_id, token`, true, userIDs)
	if err != nil {
		return nil, apperr.Internal("build token query", err)
	}
	var out []models.DeviceToken
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, apperr.Database("list notification_tokens", err)
	}
	return out, nil
}

// Upsert registers a token, moving it to the given user if it already exists.
func (r *TokenRepository) Upsert(ctx context.Context, t models.DeviceToken) error {
	query := `INSERT INTO notification_tokens (token, user_id, platform, active)
		VALUES (:token, :user_id, :platform, :active)
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			active = EXCLUDED.active`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return apperr.Database("upsert notification_token", err)
	}
	return nil
}
