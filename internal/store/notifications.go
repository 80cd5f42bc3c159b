package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"reclaim/internal/apperr"
	"reclaim/internal/models"
)

const notificationColumns = `id, user_id, title, body, notification_type, action_screen, action_data,
	status, scheduled_for, sent_at, error_message, created_at`

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n models.Notification) error {
	n.ScheduledFor = utc(n.ScheduledFor)
	n.SentAt = utcPtr(n.SentAt)
	n.CreatedAt = utc(n.CreatedAt)
	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES (:id, :user_id, :title, :body, :notification_type, :action_screen, :action_data,
			:status, :scheduled_for, :sent_at, :error_message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return apperr.Database("insert notification", err)
	}
	return nil
}

// ListDue returns pending notifications scheduled at or before now, oldest first.
func (r *NotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	var out []models.Notification
	query := r.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications
		WHERE status = ? AND scheduled_for <= ?
		ORDER BY scheduled_for, id LIMIT ?`)
	if err := r.db.SelectContext(ctx, &out, query, models.NotificationPending, utc(now), limit); err != nil {
		return nil, apperr.Database("list due notifications", err)
	}
	return out, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := r.db.Rebind(`UPDATE notifications SET status = ?, sent_at = ?, error_message = NULL
		WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, models.NotificationSent, utc(sentAt), id); err != nil {
		return apperr.Database("mark notification sent", err)
	}
	return nil
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id, message string) error {
	query := r.db.Rebind(`UPDATE notifications SET status = ?, error_message = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, models.NotificationFailed, message, id); err != nil {
		return apperr.Database("mark notification failed", err)
	}
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	query := r.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = ? ORDER BY created_at, id`)
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, apperr.Database("list notifications", err)
	}
	return out, nil
}
