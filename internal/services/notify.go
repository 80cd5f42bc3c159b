package services

import (
	"time"

	"github.com/google/uuid"

	"reclaim/internal/models"
)

// pendingNotification builds a notification queued for delivery at now.
func pendingNotification(userID, title, body, typ, screen string, data models.RawJSON, now time.Time) models.Notification {
	n := models.Notification{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        title,
		Body:         body,
		Type:         typ,
		ActionData:   data,
		Status:       models.NotificationPending,
		ScheduledFor: now,
		CreatedAt:    now,
	}
	if screen != "" {
		n.ActionScreen = &screen
	}
	return n
}
