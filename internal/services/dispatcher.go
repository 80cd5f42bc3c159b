package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reclaim/internal/apperr"
	"reclaim/internal/metrics"
	"reclaim/internal/models"
	"reclaim/internal/push"
	"reclaim/internal/worker"
)

const defaultDispatchBatch = 500

// platformOrder fixes the order gateways are attempted in.
var platformOrder = []models.Platform{models.PlatformAndroid, models.PlatformIOS, models.PlatformWeb}

var gatewayLabels = map[models.Platform]string{
	models.PlatformAndroid: "FCM",
	models.PlatformIOS:     "APNs",
	models.PlatformWeb:     "Web Push",
}

// SendRequest is an immediate push to a set of users.
type SendRequest struct {
	UserIDs          []string       `json:"userIds"`
	Title            string         `json:"title"`
	Body             string         `json:"body"`
	Data             map[string]any `json:"data,omitempty"`
	NotificationType string         `json:"notificationType"`
	ActionScreen     string         `json:"actionScreen,omitempty"`
}

// SendSummary is the response of an immediate push. Message is set, and
// Success left out, when no user had an active token.
type SendSummary struct {
	Success   bool     `json:"success,omitempty"`
	Message   string   `json:"message,omitempty"`
	SentCount int      `json:"sentCount"`
	Errors    []string `json:"errors,omitempty"`
}

// DispatchSummary is the response of the pending-notification drain.
type DispatchSummary struct {
	Success                bool     `json:"success"`
	NotificationsProcessed int      `json:"notificationsProcessed"`
	SentCount              int      `json:"sentCount"`
	FailedCount            int      `json:"failedCount"`
	Errors                 []string `json:"errors,omitempty"`
}

// Dispatcher fans notifications out to the per-platform push gateways.
type Dispatcher struct {
	tokens        TokenRepository
	notifications NotificationRepository
	gateways      push.Gateways
	pool          *worker.Pool
	batchSize     int
	now           func() time.Time
	logger        *zap.Logger
}

func NewDispatcher(tokens TokenRepository, notifications NotificationRepository, gateways push.Gateways, pool *worker.Pool, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		tokens:        tokens,
		notifications: notifications,
		gateways:      gateways,
		pool:          pool,
		batchSize:     defaultDispatchBatch,
		now:           time.Now,
		logger:        logger,
	}
}

// delivery is the outcome of pushing one payload to a set of tokens.
type delivery struct {
	sent      int
	attempted int
	failed    int
	errors    []string
}

// Send pushes to every active token of the given users, one gateway call per
// platform, then records one sent notification per user. A platform without a
// gateway counts as zero sent.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (SendSummary, error) {
	if len(req.UserIDs) == 0 {
		return SendSummary{}, apperr.Validation("userIds is required")
	}
	tokens, err := d.tokens.ActiveForUsers(ctx, req.UserIDs)
	if err != nil {
		return SendSummary{}, fmt.Errorf("load tokens: %w", err)
	}
	if len(tokens) == 0 {
		return SendSummary{Message: "No active tokens found"}, nil
	}

	out := d.deliver(ctx, tokens, payloadFor(req.Title, req.Body, req.Data, req.NotificationType, req.ActionScreen))

	var data models.RawJSON
	if len(req.Data) > 0 {
		if data, err = json.Marshal(req.Data); err != nil {
			return SendSummary{}, apperr.Validation("data must be a JSON object")
		}
	}
	now := d.now()
	for _, userID := range req.UserIDs {
		n := models.Notification{
			ID:           uuid.NewString(),
			UserID:       userID,
			Title:        req.Title,
			Body:         req.Body,
			Type:         req.NotificationType,
			ActionData:   data,
			Status:       models.NotificationSent,
			ScheduledFor: now,
			SentAt:       &now,
			CreatedAt:    now,
		}
		if req.ActionScreen != "" {
			n.ActionScreen = &req.ActionScreen
		}
		if err := d.notifications.Create(ctx, n); err != nil {
			return SendSummary{}, fmt.Errorf("record notification: %w", err)
		}
	}

	return SendSummary{Success: true, SentCount: out.sent, Errors: out.errors}, nil
}

// DispatchPending delivers the due pending notifications. A notification is
// marked failed only when every gateway attempted for it failed; otherwise,
// including when its user has no tokens, it is marked sent.
func (d *Dispatcher) DispatchPending(ctx context.Context) (DispatchSummary, error) {
	due, err := d.notifications.ListDue(ctx, d.now(), d.batchSize)
	if err != nil {
		return DispatchSummary{}, fmt.Errorf("list due notifications: %w", err)
	}
	summary := DispatchSummary{Success: true, NotificationsProcessed: len(due)}
	if len(due) == 0 {
		return summary, nil
	}

	seen := make(map[string]bool)
	var userIDs []string
	byID := make(map[string]models.Notification, len(due))
	ids := make([]string, len(due))
	for i, n := range due {
		byID[n.ID] = n
		ids[i] = n.ID
		if !seen[n.UserID] {
			seen[n.UserID] = true
			userIDs = append(userIDs, n.UserID)
		}
	}
	tokens, err := d.tokens.ActiveForUsers(ctx, userIDs)
	if err != nil {
		return DispatchSummary{}, fmt.Errorf("load tokens: %w", err)
	}
	tokensByUser := make(map[string][]models.DeviceToken)
	for _, t := range tokens {
		tokensByUser[t.UserID] = append(tokensByUser[t.UserID], t)
	}

	results := worker.Run(ctx, d.pool, ids, func(ctx context.Context, id string) (bool, error) {
		n := byID[id]
		out := d.deliver(ctx, tokensByUser[n.UserID], notificationPayload(n))
		if out.attempted > 0 && out.failed == out.attempted {
			if err := d.notifications.MarkFailed(ctx, id, strings.Join(out.errors, "; ")); err != nil {
				return false, err
			}
			return false, nil
		}
		return true, d.notifications.MarkSent(ctx, id, d.now())
	})

	for _, r := range results {
		switch {
		case r.Err != nil:
			summary.Errors = append(summary.Errors, fmt.Sprintf("Notification %s: %s", r.Key, r.Err.Error()))
		case r.Value:
			summary.SentCount++
		default:
			summary.FailedCount++
		}
	}
	return summary, nil
}

func (d *Dispatcher) deliver(ctx context.Context, tokens []models.DeviceToken, p push.Payload) delivery {
	byPlatform := make(map[models.Platform][]string)
	for _, t := range tokens {
		byPlatform[t.Platform] = append(byPlatform[t.Platform], t.Token)
	}

	var out delivery
	for _, platform := range platformOrder {
		batch := byPlatform[platform]
		if len(batch) == 0 {
			continue
		}
		gw, ok := d.gateways[platform]
		if !ok {
			d.logger.Debug("no push gateway configured", zap.String("platform", string(platform)), zap.Int("tokens", len(batch)))
			continue
		}
		out.attempted++
		sent, err := gw.Send(ctx, batch, p)
		out.sent += sent
		metrics.PushDeliveries.WithLabelValues(string(platform)).Add(float64(sent))
		if err != nil {
			out.failed++
			metrics.PushFailures.WithLabelValues(string(platform)).Inc()
			d.logger.Warn("push gateway failed", zap.String("platform", string(platform)), zap.Error(err))
			out.errors = append(out.errors, fmt.Sprintf("%s Error: %s", gatewayLabels[platform], err.Error()))
		}
	}
	return out
}

// payloadFor merges the deep-link fields into the caller's data.
func payloadFor(title, body string, data map[string]any, typ, screen string) push.Payload {
	merged := make(map[string]any, len(data)+2)
	for k, v := range data {
		merged[k] = v
	}
	merged["notification_type"] = typ
	if screen != "" {
		merged["action_screen"] = screen
	}
	return push.Payload{Title: title, Body: body, Data: merged}
}

func notificationPayload(n models.Notification) push.Payload {
	var data map[string]any
	if len(n.ActionData) > 0 {
		_ = json.Unmarshal(n.ActionData, &data)
	}
	screen := ""
	if n.ActionScreen != nil {
		screen = *n.ActionScreen
	}
	return payloadFor(n.Title, n.Body, data, n.Type, screen)
}
