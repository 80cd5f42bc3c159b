package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"reclaim/internal/insight"
	"reclaim/internal/models"
	"reclaim/internal/worker"
)

// InsightSummary is the response of the generate-insights job.
type InsightSummary struct {
	Success           bool     `json:"success"`
	UsersProcessed    int      `json:"usersProcessed"`
	InsightsGenerated int      `json:"insightsGenerated"`
	Errors            []string `json:"errors,omitempty"`
}

// InsightGenerator asks the provider for one insight of every kind per opted-in
// user and queues a single notification for users who got at least one.
type InsightGenerator struct {
	accounts      AccountRepository
	insights      InsightRepository
	notifications NotificationRepository
	provider      insight.Provider
	pool          *worker.Pool
	window        time.Duration
	policy        *bluemonday.Policy
	now           func() time.Time
	logger        *zap.Logger
}

func NewInsightGenerator(
	accounts AccountRepository,
	insights InsightRepository,
	notifications NotificationRepository,
	provider insight.Provider,
	pool *worker.Pool,
	window time.Duration,
	logger *zap.Logger,
) *InsightGenerator {
	return &InsightGenerator{
		accounts:      accounts,
		insights:      insights,
		notifications: notifications,
		provider:      provider,
		pool:          pool,
		window:        window,
		policy:        bluemonday.StrictPolicy(),
		now:           time.Now,
		logger:        logger,
	}
}

func (g *InsightGenerator) Run(ctx context.Context) (InsightSummary, error) {
	users, err := g.accounts.ListInsightCandidates(ctx, g.now().Add(-g.window))
	if err != nil {
		return InsightSummary{}, fmt.Errorf("list insight candidates: %w", err)
	}

	results := worker.Run(ctx, g.pool, accountIDs(users), g.generateForUser)

	summary := InsightSummary{Success: true, UsersProcessed: len(users)}
	for _, r := range results {
		summary.InsightsGenerated += r.Value
		if r.Err != nil {
			summary.Errors = append(summary.Errors, userError(r.Key, r.Err))
		}
	}
	return summary, nil
}

// generateForUser returns how many insights were stored. A failing kind is
// logged and does not stop the other kind.
func (g *InsightGenerator) generateForUser(ctx context.Context, userID string) (int, error) {
	log := g.logger.With(zap.String("user_id", userID))
	generated := 0
	for _, kind := range insight.Kinds {
		text, err := g.provider.Generate(ctx, userID, kind)
		if err != nil {
			log.Warn("insight generation failed", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		text = strings.TrimSpace(html.UnescapeString(g.policy.Sanitize(text)))
		if text == "" {
			continue
		}

		now := g.now()
		in := models.Insight{
			ID:          uuid.NewString(),
			UserID:      userID,
			Kind:        kind,
			Title:       insight.Title(kind),
			Description: text,
			CreatedAt:   now,
		}
		if err := g.insights.Create(ctx, in); err != nil {
			log.Warn("insight store failed", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		generated++
	}

	if generated == 0 {
		return 0, nil
	}
	n := pendingNotification(userID,
		"New AI Insights",
		"We've analyzed your patterns and have new insights for you",
		models.TypeNewInsight, "ai-insights", nil, g.now())
	if err := g.notifications.Create(ctx, n); err != nil {
		log.Warn("insight notification failed", zap.String("step", "notify"), zap.Error(err))
		return generated, fmt.Errorf("queue insight notification: %w", err)
	}
	return generated, nil
}
