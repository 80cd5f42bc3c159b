// Package insight produces the textual productivity and risk insights shown to users.
package insight

import (
	"context"
	"time"

	"reclaim/internal/models"
)

// Provider returns one insight of the given kind for a user, or "" when it has
// nothing to say.
type Provider interface {
	Generate(ctx context.Context, userID string, kind models.InsightKind) (string, error)
}

// Title is the heading shown above an insight of kind.
func Title(kind models.InsightKind) string {
	switch kind {
	case models.InsightProductivity:
		return "Peak Productivity"
	case models.InsightRisk:
		return "Scroll Risk Alert"
	default:
		return "Insight"
	}
}

// Kinds lists every kind generated per user, in generation order.
var Kinds = []models.InsightKind{models.InsightProductivity, models.InsightRisk}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

const (
	defaultTimeout     = 30 * time.Second
	defaultBurst       = 1
	defaultMaxRetries  = 2
	maxResponseBytes   = 64 << 10
	defaultBaseBackoff = 500 * time.Millisecond
)
