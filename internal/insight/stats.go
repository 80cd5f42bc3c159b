package insight

import (
	"context"
	"fmt"
	"time"

	"reclaim/internal/models"
)

const (
	lookbackDays = 7
	bucketHours  = 3
)

type ActivitySource interface {
	FocusSessionsBetween(ctx context.Context, userID string, from, to time.Time) ([]models.FocusSession, error)
	AppBlocksBetween(ctx context.Context, userID string, from, to time.Time) ([]models.AppBlock, error)
}

type AccountSource interface {
	Get(ctx context.Context, id string) (*models.UserAccount, error)
}

// StatsProvider derives insights from the user's own last week of activity,
// bucketed by local hour of day.
type StatsProvider struct {
	accounts AccountSource
	activity ActivitySource
	now      func() time.Time
}

func NewStatsProvider(accounts AccountSource, activity ActivitySource) *StatsProvider {
	return &StatsProvider{accounts: accounts, activity: activity, now: time.Now}
}

func (p *StatsProvider) Generate(ctx context.Context, userID string, kind models.InsightKind) (string, error) {
	acct, err := p.accounts.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	loc := acct.Location()
	to := p.now().In(loc)
	from := to.AddDate(0, 0, -lookbackDays)

	switch kind {
	case models.InsightProductivity:
		sessions, err := p.activity.FocusSessionsBetween(ctx, userID, from, to)
		if err != nil {
			return "", err
		}
		return peakFocusWindow(sessions, loc), nil
	case models.InsightRisk:
		blocks, err := p.activity.AppBlocksBetween(ctx, userID, from, to)
		if err != nil {
			return "", err
		}
		return peakRiskHour(blocks, loc), nil
	default:
		return "", fmt.Errorf("unknown insight kind %q", kind)
	}
}

// peakFocusWindow picks the 3-hour local window with the most completed focus
// minutes; ties go to the earlier window.
func peakFocusWindow(sessions []models.FocusSession, loc *time.Location) string {
	var minutes [24 / bucketHours]int
	for _, s := range sessions {
		if !s.Completed {
			continue
		}
		minutes[s.StartedAt.In(loc).Hour()/bucketHours] += s.DurationMinutes
	}
	best := -1
	for i, m := range minutes {
		if m > 0 && (best < 0 || m > minutes[best]) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	start := best * bucketHours
	return fmt.Sprintf("You focus best between %s", hourRange(start, start+bucketHours))
}

// peakRiskHour picks the local hour with the most blocked app launches,
// emergency unlocks counting double.
func peakRiskHour(blocks []models.AppBlock, loc *time.Location) string {
	var score [24]int
	for _, b := range blocks {
		w := 1
		if b.EmergencyUnlocked {
			w = 2
		}
		score[b.BlockedAt.In(loc).Hour()] += w
	}
	best := -1
	for h, s := range score {
		if s > 0 && (best < 0 || s > score[best]) {
			best = h
		}
	}
	if best < 0 {
		return ""
	}
	return fmt.Sprintf("High scroll risk detected around %s", clock(best))
}

// hourRange renders "6-9am" or "9am-12pm".
func hourRange(from, to int) string {
	if meridiem(from) == meridiem(to%24) {
		return fmt.Sprintf("%d-%s", hour12(from), clock(to%24))
	}
	return clock(from) + "-" + clock(to%24)
}

func clock(h int) string {
	return fmt.Sprintf("%d%s", hour12(h), meridiem(h))
}

func hour12(h int) int {
	if h%12 == 0 {
		return 12
	}
	return h % 12
}

func meridiem(h int) string {
	if h < 12 {
		return "am"
	}
	return "pm"
}
