package services

import (
	"context"
	"sort"
	"sync"
	"time"
	_ "time/tzdata"

	"reclaim/internal/apperr"
	"reclaim/internal/models"
	"reclaim/internal/push"
)

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.UserAccount
	listErr  error
}

func newFakeAccounts(accts ...models.UserAccount) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[string]*models.UserAccount)}
	for i := range accts {
		a := accts[i]
		f.accounts[a.ID] = &a
	}
	return f
}

func (f *fakeAccounts) Get(_ context.Context, id string) (*models.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperr.NotFound("profile", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) list(keep func(models.UserAccount) bool) ([]models.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.UserAccount
	for _, a := range f.accounts {
		if keep(*a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAccounts) ListActiveSince(_ context.Context, since time.Time) ([]models.UserAccount, error) {
	return f.list(func(a models.UserAccount) bool {
		return a.LastActiveAt != nil && !a.LastActiveAt.Before(since)
	})
}

func (f *fakeAccounts) ListInsightCandidates(_ context.Context, since time.Time) ([]models.UserAccount, error) {
	return f.list(func(a models.UserAccount) bool {
		return a.AIInsightsEnabled && a.LastActiveAt != nil && !a.LastActiveAt.Before(since)
	})
}

func (f *fakeAccounts) ResetDailyCounters(_ context.Context, id, localDate string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return apperr.NotFound("profile", id)
	}
	a.DailyReclaimedMinutes = 0
	a.LastResetDate = localDate
	return nil
}

func (f *fakeAccounts) SaveStreak(_ context.Context, id string, s models.StreakState, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok || a.StreakEvaluatedDate >= s.StreakEvaluatedDate {
		return false, nil
	}
	a.FocusStreakDays = s.FocusStreakDays
	a.LongestStreakDays = s.LongestStreakDays
	a.StreakEvaluatedDate = s.StreakEvaluatedDate
	a.LastMaintainedDate = s.LastMaintainedDate
	return true, nil
}

func (f *fakeAccounts) update(id string, fn func(*models.UserAccount)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.accounts[id])
}

func (f *fakeAccounts) get(id string) models.UserAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.accounts[id]
}

type fakeStats struct {
	mu      sync.Mutex
	records map[string]models.DailyStat
	upserts int
	failFor map[string]error
}

func newFakeStats(stats ...models.DailyStat) *fakeStats {
	f := &fakeStats{records: make(map[string]models.DailyStat)}
	for _, s := range stats {
		f.records[s.UserID+"/"+s.StatsDate] = s
	}
	return f
}

func (f *fakeStats) Upsert(_ context.Context, s models.DailyStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[s.UserID+"/"+s.StatsDate] = s
	f.upserts++
	return nil
}

func (f *fakeStats) Get(_ context.Context, userID, date string) (*models.DailyStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[userID]; err != nil {
		return nil, err
	}
	s, ok := f.records[userID+"/"+date]
	if !ok {
		return nil, apperr.NotFound("daily_stats", userID+"/"+date)
	}
	return &s, nil
}

func (f *fakeStats) Recent(_ context.Context, userID string, limit int) ([]models.DailyStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DailyStat
	for _, s := range f.records {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatsDate > out[j].StatsDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeActivity struct {
	mu       sync.Mutex
	sessions []models.FocusSession
	blocks   []models.AppBlock
	failFor  map[string]error
}

func (f *fakeActivity) fail(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failFor[userID]
}

func (f *fakeActivity) FocusSessionsBetween(_ context.Context, userID string, from, to time.Time) ([]models.FocusSession, error) {
	if err := f.fail(userID); err != nil {
		return nil, err
	}
	var out []models.FocusSession
	for _, s := range f.sessions {
		if s.UserID == userID && !s.StartedAt.Before(from) && s.StartedAt.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeActivity) AppBlocksBetween(_ context.Context, userID string, from, to time.Time) ([]models.AppBlock, error) {
	if err := f.fail(userID); err != nil {
		return nil, err
	}
	var out []models.AppBlock
	for _, b := range f.blocks {
		if b.UserID == userID && !b.BlockedAt.Before(from) && b.BlockedAt.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeActivity) PointsSpentBetween(_ context.Context, userID string, _, _ time.Time) (int, error) {
	return 0, f.fail(userID)
}

type fakeInsights struct {
	mu      sync.Mutex
	created []models.Insight
}

func (f *fakeInsights) Create(_ context.Context, in models.Insight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return nil
}

func (f *fakeInsights) byUser(userID string) []models.Insight {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Insight
	for _, in := range f.created {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	return out
}

type fakeNotifications struct {
	mu        sync.Mutex
	items     []models.Notification
	createErr error
}

func (f *fakeNotifications) Create(_ context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.items = append(f.items, n)
	return nil
}

func (f *fakeNotifications) ListDue(_ context.Context, now time.Time, limit int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.items {
		if n.Status == models.NotificationPending && !n.ScheduledFor.After(now) && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) update(id string, fn func(*models.Notification)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			fn(&f.items[i])
		}
	}
}

func (f *fakeNotifications) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	f.update(id, func(n *models.Notification) {
		n.Status = models.NotificationSent
		n.SentAt = &sentAt
	})
	return nil
}

func (f *fakeNotifications) MarkFailed(_ context.Context, id, message string) error {
	f.update(id, func(n *models.Notification) {
		n.Status = models.NotificationFailed
		n.ErrorMessage = &message
	})
	return nil
}

func (f *fakeNotifications) all() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.items...)
}

func (f *fakeNotifications) forUser(userID string) []models.Notification {
	var out []models.Notification
	for _, n := range f.all() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fakeTokens struct {
	tokens []models.DeviceToken
}

func (f *fakeTokens) ActiveForUsers(_ context.Context, userIDs []string) ([]models.DeviceToken, error) {
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var out []models.DeviceToken
	for _, t := range f.tokens {
		if t.Active && want[t.UserID] {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   [][]string
	payload push.Payload
	err     error
}

func (g *fakeGateway) Send(_ context.Context, tokens []string, p push.Payload) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, append([]string(nil), tokens...))
	g.payload = p
	if g.err != nil {
		return 0, g.err
	}
	return len(tokens), nil
}

type fakeRedemptions struct {
	mu       sync.Mutex
	items    map[string]*models.Redemption
	partners map[string]string
	applied  int
}

func (f *fakeRedemptions) Get(_ context.Context, id string) (*models.Redemption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("redemption", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRedemptions) ApplyFulfillment(_ context.Context, id string, u models.FulfillmentUpdate, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return apperr.NotFound("redemption", id)
	}
	r.Status = u.Status
	r.RedemptionCode = u.RedemptionCode
	r.FulfillmentData = u.FulfillmentData
	r.ErrorMessage = u.ErrorMessage
	r.UpdatedAt = now
	f.applied++
	return nil
}

func (f *fakeRedemptions) PartnerName(_ context.Context, rewardID string) (string, error) {
	return f.partners[rewardID], nil
}

type fakeProvider func(userID string, kind models.InsightKind) (string, error)

func (f fakeProvider) Generate(_ context.Context, userID string, kind models.InsightKind) (string, error) {
	return f(userID, kind)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptrTime(t time.Time) *time.Time { return &t }
