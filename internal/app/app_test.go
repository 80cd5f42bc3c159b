package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reclaim/internal/config"
	"reclaim/internal/db"
	mw "reclaim/internal/middleware"
	"reclaim/internal/models"
	"reclaim/internal/push"
	"reclaim/internal/runlog"
	"reclaim/internal/store"
)

const (
	testJWTSecret     = "test-secret"
	testWebhookSecret = "hook-secret"
)

type recordingGateway struct {
	mu     sync.Mutex
	tokens []string
}

func (g *recordingGateway) Send(_ context.Context, tokens []string, _ push.Payload) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens = append(g.tokens, tokens...)
	return len(tokens), nil
}

type testEnv struct {
	store   *store.Store
	handler http.Handler
	android *recordingGateway
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbCfg := config.DatabaseConfig{Driver: db.DriverSQLite, URL: filepath.Join(t.TempDir(), "app.db")}
	conn, err := db.Open(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.RunMigrations(conn, dbCfg.URL))

	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: testJWTSecret, WebhookSecret: testWebhookSecret},
		Jobs: config.JobsConfig{
			Workers:             2,
			JobTimeout:          time.Minute,
			UserTimeout:         5 * time.Second,
			ResetActiveWindow:   48 * time.Hour,
			StreakActiveWindow:  7 * 24 * time.Hour,
			InsightActiveWindow: 7 * 24 * time.Hour,
			ResetPolicy:         config.ResetPolicyCounter,
		},
	}
	s := store.New(conn, nil)
	android := &recordingGateway{}
	a := New(cfg, Deps{
		Store:    s,
		Recorder: runlog.NewMemoryRecorder(),
		Gateways: push.Gateways{models.PlatformAndroid: android},
		Provider: staticProvider{},
		Logger:   zap.NewNop(),
	})

	token, err := mw.NewServiceToken([]byte(testJWTSecret), "scheduler", time.Hour)
	require.NoError(t, err)
	return &testEnv{store: s, handler: a.Router(), android: android, token: token}
}

type staticProvider struct{}

func (staticProvider) Generate(_ context.Context, _ string, kind models.InsightKind) (string, error) {
	return "insight about " + string(kind), nil
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) authed() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) seedAccount(t *testing.T, a models.UserAccount) {
	t.Helper()
	require.NoError(t, e.store.Accounts.Create(context.Background(), &a))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestProtectedRoutesRequireServiceRole(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/jobs/daily-reset", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/notifications/send", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunDailyResetJob(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	y := now.AddDate(0, 0, -1)
	lastActive := now.Add(-time.Hour)
	env.seedAccount(t, models.UserAccount{ID: "u1", Timezone: "UTC", LastActiveAt: &lastActive, DailyReclaimedMinutes: 25})
	require.NoError(t, env.store.Activity.InsertFocusSession(context.Background(), models.FocusSession{
		ID: "s1", UserID: "u1", DurationMinutes: 25, Completed: true, PointsEarned: 10,
		StartedAt: time.Date(y.Year(), y.Month(), y.Day(), 12, 0, 0, 0, time.UTC),
	}))

	rec := env.do(t, http.MethodPost, "/api/jobs/daily-reset", nil, env.authed())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["usersProcessed"])
	assert.EqualValues(t, 1, body["usersReset"])

	got, err := env.store.Accounts.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.DailyReclaimedMinutes)
	assert.Equal(t, 1, got.FocusStreakDays)

	rec = env.do(t, http.MethodGet, "/api/jobs/daily-reset/runs?limit=5", nil, env.authed())
	require.Equal(t, http.StatusOK, rec.Code)
	var runs struct {
		Runs []struct {
			Job         string          `json:"job"`
			TriggeredBy string          `json:"triggered_by"`
			Success     bool            `json:"success"`
			Summary     json.RawMessage `json:"summary"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, "daily-reset", runs.Runs[0].Job)
	assert.True(t, runs.Runs[0].Success)
	assert.Equal(t, "scheduler", runs.Runs[0].TriggeredBy)
	assert.JSONEq(t, `{"success":true,"usersProcessed":1,"usersReset":1}`, string(runs.Runs[0].Summary))

	rec = env.do(t, http.MethodGet, "/api/users/u1/streak", nil, env.authed())
	require.Equal(t, http.StatusOK, rec.Code)
	streak := decodeBody(t, rec)
	assert.EqualValues(t, 1, streak["currentStreak"])
	assert.Equal(t, []any{map[string]any{"date": y.Format(models.DateLayout), "hadSession": true}}, streak["streakHistory"])
}

func TestUnknownJobAndBadLimit(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/jobs/nope", nil, env.authed())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "job not found")

	rec = env.do(t, http.MethodGet, "/api/jobs/daily-reset/runs?limit=-1", nil, env.authed())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/jobs", nil, env.authed())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"calculate-streaks", "daily-reset", "dispatch-notifications", "generate-insights"}, decodeBody(t, rec)["jobs"])
}

func TestSendNotification(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.seedAccount(t, models.UserAccount{ID: "u1", LastActiveAt: &now})
	require.NoError(t, env.store.Tokens.Upsert(context.Background(), models.DeviceToken{
		UserID: "u1", Token: "tok-1", Platform: models.PlatformAndroid, Active: true,
	}))

	rec := env.do(t, http.MethodPost, "/api/notifications/send", map[string]any{
		"userIds":          []string{"u1"},
		"title":            "Hi",
		"body":             "there",
		"notificationType": "system",
	}, env.authed())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decodeBody(t, rec)["sentCount"])
	assert.Equal(t, []string{"tok-1"}, env.android.tokens)

	sent, err := env.store.Notifications.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, models.NotificationSent, sent[0].Status)

	rec = env.do(t, http.MethodPost, "/api/notifications/send", map[string]any{"title": "Hi", "notificationType": "system"}, env.authed())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPartnerWebhook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	env.seedAccount(t, models.UserAccount{ID: "u1", LastActiveAt: &now})
	require.NoError(t, env.store.Redemptions.CreateReward(ctx, "coffee", "Bean Co", "Coffee", 100))
	require.NoError(t, env.store.Redemptions.Create(ctx, models.Redemption{
		ID: "r1", UserID: "u1", RewardID: "coffee", PointsSpent: 100,
		Status: models.RedemptionRedeemed, RedeemedAt: now, UpdatedAt: now,
	}))
	signed := map[string]string{"X-Webhook-Signature": testWebhookSecret}
	callback := map[string]any{"redemption_id": "r1", "status": "delivered", "redemption_code": "ABC-123"}

	rec := env.do(t, http.MethodPost, "/api/webhooks/partner-rewards", callback, map[string]string{"X-Webhook-Signature": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/webhooks/partner-rewards", callback, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	untouched, err := env.store.Redemptions.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionRedeemed, untouched.Status)
	assert.Nil(t, untouched.RedemptionCode)
	none, err := env.store.Notifications.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, none)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/partner-rewards", bytes.NewBufferString("{not json"))
	req.Header.Set("X-Webhook-Signature", testWebhookSecret)
	bad := httptest.NewRecorder()
	env.handler.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	rec = env.do(t, http.MethodPost, "/api/webhooks/partner-rewards",
		map[string]any{"redemption_id": "missing", "status": "delivered"}, signed)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/webhooks/partner-rewards", callback, signed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"success": true, "redemption_id": "r1", "status": "delivered"}, decodeBody(t, rec))

	red, err := env.store.Redemptions.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionDelivered, red.Status)
	require.NotNil(t, red.RedemptionCode)
	assert.Equal(t, "ABC-123", *red.RedemptionCode)

	queued, err := env.store.Notifications.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, models.TypeRewardUpdate, queued[0].Type)
	assert.Equal(t, models.NotificationPending, queued[0].Status)
}
