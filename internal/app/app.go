// Package app wires the store, services and HTTP routes into one service.
package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"reclaim/internal/config"
	"reclaim/internal/handlers"
	"reclaim/internal/insight"
	mw "reclaim/internal/middleware"
	"reclaim/internal/push"
	"reclaim/internal/runlog"
	"reclaim/internal/services"
	"reclaim/internal/store"
	"reclaim/internal/worker"
)

// Deps are the collaborators built outside the app, usually by Bootstrap.
type Deps struct {
	Store    *store.Store
	Recorder runlog.Recorder
	Gateways push.Gateways
	Provider insight.Provider
	Logger   *zap.Logger
}

type App struct {
	Store      *store.Store
	Runner     *services.JobRunner
	Dispatcher *services.Dispatcher
	Rewards    *services.RewardService
	Streaks    *services.StreakReader

	cfg    *config.Config
	logger *zap.Logger
}

func New(cfg *config.Config, deps Deps) *App {
	s := deps.Store
	logger := deps.Logger
	pool := worker.New(cfg.Jobs.Workers, cfg.Jobs.UserTimeout)

	aggregator := services.NewAggregator(s.Stats, s.Activity)
	engine := services.NewStreakEngine(s.Accounts, s.Stats, aggregator)
	reset := services.NewDailyReset(s.Accounts, s.Notifications, aggregator, engine, pool, cfg.Jobs, logger.Named("daily-reset"))
	streaks := services.NewStreakJob(s.Accounts, engine, pool, cfg.Jobs.StreakActiveWindow, logger.Named("streaks"))
	insights := services.NewInsightGenerator(s.Accounts, s.Insights, s.Notifications, deps.Provider, pool,
		cfg.Jobs.InsightActiveWindow, logger.Named("insights"))
	dispatcher := services.NewDispatcher(s.Tokens, s.Notifications, deps.Gateways, pool, logger.Named("dispatch"))

	runner := services.NewJobRunner(deps.Recorder, logger.Named("jobs"))
	runner.Register(services.JobDailyReset, services.Adapt(reset.Run))
	runner.Register(services.JobCalculateStreaks, services.Adapt(streaks.Run))
	runner.Register(services.JobGenerateInsights, services.Adapt(insights.Run))
	runner.Register(services.JobDispatchNotifications, services.Adapt(dispatcher.DispatchPending))

	return &App{
		Store:      s,
		Runner:     runner,
		Dispatcher: dispatcher,
		Rewards:    services.NewRewardService(s.Redemptions, s.Notifications, cfg.Auth.WebhookSecret, logger.Named("rewards")),
		Streaks:    services.NewStreakReader(s.Accounts, s.Stats),
		cfg:        cfg,
		logger:     logger,
	}
}

// Router builds the HTTP surface. Job and notification routes require a
// service-role token; the partner webhook authenticates by shared secret.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Signature"},
		MaxAge:         300,
	}))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.ZapRequestLogger(a.logger))
	r.Use(chimw.Recoverer)

	health := handlers.NewHealthHandler(a.Store)
	jobs := handlers.NewJobsHandler(a.Runner, a.cfg.Jobs.JobTimeout)
	notifications := handlers.NewNotificationsHandler(a.Dispatcher)
	webhook := handlers.NewWebhookHandler(a.Rewards)
	streak := handlers.NewStreakHandler(a.Streaks)
	authMW := mw.NewAuthMiddleware([]byte(a.cfg.Auth.JWTSecret))

	r.Get("/healthz", health.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/webhooks/partner-rewards", webhook.PartnerFulfillment)

		api.Group(func(pr chi.Router) {
			pr.Use(authMW.RequireServiceRole)
			pr.Use(chimw.Timeout(a.requestTimeout()))
			pr.Get("/jobs", jobs.List)
			pr.Post("/jobs/{job}", jobs.Run)
			pr.Get("/jobs/{job}/runs", jobs.Runs)
			pr.Post("/notifications/send", notifications.Send)
			pr.Get("/users/{userID}/streak", streak.Get)
		})
	})
	return r
}

// requestTimeout leaves the job timeout room to produce its summary.
func (a *App) requestTimeout() time.Duration {
	if a.cfg.Jobs.JobTimeout <= 0 {
		return 10 * time.Minute
	}
	return a.cfg.Jobs.JobTimeout + 30*time.Second
}
