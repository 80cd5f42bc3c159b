package app

import (
	"fmt"

	"go.uber.org/zap"

	"reclaim/internal/config"
	"reclaim/internal/db"
	"reclaim/internal/insight"
	"reclaim/internal/models"
	"reclaim/internal/push"
	"reclaim/internal/runlog"
	"reclaim/internal/services"
	"reclaim/internal/store"
)

// Bootstrap opens the database, applies migrations when enabled and builds the
// optional backends from configuration. The returned cleanup closes them.
func Bootstrap(cfg *config.Config, logger *zap.Logger) (*App, func(), error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	cleanup := []func(){func() { conn.Close() }}
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	if cfg.Database.MigrationsEnabled {
		if err := db.RunMigrations(conn, cfg.Database.URL); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	encryption, err := services.NewEncryptionService(cfg.Auth.EncryptionKey)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("init encryption: %w", err)
	}
	var cipher store.RedemptionCipher
	if encryption != nil {
		cipher = encryption
	} else {
		logger.Warn("ENCRYPTION_KEY not set; redemption codes are stored in plaintext")
	}

	var recorder runlog.Recorder
	if cfg.Database.RedisURL != "" {
		rr, err := runlog.NewRedisRecorder(cfg.Database.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		cleanup = append(cleanup, func() { rr.Close() })
		recorder = rr
	} else {
		recorder = runlog.NewMemoryRecorder()
	}

	s := store.New(conn, cipher)

	var provider insight.Provider
	if cfg.Insight.ProviderURL != "" {
		provider = insight.NewHTTPProvider(cfg.Insight.ProviderURL, cfg.Insight.ProviderKey, cfg.Insight.RatePerSec)
	} else {
		logger.Info("INSIGHT_PROVIDER_URL not set; insights are derived from activity stats")
		provider = insight.NewStatsProvider(s.Accounts, s.Activity)
	}

	gateways := push.NewGateways(cfg.Push)
	for _, p := range []models.Platform{models.PlatformAndroid, models.PlatformIOS} {
		if _, ok := gateways[p]; !ok {
			logger.Warn("push gateway not configured", zap.String("platform", string(p)))
		}
	}

	a := New(cfg, Deps{
		Store:    s,
		Recorder: recorder,
		Gateways: gateways,
		Provider: provider,
		Logger:   logger,
	})
	return a, closeAll, nil
}
