// Package store holds the sqlx repositories over the relational schema. Every
// query is written with '?' placeholders and rebound for the connection's driver,
// so the same code serves Postgres (pgx) and SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"reclaim/internal/models"
)

// RedemptionCipher seals redemption codes at rest.
type RedemptionCipher interface {
	EncryptRedemption(r *models.Redemption) error
	DecryptRedemption(r *models.Redemption) error
}

// Store groups the repositories built over one connection.
type Store struct {
	DB            *sqlx.DB
	Accounts      *AccountRepository
	Stats         *StatsRepository
	Activity      *ActivityRepository
	Insights      *InsightRepository
	Notifications *NotificationRepository
	Tokens        *TokenRepository
	Redemptions   *RedemptionRepository
}

func New(db *sqlx.DB, cipher RedemptionCipher) *Store {
	return &Store{
		DB:            db,
		Accounts:      NewAccountRepository(db),
		Stats:         NewStatsRepository(db),
		Activity:      NewActivityRepository(db),
		Insights:      NewInsightRepository(db),
		Notifications: NewNotificationRepository(db),
		Tokens:        NewTokenRepository(db),
		Redemptions:   NewRedemptionRepository(db, cipher),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
