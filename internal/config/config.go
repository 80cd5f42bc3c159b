// Package config loads the service configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devWebhookSecret = "dev-secret"

// Reset policies.
const (
	ResetPolicyCounter   = "counter"
	ResetPolicyLocalDate = "local_date"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Push      PushConfig
	Insight   InsightConfig
	Jobs      JobsConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Driver            string // pgx or sqlite
	URL               string
	MaxOpenConns      int
	MigrationsEnabled bool
	RedisURL          string
}

type AuthConfig struct {
	JWTSecret     string
	WebhookSecret string
	EncryptionKey string
}

type PushConfig struct {
	FCMServerKey  string
	FCMEndpoint   string
	APNsEndpoint  string
	APNsAuthToken string
	APNsTopic     string
}

type InsightConfig struct {
	ProviderURL string
	ProviderKey string
	RatePerSec  float64
}

type JobsConfig struct {
	Workers             int
	JobTimeout          time.Duration
	UserTimeout         time.Duration
	ResetActiveWindow   time.Duration
	StreakActiveWindow  time.Duration
	InsightActiveWindow time.Duration
	ResetPolicy         string
}

type SchedulerConfig struct {
	Enabled          bool
	ResetInterval    time.Duration
	StreakInterval   time.Duration
	InsightInterval  time.Duration
	DispatchInterval time.Duration
}

type LoggingConfig struct {
	Level string
	Path  string
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	env := getEnv("APP_ENV", "production")
	webhookSecret := getEnv("PARTNER_WEBHOOK_SECRET", "")
	if webhookSecret == "" && env == "development" {
		webhookSecret = devWebhookSecret
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  env,
		},
		Database: DatabaseConfig{
			Driver:            getEnv("DATABASE_DRIVER", "pgx"),
			URL:               getEnv("DATABASE_URL", ""),
			MaxOpenConns:      getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MigrationsEnabled: getEnvAsBool("MIGRATIONS_ENABLED", true),
			RedisURL:          getEnv("REDIS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			WebhookSecret: webhookSecret,
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Push: PushConfig{
			FCMServerKey:  getEnv("FCM_SERVER_KEY", ""),
			FCMEndpoint:   getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
			APNsEndpoint:  getEnv("APNS_ENDPOINT", ""),
			APNsAuthToken: getEnv("APNS_AUTH_TOKEN", ""),
			APNsTopic:     getEnv("APNS_TOPIC", ""),
		},
		Insight: InsightConfig{
			ProviderURL: getEnv("INSIGHT_PROVIDER_URL", ""),
			ProviderKey: getEnv("INSIGHT_PROVIDER_KEY", ""),
			RatePerSec:  getEnvAsFloat("INSIGHT_RATE_PER_SEC", 5),
		},
		Jobs: JobsConfig{
			Workers:             getEnvAsInt("JOB_WORKERS", 8),
			JobTimeout:          getEnvAsDuration("JOB_TIMEOUT", 5*time.Minute),
			UserTimeout:         getEnvAsDuration("USER_TIMEOUT", 30*time.Second),
			ResetActiveWindow:   getEnvAsDuration("RESET_ACTIVE_WINDOW", 48*time.Hour),
			StreakActiveWindow:  getEnvAsDuration("STREAK_ACTIVE_WINDOW", 7*24*time.Hour),
			InsightActiveWindow: getEnvAsDuration("INSIGHT_ACTIVE_WINDOW", 7*24*time.Hour),
			ResetPolicy:         strings.ToLower(getEnv("RESET_POLICY", ResetPolicyCounter)),
		},
		Scheduler: SchedulerConfig{
			Enabled:          getEnvAsBool("SCHEDULER_ENABLED", false),
			ResetInterval:    getEnvAsDuration("RESET_INTERVAL", time.Hour),
			StreakInterval:   getEnvAsDuration("STREAK_INTERVAL", 24*time.Hour),
			InsightInterval:  getEnvAsDuration("INSIGHT_INTERVAL", 24*time.Hour),
			DispatchInterval: getEnvAsDuration("DISPATCH_INTERVAL", time.Minute),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Path:  getEnv("LOG_PATH", ""),
		},
	}
	return cfg, nil
}

// Validate reports every missing or invalid required key.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Database.Driver != "pgx" && c.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be pgx or sqlite, got %q", c.Database.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.WebhookSecret == "" {
		errs = append(errs, errors.New("PARTNER_WEBHOOK_SECRET is required"))
	}
	if c.Jobs.ResetPolicy != ResetPolicyCounter && c.Jobs.ResetPolicy != ResetPolicyLocalDate {
		errs = append(errs, fmt.Errorf("RESET_POLICY must be %s or %s, got %q",
			ResetPolicyCounter, ResetPolicyLocalDate, c.Jobs.ResetPolicy))
	}
	if c.Jobs.Workers < 1 {
		errs = append(errs, errors.New("JOB_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
