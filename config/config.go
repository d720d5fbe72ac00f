// Package config loads process settings from the environment (and .env when present).
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve in slim images

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port         string
	DatabaseURL  string
	StoreDriver  string
	GatewayToken string

	Location           *time.Location
	DefaultDailyBudget int64

	OutboxPollInterval time.Duration
	OutboxMaxAttempts  int
	WebhookURL         string
	WebhookToken       string

	RedisURL         string
	SnapshotCacheTTL time.Duration

	RosterSyncURL      string
	RosterSyncInterval time.Duration

	R2AccountID string
	R2AccessKey string
	R2SecretKey string
	R2Bucket    string
	ArchiveHour uint

	AllowedOrigins string
}

// Load reads the environment. A missing .env file is fine; a malformed value is not.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		Port:           getenv("PORT", "5200"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StoreDriver:    strings.ToLower(getenv("STORE_DRIVER", DriverPostgres)),
		GatewayToken:   os.Getenv("GATEWAY_TOKEN"),
		WebhookURL:     os.Getenv("INTEGRATION_WEBHOOK_URL"),
		WebhookToken:   os.Getenv("INTEGRATION_WEBHOOK_TOKEN"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RosterSyncURL:  os.Getenv("ROSTER_SYNC_URL"),
		R2AccountID:    os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKey:    os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretKey:    os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:       os.Getenv("R2_BUCKET_NAME"),
		AllowedOrigins: getenv("ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	var err error
	if cfg.Location, err = time.LoadLocation(getenv("APP_TIMEZONE", "Europe/Prague")); err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	if cfg.DefaultDailyBudget, err = strconv.ParseInt(getenv("DEFAULT_DAILY_BUDGET", "1000"), 10, 64); err != nil || cfg.DefaultDailyBudget <= 0 {
		return nil, fmt.Errorf("DEFAULT_DAILY_BUDGET must be a positive integer")
	}
	if cfg.OutboxPollInterval, err = time.ParseDuration(getenv("OUTBOX_POLL_INTERVAL", "5s")); err != nil {
		return nil, fmt.Errorf("OUTBOX_POLL_INTERVAL: %w", err)
	}
	if cfg.OutboxMaxAttempts, err = strconv.Atoi(getenv("OUTBOX_MAX_ATTEMPTS", "5")); err != nil || cfg.OutboxMaxAttempts <= 0 {
		return nil, fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be a positive integer")
	}
	if cfg.SnapshotCacheTTL, err = time.ParseDuration(getenv("SNAPSHOT_CACHE_TTL", "60s")); err != nil {
		return nil, fmt.Errorf("SNAPSHOT_CACHE_TTL: %w", err)
	}
	if cfg.RosterSyncInterval, err = time.ParseDuration(getenv("ROSTER_SYNC_INTERVAL", "1m")); err != nil {
		return nil, fmt.Errorf("ROSTER_SYNC_INTERVAL: %w", err)
	}
	hour, err := strconv.ParseUint(getenv("ARCHIVE_HOUR", "2"), 10, 8)
	if err != nil || hour > 23 {
		return nil, fmt.Errorf("ARCHIVE_HOUR must be 0-23")
	}
	cfg.ArchiveHour = uint(hour)

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.GatewayToken == "" {
		return fmt.Errorf("GATEWAY_TOKEN is not set: service cannot authenticate Gateway")
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// ArchiveEnabled reports whether R2 settings are complete.
func (c *Config) ArchiveEnabled() bool {
	return c.R2Bucket != "" && c.R2AccountID != ""
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
