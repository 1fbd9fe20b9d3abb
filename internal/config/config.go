// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ledger/internal/core/numerator"
)

// Config holds the settings shared by the server, worker and CLI.
type Config struct {
	AppEnv   string
	HTTPPort string

	DatabaseURL         string
	DBMaxConns          int32
	DBMinConns          int32
	MigrationsAutoApply bool

	LogLevel       string
	LogDevelopment bool

	// RateLimit uses the limiter format, e.g. "100-M" for 100 requests a minute.
	RateLimit          string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
	IdempotencyTTL     time.Duration

	WorkerInterval  time.Duration
	WorkerBatchSize int

	NumeratorStrategy numerator.Strategy
}

// Load reads .env when present, then the environment over the defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_AUTO_APPLY", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RATE_LIMIT", "100-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("WORKER_INTERVAL", "1s")
	v.SetDefault("WORKER_BATCH_SIZE", 100)
	v.SetDefault("NUMERATOR_STRATEGY", "strict")
	v.AutomaticEnv()

	cfg := &Config{
		AppEnv:              v.GetString("APP_ENV"),
		HTTPPort:            v.GetString("HTTP_PORT"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		DBMaxConns:          v.GetInt32("DB_MAX_CONNS"),
		DBMinConns:          v.GetInt32("DB_MIN_CONNS"),
		MigrationsAutoApply: v.GetBool("MIGRATIONS_AUTO_APPLY"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		RateLimit:           v.GetString("RATE_LIMIT"),
		ShutdownTimeout:     v.GetDuration("SHUTDOWN_TIMEOUT"),
		IdempotencyTTL:      v.GetDuration("IDEMPOTENCY_TTL"),
		WorkerInterval:      v.GetDuration("WORKER_INTERVAL"),
		WorkerBatchSize:     v.GetInt("WORKER_BATCH_SIZE"),
	}
	cfg.LogDevelopment = cfg.AppEnv == "development"
	cfg.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))

	strategy, err := parseStrategy(v.GetString("NUMERATOR_STRATEGY"))
	if err != nil {
		return nil, err
	}
	cfg.NumeratorStrategy = strategy

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the process runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.WorkerBatchSize <= 0 {
		return fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.WorkerInterval <= 0 {
		return fmt.Errorf("WORKER_INTERVAL must be positive")
	}
	return nil
}

func parseStrategy(s string) (numerator.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return numerator.StrategyStrict, nil
	case "cached":
		return numerator.StrategyCached, nil
	default:
		return 0, fmt.Errorf("unknown NUMERATOR_STRATEGY %q (want strict or cached)", s)
	}
}

func splitList(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
