// Package main is the entry point for the ledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ulule/limiter/v3"

	"ledger/internal/app"
	"ledger/internal/config"
	v1 "ledger/internal/infrastructure/http/v1"
	"ledger/internal/infrastructure/http/v1/middleware"
	"ledger/internal/infrastructure/storage/postgres"
	"ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting ledger server", "env", cfg.AppEnv)

	// --- Database ---
	if cfg.MigrationsAutoApply {
		if err := migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	// --- Services ---
	engine, err := app.New(postgres.NewTxManager(pool), app.Options{
		NumberingStrategy: cfg.NumeratorStrategy,
	})
	if err != nil {
		log.Fatalw("failed to assemble services", "error", err)
	}

	// --- Rate limiting ---
	var rateLimiter *limiter.Limiter
	if cfg.RateLimit != "" {
		rateLimiter, err = middleware.NewRateLimiter(cfg.RateLimit)
		if err != nil {
			log.Fatalw("invalid RATE_LIMIT", "value", cfg.RateLimit, "error", err)
		}
	}

	// --- Router ---
	router, err := v1.NewRouter(v1.RouterConfig{
		App:                engine,
		Pool:               pool,
		Logger:             log,
		RateLimiter:        rateLimiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		Debug:              !cfg.IsProduction(),
	})
	if err != nil {
		log.Fatalw("failed to build router", "error", err)
	}

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func migrate(ctx context.Context, dsn string) error {
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up(ctx)
}
