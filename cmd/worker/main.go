// Package main is the entry point for the ledger background worker.
// It relays the transactional outbox and sweeps expired idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ledger/internal/config"
	"ledger/internal/infrastructure/storage/postgres"
	"ledger/pkg/logger"
)

const cleanupInterval = time.Hour

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

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting ledger worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	worker := NewWorker(pool, cfg, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic jobs.
type Worker struct {
	pool        *postgres.Pool
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	interval    time.Duration
	log         *logger.Logger
}

// NewWorker creates a worker over pool.
func NewWorker(pool *postgres.Pool, cfg *config.Config, log *logger.Logger) *Worker {
	log = log.WithComponent("worker")
	return &Worker{
		pool:        pool,
		relay:       postgres.NewOutboxRelay(pool.Unwrap(), cfg.WorkerBatchSize, &EventLogger{log: log}),
		idempotency: postgres.NewIdempotencyStore(postgres.NewTxManager(pool), cfg.IdempotencyTTL),
		interval:    cfg.WorkerInterval,
		log:         log,
	}
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.relayOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) relayOutbox(ctx context.Context) {
	// drain: a full batch means more may be waiting
	for {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Errorw("outbox batch failed", "error", err)
			}
			return
		}
		if n > 0 {
			w.log.Debugw("processed outbox batch", "count", n)
		}
		if n == 0 || ctx.Err() != nil {
			return
		}
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	postgres.LogPoolStats(ctx, w.pool.Unwrap())

	moved, err := w.relay.MoveToDLQ(ctx)
	if err != nil {
		w.log.Errorw("failed to move dead letters", "error", err)
	} else if moved > 0 {
		w.log.Warnw("outbox messages moved to dead letter queue", "count", moved)
	}

	removed, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
	} else if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}
}

// EventLogger delivers ledger events to the log. A broker publisher would
// implement the same interface.
type EventLogger struct {
	log *logger.Logger
}

var _ postgres.OutboxHandler = (*EventLogger)(nil)

// Handle logs one outbox message.
func (h *EventLogger) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	h.log.Infow("ledger event",
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"message_id", msg.ID,
		"payload", string(msg.Payload),
	)
	return nil
}
