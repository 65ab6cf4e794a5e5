// Package main is the entry point for the foodcoop background worker.
// It relays the notification outbox to Kafka, auto-closes due orders and
// expires idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"foodcoop/internal/app"
	"foodcoop/internal/config"
	"foodcoop/internal/infrastructure/notify"
	"foodcoop/internal/infrastructure/observability"
	"foodcoop/internal/infrastructure/storage/postgres"
	"foodcoop/internal/jobs"
	"foodcoop/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Storage != config.StoragePostgres {
		log.Fatalw("worker requires postgres storage", "storage", cfg.Storage)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting foodcoop worker")

	shutdownTracing, err := observability.InitTracing(ctx, "foodcoop-worker", cfg.TracingStdout)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to build application", "error", err)
	}

	autoClose := jobs.NewAutoCloseJob(a.Orders, cfg.Jobs.AutoCloseSpec, log)
	if err := autoClose.Start(); err != nil {
		log.Fatalw("failed to start auto-close job", "error", err)
	}

	w := &Worker{
		txManager:   a.TxManager,
		idempotency: a.Idempotency,
		cfg:         cfg,
		log:         log,
	}
	if cfg.Kafka.Brokers != "" {
		w.producer = notify.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders, log)
	} else {
		log.Warn("KAFKA_BROKERS not set, outbox relay disabled")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx, a)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	autoClose.Stop()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if w.producer != nil {
		if err := w.producer.Close(); err != nil {
			log.Warnw("failed to close kafka producer", "error", err)
		}
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Errorw("failed to close application", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnw("failed to flush traces", "error", err)
	}
	log.Info("worker stopped")
}

// Worker runs the outbox relay and periodic cleanup until ctx is canceled.
type Worker struct {
	txManager   *postgres.TxManager
	idempotency *postgres.IdempotencyStore
	producer    *notify.Producer
	cfg         *config.Config
	log         *logger.Logger
}

func (w *Worker) Run(ctx context.Context, a *app.App) {
	var wg sync.WaitGroup

	if w.producer != nil {
		relay := postgres.NewOutboxRelay(w.txManager, w.producer, postgres.RelayConfig{
			Interval:   w.cfg.Outbox.RelayInterval,
			BatchSize:  w.cfg.Outbox.RelayBatch,
			Registerer: a.Registry,
		}, w.log)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				w.log.Errorw("outbox relay stopped", "error", err)
			}
		}()
	}

	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-cleanupTicker.C:
			w.cleanupIdempotency(ctx)
		}
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	removed, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Warnw("idempotency cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}
}
