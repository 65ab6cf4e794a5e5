// Package main is the entry point for the foodcoop order API server.
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

	"foodcoop/internal/app"
	"foodcoop/internal/config"
	v1 "foodcoop/internal/infrastructure/http/v1"
	"foodcoop/internal/infrastructure/http/v1/middleware"
	"foodcoop/internal/infrastructure/metrics"
	"foodcoop/internal/infrastructure/observability"
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

	ctx := context.Background()
	log.Infow("starting foodcoop server", "storage", cfg.Storage, "env", cfg.Env)

	shutdownTracing, err := observability.InitTracing(ctx, "foodcoop-server", cfg.TracingStdout)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to build application", "error", err)
	}

	// Memory mode has no separate worker process, so auto-close runs here.
	var autoClose *jobs.AutoCloseJob
	if cfg.Storage == config.StorageMemory {
		autoClose = jobs.NewAutoCloseJob(a.Orders, cfg.Jobs.AutoCloseSpec, log)
		if err := autoClose.Start(); err != nil {
			log.Fatalw("failed to start auto-close job", "error", err)
		}
	}

	routerCfg := v1.RouterConfig{
		Orders:         a.Orders,
		Logger:         log,
		HealthChecks:   a.HealthChecks(),
		Metrics:        metrics.NewHTTPMetrics(a.Registry),
		MetricsHandler: metrics.Handler(a.Registry),
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
	}
	if cfg.HTTP.IdempotencyEnabled && a.Idempotency != nil {
		routerCfg.Idempotency = middleware.IdempotencyStore(a.Idempotency)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           v1.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if autoClose != nil {
		autoClose.Stop()
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Errorw("failed to close application", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnw("failed to flush traces", "error", err)
	}

	log.Info("server stopped")
}
