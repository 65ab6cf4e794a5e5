// Package app wires the order service onto the configured storage backend.
// cmd/server and cmd/worker share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"foodcoop/internal/config"
	"foodcoop/internal/domain/allocation"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/domain/registers/ledger"
	"foodcoop/internal/domain/registers/stock"
	"foodcoop/internal/domain/schedule"
	"foodcoop/internal/domain/subgroups"
	"foodcoop/internal/infrastructure/http/v1/handlers"
	"foodcoop/internal/infrastructure/metrics"
	"foodcoop/internal/infrastructure/notify"
	"foodcoop/internal/infrastructure/storage/memory"
	"foodcoop/internal/infrastructure/storage/postgres"
	"foodcoop/internal/infrastructure/storage/postgres/order_repo"
	"foodcoop/internal/infrastructure/storage/postgres/register_repo"
	"foodcoop/pkg/logger"
)

// App holds the assembled components. Postgres-only fields are nil in memory mode.
type App struct {
	Orders     *orders.Service
	Registry   *prometheus.Registry
	Dispatcher *notify.Dispatcher

	Pool        *postgres.Pool
	TxManager   *postgres.TxManager
	Idempotency *postgres.IdempotencyStore
	Memory      *memory.Store

	log *logger.Logger
}

// Build assembles the service for cfg.Storage.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	policy, err := allocation.PolicyFromConfig(cfg.Orders.AllocationPolicy)
	if err != nil {
		return nil, err
	}
	sched, err := schedule.NewDefaults(schedule.Config{
		Opening: cfg.Orders.ScheduleOpening,
		Closing: cfg.Orders.ScheduleClosing,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule defaults: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{Registry: reg, log: log}
	svcCfg := orders.ServiceConfig{
		Schedule: sched,
		Observer: metrics.NewTransitionMetrics(reg),
		Settings: orders.Config{
			Markup: cfg.Orders.Markup,
			Policy: policy,
		},
	}

	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.New()
		a.Memory = store
		a.Dispatcher = notify.NewDispatcher(notify.NewLogSink(log), notify.DispatcherConfig{}, log)

		svcCfg.Repo = store
		svcCfg.TxManager = store
		svcCfg.Prices = store
		svcCfg.Ledger = ledger.NewService(store)
		svcCfg.Stock = stock.NewService(store)
		svcCfg.Stats = subgroups.NewService(store)
		svcCfg.Auditor = store

	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		a.TxManager = postgres.NewTxManager(pool)

		auditor, err := postgres.NewAuditService(a.TxManager)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("audit service: %w", err)
		}
		sink := notify.NewOutboxSink(postgres.NewOutboxWriter(a.TxManager))
		a.Dispatcher = notify.NewDispatcher(sink, notify.DispatcherConfig{}, log)
		a.Idempotency = postgres.NewIdempotencyStore(a.TxManager, cfg.HTTP.IdempotencyTTL)

		svcCfg.Repo = order_repo.NewOrderRepo(a.TxManager)
		svcCfg.TxManager = a.TxManager
		svcCfg.Prices = order_repo.NewPriceRepo(a.TxManager)
		svcCfg.Ledger = ledger.NewService(register_repo.NewLedgerRepo(a.TxManager))
		svcCfg.Stock = stock.NewService(register_repo.NewStockRepo(a.TxManager))
		svcCfg.Stats = subgroups.NewService(register_repo.NewStatsRepo(a.TxManager))
		svcCfg.Auditor = auditor

	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}

	svcCfg.Notifier = a.Dispatcher
	a.Orders = orders.NewService(svcCfg)

	log.Infow("order service ready",
		"storage", cfg.Storage,
		"markup", cfg.Orders.Markup.String(),
		"allocation", cfg.Orders.AllocationPolicy,
	)
	return a, nil
}

// HealthChecks returns the readiness probes for the configured backend.
func (a *App) HealthChecks() map[string]handlers.Pinger {
	if a.Pool == nil {
		return nil
	}
	return map[string]handlers.Pinger{"database": a.Pool}
}

// Close drains pending notifications, then releases the pool.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if a.Dispatcher != nil {
		if err := a.Dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}
