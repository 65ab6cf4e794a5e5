package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"

	"foodcoop/internal/core/id"
	"foodcoop/pkg/logger"
)

const outboxTable = "outbox"

// DefaultMaxOutboxAttempts is how often a message is retried before it is parked as failed.
const DefaultMaxOutboxAttempts = 10

// DomainEvent is an event to be delivered through the outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// OutboxWriter appends events to the outbox table. Inside a transaction the
// row commits with it; outside, it is written on its own.
type OutboxWriter struct {
	txManager *TxManager
}

// NewOutboxWriter creates a new outbox writer.
func NewOutboxWriter(txManager *TxManager) *OutboxWriter {
	return &OutboxWriter{txManager: txManager}
}

// Write stores one event as pending.
func (w *OutboxWriter) Write(ctx context.Context, event DomainEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = w.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at, available_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// Publisher delivers a relayed message, keyed by aggregate id.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// RelayConfig configures the outbox relay.
type RelayConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	// Registerer receives the relay metrics. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

type relayMetrics struct {
	total  *prometheus.CounterVec
	errors prometheus.Counter
	lag    prometheus.Gauge
}

func newRelayMetrics(reg prometheus.Registerer) *relayMetrics {
	m := &relayMetrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodcoop_outbox_events_total", Help: "published outbox events",
		}, []string{"event"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodcoop_outbox_publish_errors_total", Help: "outbox publish errors",
		}),
		lag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "foodcoop_outbox_oldest_age_seconds", Help: "oldest unpublished event age",
		}),
	}
	reg.MustRegister(m.total, m.errors, m.lag)
	return m
}

// OutboxRelay publishes pending outbox rows. Several relays may run at once;
// rows are claimed with FOR UPDATE SKIP LOCKED.
type OutboxRelay struct {
	txManager *TxManager
	pub       Publisher
	cfg       RelayConfig
	log       *logger.Logger
	metrics   *relayMetrics
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, pub Publisher, cfg RelayConfig, log *logger.Logger) *OutboxRelay {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxOutboxAttempts
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	return &OutboxRelay{
		txManager: txManager,
		pub:       pub,
		cfg:       cfg,
		log:       log.WithComponent("outbox-relay"),
		metrics:   newRelayMetrics(cfg.Registerer),
	}
}

// Run drains the outbox every interval until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil {
				r.log.Errorw("outbox drain failed", "error", err)
			}
		}
	}
}

type pickedMessage struct {
	id        id.ID
	key       string
	eventType string
	value     []byte
}

// Drain publishes one batch and returns how many messages were delivered.
// Failed messages are rescheduled with exponential backoff capped at a minute.
func (r *OutboxRelay) Drain(ctx context.Context) (int, error) {
	pool := r.txManager.Pool()

	var oldest time.Time
	if err := pool.QueryRow(ctx,
		`SELECT COALESCE(MIN(created_at), now()) FROM outbox WHERE published_at IS NULL AND status = 'pending'`,
	).Scan(&oldest); err == nil {
		r.metrics.lag.Set(time.Since(oldest).Seconds())
	}

	published := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		tx := r.txManager.GetTx(ctx)

		batch, err := r.claim(ctx, tx)
		if err != nil {
			return err
		}

		for _, m := range batch {
			if pubErr := r.pub.Publish(ctx, m.key, m.value); pubErr != nil {
				r.metrics.errors.Inc()
				r.log.Warnw("outbox publish failed", "message_id", m.id, "event", m.eventType, "error", pubErr)
				if _, err := tx.Exec(ctx, `
					UPDATE outbox
					SET fail_count = fail_count + 1,
					    last_error = $2,
					    available_at = now() + make_interval(secs => LEAST(60, POW(2, fail_count))),
					    status = CASE WHEN fail_count + 1 >= $3 THEN 'failed' ELSE status END
					WHERE id = $1`, m.id, pubErr.Error(), r.cfg.MaxAttempts); err != nil {
					return fmt.Errorf("reschedule outbox message: %w", err)
				}
				continue
			}

			r.metrics.total.WithLabelValues(m.eventType).Inc()
			if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = now(), status = 'published' WHERE id = $1`, m.id); err != nil {
				return fmt.Errorf("mark outbox message published: %w", err)
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}

func (r *OutboxRelay) claim(ctx context.Context, tx pgx.Tx) ([]pickedMessage, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, aggregate_type, aggregate_id, payload, created_at
		FROM outbox
		WHERE status = 'pending' AND available_at <= now()
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, r.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	var batch []pickedMessage
	for rows.Next() {
		var (
			msgID     id.ID
			eventType string
			aggType   string
			aggID     id.ID
			payload   []byte
			createdAt time.Time
		)
		if err := rows.Scan(&msgID, &eventType, &aggType, &aggID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		envelope, err := json.Marshal(map[string]any{
			"id":             msgID.String(),
			"type":           eventType,
			"aggregate_type": aggType,
			"aggregate_id":   aggID.String(),
			"payload":        json.RawMessage(payload),
			"created_at":     createdAt,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal envelope: %w", err)
		}
		batch = append(batch, pickedMessage{id: msgID, key: aggID.String(), eventType: eventType, value: envelope})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return batch, nil
}
