// Package notify delivers order notifications after a transition committed.
package notify

import (
	"context"
	"sync"
	"time"

	appctx "foodcoop/internal/core/context"
	"foodcoop/internal/core/id"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/infrastructure/storage/postgres"
	"foodcoop/pkg/logger"
)

const (
	defaultBufferSize      = 256
	defaultDeliveryTimeout = 5 * time.Second
)

// Notification is the payload handed to a Sink.
type Notification struct {
	Kind      orders.EventKind `json:"kind"`
	OrderID   id.ID            `json:"orderId"`
	At        time.Time        `json:"at"`
	RequestID string           `json:"requestId,omitempty"`
}

// Sink stores or forwards one notification.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// DispatcherConfig configures the asynchronous dispatcher.
type DispatcherConfig struct {
	BufferSize      int
	DeliveryTimeout time.Duration
}

type envelope struct {
	ctx context.Context
	n   Notification
}

// Dispatcher implements orders.NotificationDispatcher. Enqueue never blocks:
// when the buffer is full the notification is dropped with a warning.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan envelope
	done   chan struct{}
}

// NewDispatcher creates a dispatcher and starts its delivery goroutine.
func NewDispatcher(sink Sink, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	d := &Dispatcher{
		sink:    sink,
		timeout: cfg.DeliveryTimeout,
		log:     log.WithComponent("notify"),
		now:     time.Now,
		queue:   make(chan envelope, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue implements orders.NotificationDispatcher.
func (d *Dispatcher) Enqueue(ctx context.Context, kind orders.EventKind, orderID id.ID) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.WithContext(ctx).Warnw("notification dropped: dispatcher closed",
			"event", kind, "order_id", orderID)
		return
	}

	n := Notification{
		Kind:      kind,
		OrderID:   orderID,
		At:        d.now().UTC(),
		RequestID: appctx.GetRequestID(ctx),
	}
	select {
	case d.queue <- envelope{ctx: context.WithoutCancel(ctx), n: n}:
	default:
		d.log.WithContext(ctx).Warnw("notification dropped: buffer full",
			"event", kind, "order_id", orderID)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		ctx, cancel := context.WithTimeout(e.ctx, d.timeout)
		if err := d.sink.Deliver(ctx, e.n); err != nil {
			d.log.WithContext(ctx).Warnw("notification delivery failed",
				"event", e.n.Kind,
				"order_id", e.n.OrderID,
				"error", err,
			)
		}
		cancel()
	}
}

// Close stops accepting notifications and waits until the buffer drained
// or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OutboxSink writes notifications to the transactional outbox.
type OutboxSink struct {
	writer *postgres.OutboxWriter
}

// NewOutboxSink creates a sink over the outbox table.
func NewOutboxSink(writer *postgres.OutboxWriter) *OutboxSink {
	return &OutboxSink{writer: writer}
}

// Deliver implements Sink.
func (s *OutboxSink) Deliver(ctx context.Context, n Notification) error {
	return s.writer.Write(ctx, postgres.DomainEvent{
		AggregateType: "order",
		AggregateID:   n.OrderID,
		EventType:     string(n.Kind),
		Payload:       n,
	})
}

// LogSink only logs notifications. Used when no outbox is available.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a logging sink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	s.log.WithContext(ctx).Infow("order notification",
		"event", n.Kind,
		"order_id", n.OrderID,
	)
	return nil
}
