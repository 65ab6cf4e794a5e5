package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "foodcoop/internal/core/context"
	"foodcoop/internal/core/id"
	"foodcoop/internal/domain/orders"
	"foodcoop/pkg/logger"
)

type recordingSink struct {
	mu          sync.Mutex
	delivered   []Notification
	DeliverFunc func(ctx context.Context, n Notification) error
}

func (s *recordingSink) Deliver(ctx context.Context, n Notification) error {
	if s.DeliverFunc != nil {
		if err := s.DeliverFunc(ctx, n); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *recordingSink) all() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.delivered...)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherConfig{}, logger.Nop())

	first, second := id.New(), id.New()
	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{RequestID: "req-1"})
	d.Enqueue(ctx, orders.EventClosed, first)
	d.Enqueue(ctx, orders.EventFinished, second)
	require.NoError(t, d.Close(context.Background()))

	got := sink.all()
	require.Len(t, got, 2)
	assert.Equal(t, orders.EventClosed, got[0].Kind)
	assert.Equal(t, first, got[0].OrderID)
	assert.Equal(t, "req-1", got[0].RequestID)
	assert.Equal(t, orders.EventFinished, got[1].Kind)
	assert.Equal(t, second, got[1].OrderID)
}

func TestDispatcher_EnqueueSurvivesCanceledContext(t *testing.T) {
	sink := &recordingSink{
		DeliverFunc: func(ctx context.Context, _ Notification) error {
			return ctx.Err()
		},
	}
	d := NewDispatcher(sink, DispatcherConfig{}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Enqueue(ctx, orders.EventClosed, id.New())
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, sink.all(), 1)
}

func TestDispatcher_SinkFailureIsSwallowed(t *testing.T) {
	calls := 0
	sink := SinkFunc(func(context.Context, Notification) error {
		calls++
		return errors.New("outbox unavailable")
	})
	d := NewDispatcher(sink, DispatcherConfig{}, logger.Nop())

	d.Enqueue(context.Background(), orders.EventClosed, id.New())
	d.Enqueue(context.Background(), orders.EventFinished, id.New())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 2, calls)
}

func TestDispatcher_FullBufferDropsWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	sink := &recordingSink{
		DeliverFunc: func(context.Context, Notification) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return nil
		},
	}
	d := NewDispatcher(sink, DispatcherConfig{BufferSize: 1}, logger.Nop())

	d.Enqueue(context.Background(), orders.EventClosed, id.New())
	<-started // worker holds the first notification

	done := make(chan struct{})
	go func() {
		d.Enqueue(context.Background(), orders.EventClosed, id.New()) // buffered
		d.Enqueue(context.Background(), orders.EventClosed, id.New()) // dropped
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full buffer")
	}

	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sink.all(), 2)
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherConfig{}, logger.Nop())
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() {
		d.Enqueue(context.Background(), orders.EventClosed, id.New())
	})
	assert.Empty(t, sink.all())
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, SplitBrokers(" kafka-1:9092, ,kafka-2:9092 "))
	assert.Empty(t, SplitBrokers(""))
}
