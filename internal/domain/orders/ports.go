package orders

import (
	"context"
	"time"

	"foodcoop/internal/core/id"
)

// PriceSnapshotStore exposes the currently effective catalog price of an article.
// Unknown articles yield an apperror NotFound.
type PriceSnapshotStore interface {
	CurrentPrice(ctx context.Context, articleID id.ID, at time.Time) (ArticlePrice, error)
}

// LedgerPoster posts a signed amount against a subgroup account.
type LedgerPoster interface {
	Post(ctx context.Context, posting Posting) error
}

// StockAdjuster records a quantity delta against a stock article.
type StockAdjuster interface {
	Adjust(ctx context.Context, orderID, stockArticleID id.ID, delta int) error
}

// SubgroupStatsUpdater refreshes a subgroup's order statistics.
type SubgroupStatsUpdater interface {
	Refresh(ctx context.Context, subgroupID id.ID) error
}

// NotificationDispatcher accepts events after a transition committed.
// It must not block, and delivery failures are its own concern.
type NotificationDispatcher interface {
	Enqueue(ctx context.Context, kind EventKind, orderID id.ID)
}

// ScheduleDefaults suggests an order window around a reference day.
type ScheduleDefaults interface {
	SuggestWindow(referenceDay time.Time) (starts, ends time.Time)
}

// TransitionAuditor stores an audit entry within the transition's transaction.
type TransitionAuditor interface {
	RecordTransition(ctx context.Context, out *Outcome) error
}

// TransitionObserver receives timing and outcome of every transition attempt.
type TransitionObserver interface {
	ObserveTransition(t Transition, outcome string, elapsed time.Duration)
}

type noopNotifier struct{}

func (noopNotifier) Enqueue(context.Context, EventKind, id.ID) {}
