package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"foodcoop/internal/core/apperror"
	appctx "foodcoop/internal/core/context"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/tx"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain"
	"foodcoop/pkg/logger"
)

var tracer = otel.Tracer("foodcoop/orders")

// ServiceConfig wires the Service to its collaborators.
// Notifier, Auditor and Observer are optional.
type ServiceConfig struct {
	Repo      Repository
	TxManager tx.Manager
	Prices    PriceSnapshotStore
	Ledger    LedgerPoster
	Stock     StockAdjuster
	Stats     SubgroupStatsUpdater
	Schedule  ScheduleDefaults
	Notifier  NotificationDispatcher
	Auditor   TransitionAuditor
	Observer  TransitionObserver
	Settings  Config
}

// Service is the only component that advances an order's state.
type Service struct {
	repo      Repository
	txManager tx.Manager
	prices    PriceSnapshotStore
	ledger    LedgerPoster
	stock     StockAdjuster
	stats     SubgroupStatsUpdater
	schedule  ScheduleDefaults
	notifier  NotificationDispatcher
	auditor   TransitionAuditor
	observer  TransitionObserver
	cfg       Config
}

// NewService creates a new order lifecycle service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		txManager: cfg.TxManager,
		prices:    cfg.Prices,
		ledger:    cfg.Ledger,
		stock:     cfg.Stock,
		stats:     cfg.Stats,
		schedule:  cfg.Schedule,
		notifier:  cfg.Notifier,
		auditor:   cfg.Auditor,
		observer:  cfg.Observer,
		cfg:       cfg.Settings.withDefaults(),
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	return s
}

// CreateInput describes a new order. Nil dates are filled from the schedule.
type CreateInput struct {
	Name       string
	SupplierID id.ID
	ArticleIDs []id.ID
	Starts     *time.Time
	Ends       *time.Time
	EndAction  EndAction
}

// Create opens a new order.
func (s *Service) Create(ctx context.Context, in CreateInput, actor string) (*Order, error) {
	now := s.cfg.Now()

	starts, ends := now, (*time.Time)(nil)
	if s.schedule != nil {
		suggestedStart, suggestedEnd := s.schedule.SuggestWindow(now)
		starts, ends = suggestedStart, &suggestedEnd
	}
	if in.Starts != nil {
		starts = *in.Starts
	}
	if in.Ends != nil {
		ends = in.Ends
	}

	o := NewOrder(in.Name, in.SupplierID, in.ArticleIDs, starts, ends, actor, now)
	if in.EndAction != "" {
		o.EndAction = in.EndAction
	}
	if o.EndAction != EndActionNone && o.EndAction != EndActionAutoClose {
		return nil, apperror.NewValidation("unknown end action").
			WithDetail("field", "endAction").
			WithDetail("endAction", string(o.EndAction))
	}
	if o.Name == "" {
		return nil, apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if err := o.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order created", "order_id", o.ID, "stock_order", o.IsStockOrder(), "articles", len(o.SelectedArticleIDs))
	return o, nil
}

// Get returns the order with lines and subgroup orders.
func (s *Service) Get(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// List returns orders page by page.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// UpdateSelection replaces the selected articles of an Opened order and
// reconciles its lines. Requests for removed articles block the change
// unless override is set.
func (s *Service) UpdateSelection(ctx context.Context, orderID id.ID, articleIDs []id.ID, override bool, actor string) (*Order, error) {
	selection := dedupe(articleIDs)
	if err := validateSelection(selection); err != nil {
		return nil, err
	}

	var updated *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.State != StateOpened {
			return apperror.NewInvalidTransition(orderID.String(), string(current.State), "edit")
		}

		o := current.Clone()
		o.SelectedArticleIDs = selection
		if err := reconcileLines(o, override); err != nil {
			return err
		}
		o.TouchBy(actor, s.cfg.Now())
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RequestInput is a subgroup's request for one article.
type RequestInput struct {
	SubgroupID id.ID
	ArticleID  id.ID
	Quantity   int
	Tolerance  int
}

// PlaceRequest sets a subgroup's quantity and tolerance for an article of an
// Opened order. A zero request withdraws it.
func (s *Service) PlaceRequest(ctx context.Context, orderID id.ID, in RequestInput, actor string) (*Order, error) {
	if in.Quantity < 0 || in.Tolerance < 0 {
		return nil, apperror.NewValidation("quantity and tolerance must not be negative").
			WithDetail("field", "quantity")
	}
	if id.IsNil(in.SubgroupID) {
		return nil, apperror.NewValidation("subgroup is required").WithDetail("field", "subgroupId")
	}

	var updated *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.State != StateOpened {
			return apperror.NewInvalidTransition(orderID.String(), string(current.State), "request")
		}
		if _, ok := current.Line(in.ArticleID); !ok {
			return apperror.NewValidation("article is not part of this order").
				WithDetail("field", "articleId").
				WithDetail("article_id", in.ArticleID.String())
		}

		now := s.cfg.Now().UTC()
		o := current.Clone()
		applyRequest(o, in, actor, now)
		o.TouchBy(actor, now)
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyRequest(o *Order, in RequestInput, actor string, now time.Time) {
	so, ok := o.SubgroupOrder(in.SubgroupID)
	if !ok {
		if in.Quantity == 0 && in.Tolerance == 0 {
			return
		}
		o.SubgroupOrders = append(o.SubgroupOrders, SubgroupOrder{
			ID:                 id.New(),
			SubgroupID:         in.SubgroupID,
			Price:              types.Zero(),
			PriceWithoutMarkup: types.Zero(),
		})
		so = &o.SubgroupOrders[len(o.SubgroupOrders)-1]
	}
	so.UpdatedBy = actor
	so.UpdatedAt = now

	for i := range so.Lines {
		l := &so.Lines[i]
		if l.ArticleID != in.ArticleID {
			continue
		}
		if in.Quantity == 0 && in.Tolerance == 0 {
			so.Lines = append(so.Lines[:i], so.Lines[i+1:]...)
			break
		}
		// Raising a request queues it behind earlier ones again.
		if in.Quantity+in.Tolerance > l.Quantity+l.Tolerance {
			l.RequestedAt = now
		}
		l.Quantity, l.Tolerance = in.Quantity, in.Tolerance
		return
	}
	if in.Quantity != 0 || in.Tolerance != 0 {
		so.Lines = append(so.Lines, SubgroupOrderLine{
			ID:          id.New(),
			ArticleID:   in.ArticleID,
			Quantity:    in.Quantity,
			Tolerance:   in.Tolerance,
			RequestedAt: now,
		})
		return
	}

	if len(so.Lines) == 0 {
		kept := o.SubgroupOrders[:0]
		for _, other := range o.SubgroupOrders {
			if other.SubgroupID != in.SubgroupID {
				kept = append(kept, other)
			}
		}
		o.SubgroupOrders = kept
	}
}

// CloseOption adjusts Close.
type CloseOption func(*closePlan)

// WithOverride discards requests for articles that left the selection
// instead of failing with OrderedArticlesWouldBeDropped.
func WithOverride() CloseOption {
	return func(p *closePlan) { p.override = true }
}

// Close moves an Opened order to Closed: it freezes prices, allocates results
// and values every subgroup order.
func (s *Service) Close(ctx context.Context, orderID id.ID, actor string, opts ...CloseOption) (*Order, error) {
	return s.transition(ctx, orderID, TransitionClose, actor, func(ctx context.Context, o *Order, now time.Time) (*Outcome, error) {
		p := closePlan{
			actor:  actor,
			now:    now,
			markup: s.cfg.Markup,
			policy: s.cfg.Policy,
			prices: func(ctx context.Context, articleID id.ID) (ArticlePrice, error) {
				return s.prices.CurrentPrice(ctx, articleID, now)
			},
		}
		for _, opt := range opts {
			opt(&p)
		}
		return planClose(ctx, o, p)
	})
}

// Finish moves a Closed order to Finished: it debits subgroup accounts,
// decrements stock for stock orders and stores the profit if invoiced.
func (s *Service) Finish(ctx context.Context, orderID id.ID, actor string) (*Order, error) {
	return s.transition(ctx, orderID, TransitionFinish, actor, func(ctx context.Context, o *Order, now time.Time) (*Outcome, error) {
		if o.State != StateClosed {
			return planFinish(o, nil, actor, now)
		}
		invoice, err := s.repo.GetInvoice(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("get invoice: %w", err)
		}
		return planFinish(o, invoice, actor, now)
	})
}

// FinishDirect moves a Closed order to Finished without delivery
// reconciliation or profit, and notes that in the comment log.
func (s *Service) FinishDirect(ctx context.Context, orderID id.ID, actor string) (*Order, error) {
	return s.transition(ctx, orderID, TransitionFinishDirect, actor, func(_ context.Context, o *Order, now time.Time) (*Outcome, error) {
		return planFinishDirect(o, actor, now)
	})
}

type planFunc func(ctx context.Context, current *Order, now time.Time) (*Outcome, error)

// transition runs plan and applies its outcome inside one transaction.
// The order row is locked first, so concurrent transitions of the same order
// run one after another and the later one sees the advanced state.
func (s *Service) transition(ctx context.Context, orderID id.ID, t Transition, actor string, plan planFunc) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders."+string(t))
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order.transition", string(t)),
	)
	started := time.Now()

	var out *Outcome
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		out, err = plan(ctx, current, s.cfg.Now())
		if err != nil {
			return err
		}
		return s.apply(ctx, out)
	})

	s.observe(t, err, time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(ctx, "order transition failed", "order_id", orderID, "transition", t, "actor", actor, "error", err)
		return nil, err
	}

	logger.Info(ctx, "order transition applied",
		"order_id", orderID,
		"transition", t,
		"actor", actor,
		"from", out.From,
		"to", out.To,
		"postings", len(out.Postings),
		"stock_changes", len(out.StockChanges),
	)

	if out.Event != "" {
		s.notifier.Enqueue(context.WithoutCancel(ctx), out.Event, orderID)
	}
	return out.Order, nil
}

// apply performs the side effects of out. The order row, carrying the new
// state, is written last.
func (s *Service) apply(ctx context.Context, out *Outcome) error {
	for _, p := range out.Postings {
		if err := s.ledger.Post(ctx, p); err != nil {
			if apperror.HasCode(err, apperror.CodeLedgerPostingFailed) {
				return err
			}
			return apperror.NewLedgerPostingFailed(p.SubgroupID.String(), err)
		}
	}

	for _, c := range out.StockChanges {
		if err := s.stock.Adjust(ctx, out.Order.ID, c.StockArticleID, c.Delta); err != nil {
			if apperror.HasCode(err, apperror.CodeStockAdjustmentFailed) {
				return err
			}
			return apperror.NewStockAdjustmentFailed(c.StockArticleID.String(), err)
		}
	}

	for _, text := range out.Comments {
		c := &Comment{
			ID:        id.New(),
			OrderID:   out.Order.ID,
			UserID:    out.Actor,
			Text:      text,
			CreatedAt: out.At.UTC(),
		}
		if err := s.repo.AddComment(ctx, c); err != nil {
			return fmt.Errorf("add comment: %w", err)
		}
	}

	if err := s.repo.Update(ctx, out.Order); err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	// Statistics read the stored state, so they follow the order update.
	if s.stats != nil {
		for _, subgroupID := range out.RefreshStats {
			if err := s.stats.Refresh(ctx, subgroupID); err != nil {
				return fmt.Errorf("refresh stats of subgroup %s: %w", subgroupID, err)
			}
		}
	}

	if s.auditor != nil {
		if err := s.auditor.RecordTransition(ctx, out); err != nil {
			return fmt.Errorf("audit transition: %w", err)
		}
	}
	return nil
}

func (s *Service) observe(t Transition, err error, elapsed time.Duration) {
	if s.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if appErr, ok := apperror.AsAppError(err); ok {
			outcome = appErr.Code
		}
	}
	s.observer.ObserveTransition(t, outcome, elapsed)
}

// AttachInvoice creates or replaces the invoice of a Closed or Finished order.
// The stored foodcoopResult is a snapshot taken at Finish and is not updated
// here; Profit always computes from the current invoice.
func (s *Service) AttachInvoice(ctx context.Context, orderID id.ID, netAmount types.Money, actor string) (*Invoice, error) {
	if netAmount.IsNegative() {
		return nil, apperror.NewValidation("invoice amount must not be negative").WithDetail("field", "netAmount")
	}

	var invoice *Invoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.State == StateOpened {
			return apperror.NewInvalidTransition(orderID.String(), string(o.State), "invoice")
		}

		existing, err := s.repo.GetInvoice(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		invoice = &Invoice{
			ID:        id.New(),
			OrderID:   orderID,
			NetAmount: netAmount,
			CreatedBy: actor,
			CreatedAt: s.cfg.Now().UTC(),
		}
		if existing != nil {
			invoice.ID = existing.ID
		}
		return s.repo.SaveInvoice(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice attached", "order_id", orderID, "net_amount", netAmount.String())
	return invoice, nil
}

// Sum aggregates the order by kind at its frozen prices.
func (s *Service) Sum(ctx context.Context, orderID id.ID, kind SumKind) (types.Money, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return types.Zero(), err
	}
	return Sum(o, kind)
}

// Profit returns charged minus invoiced, or PROFIT_UNAVAILABLE without invoice.
func (s *Service) Profit(ctx context.Context, orderID id.ID, excludeMarkup bool) (types.Money, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return types.Zero(), err
	}
	invoice, err := s.repo.GetInvoice(ctx, orderID)
	if err != nil {
		return types.Zero(), fmt.Errorf("get invoice: %w", err)
	}
	return Profit(o, invoice, excludeMarkup)
}

// Comments returns the comment log of an order, oldest first.
func (s *Service) Comments(ctx context.Context, orderID id.ID) ([]Comment, error) {
	if _, err := s.repo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, orderID)
}

// CloseDue closes every auto-close order whose window has ended, each in its
// own transaction, as the system user. Failures are logged and skipped.
func (s *Service) CloseDue(ctx context.Context) (int, error) {
	ids, err := s.repo.ListDueForAutoClose(ctx, s.cfg.Now())
	if err != nil {
		return 0, fmt.Errorf("list due orders: %w", err)
	}

	ctx = appctx.WithSystemUser(ctx)
	closed := 0
	for _, orderID := range ids {
		if _, err := s.Close(ctx, orderID, appctx.SystemUserID); err != nil {
			if errors.Is(err, context.Canceled) {
				return closed, err
			}
			logger.Error(ctx, "auto-close failed", "order_id", orderID, "error", err)
			continue
		}
		closed++
	}
	return closed, nil
}
