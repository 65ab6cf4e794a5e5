package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/allocation"
)

// EventKind names a notification emitted after a transition commits.
type EventKind string

const (
	EventClosed   EventKind = "order.closed"
	EventFinished EventKind = "order.finished"
)

// finishedDirectlyComment is appended to the comment log by FinishDirect.
const finishedDirectlyComment = "Order was finished directly, without a delivery reconciliation or invoice-based result."

// Posting is a ledger entry a transition asks for.
type Posting struct {
	OrderID    id.ID
	SubgroupID id.ID
	Amount     types.Money
	Note       string
	Actor      string
}

// StockDelta is a stock change a transition asks for.
type StockDelta struct {
	StockArticleID id.ID
	Delta          int
}

// Outcome is the result of planning a transition: the order as it must be
// stored and every side effect that must commit with it.
type Outcome struct {
	Transition Transition
	From, To   State
	Actor      string
	At         time.Time

	Order        *Order
	Postings     []Posting
	StockChanges []StockDelta
	Comments     []string
	RefreshStats []id.ID
	Event        EventKind
}

// PriceLookup resolves the current catalog price of an article.
type PriceLookup func(ctx context.Context, articleID id.ID) (ArticlePrice, error)

// closePlan holds the inputs of Close besides the order itself.
type closePlan struct {
	actor    string
	now      time.Time
	markup   decimal.Decimal
	policy   allocation.Policy
	override bool
	prices   PriceLookup
}

func newOutcome(o *Order, t Transition, actor string, now time.Time) (*Outcome, error) {
	if !o.State.CanApply(t) {
		return nil, apperror.NewInvalidTransition(o.ID.String(), string(o.State), string(t))
	}
	return &Outcome{
		Transition: t,
		From:       o.State,
		To:         t.Target(),
		Actor:      actor,
		At:         now,
		Order:      o.Clone(),
	}, nil
}

// planClose computes everything Close changes. It does not touch storage.
func planClose(ctx context.Context, current *Order, p closePlan) (*Outcome, error) {
	out, err := newOutcome(current, TransitionClose, p.actor, p.now)
	if err != nil {
		return nil, err
	}
	o := out.Order

	if err := reconcileLines(o, p.override); err != nil {
		return nil, err
	}
	if err := validateSelection(o.SelectedArticleIDs); err != nil {
		return nil, err
	}
	ends := p.now.UTC()
	if err := validateWindow(o.Starts, &ends); err != nil {
		return nil, err
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		if line.Price != nil {
			return nil, apperror.NewSettlement("order line price is already frozen").
				WithDetail("article_id", line.ArticleID.String())
		}
		quantity, tolerance := o.requestTotals(line.ArticleID)
		if quantity == 0 && tolerance == 0 {
			continue
		}
		price, err := p.prices(ctx, line.ArticleID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewSettlement("no current price for ordered article").
					WithDetail("article_id", line.ArticleID.String()).
					WithCause(err)
			}
			return nil, fmt.Errorf("resolve price of %s: %w", line.ArticleID, err)
		}
		snapshot, err := NewPriceSnapshot(price, p.markup, p.now)
		if err != nil {
			return nil, err
		}
		line.Price = snapshot
		// Stock is handed out by the piece, whatever the supplier package size.
		packageSize := snapshot.UnitQuantity()
		if o.IsStockOrder() {
			packageSize = 1
		}
		line.UnitsOrdered = allocation.PackagesToOrder(quantity, tolerance, packageSize)
		line.UnitsToOrder = line.UnitsOrdered * packageSize
	}

	if err := allocateResults(ctx, o, p.policy); err != nil {
		return nil, err
	}

	prices := o.frozenPrices()
	for i := range o.SubgroupOrders {
		so := &o.SubgroupOrders[i]
		so.Price, so.PriceWithoutMarkup = settledPrices(prices, *so)
		so.UpdatedBy = p.actor
		so.UpdatedAt = p.now.UTC()
		out.RefreshStats = append(out.RefreshStats, so.SubgroupID)
	}

	o.Ends = &ends
	o.TouchBy(p.actor, p.now)
	o.State = out.To
	out.Event = EventClosed
	return out, nil
}

// allocateResults runs the allocator for every order line. Lines are independent,
// so they are computed concurrently and written back by index.
func allocateResults(ctx context.Context, o *Order, policy allocation.Policy) error {
	type ref struct{ so, line int }
	refs := make(map[id.ID][]ref, len(o.Lines))
	for i, so := range o.SubgroupOrders {
		for j, l := range so.Lines {
			refs[l.ArticleID] = append(refs[l.ArticleID], ref{so: i, line: j})
		}
	}

	results := make([][]int, len(o.Lines))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, line := range o.Lines {
		owners := refs[line.ArticleID]
		if len(owners) == 0 {
			continue
		}
		requests := make([]allocation.Request, len(owners))
		for k, r := range owners {
			l := o.SubgroupOrders[r.so].Lines[r.line]
			requests[k] = allocation.Request{
				SubgroupID:  o.SubgroupOrders[r.so].SubgroupID,
				Quantity:    l.Quantity,
				Tolerance:   l.Tolerance,
				RequestedAt: l.RequestedAt,
			}
		}
		total := line.UnitsToOrder
		g.Go(func() error {
			res, err := allocation.Allocate(total, requests, policy)
			if err != nil {
				return apperror.NewSettlement("allocation failed").
					WithDetail("article_id", line.ArticleID.String()).
					WithCause(err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, line := range o.Lines {
		for k, r := range refs[line.ArticleID] {
			result := 0
			if results[i] != nil {
				result = results[i][k]
			}
			l := &o.SubgroupOrders[r.so].Lines[r.line]
			l.Result = &result
			if line.Price != nil {
				unit := line.Price.FoodcoopPrice()
				l.UnitPrice = &unit
			}
		}
	}
	return nil
}

// planFinish debits every subgroup, reconciles stock for stock orders and
// stores the profit when an invoice exists.
func planFinish(current *Order, invoice *Invoice, actor string, now time.Time) (*Outcome, error) {
	out, err := newOutcome(current, TransitionFinish, actor, now)
	if err != nil {
		return nil, err
	}
	o := out.Order

	if err := debitSubgroups(out); err != nil {
		return nil, err
	}

	if o.IsStockOrder() {
		settled := make(map[id.ID]int, len(o.Lines))
		for _, so := range o.SubgroupOrders {
			for _, l := range so.Lines {
				if l.Result != nil {
					settled[l.ArticleID] += *l.Result
				}
			}
		}
		for i := range o.Lines {
			line := &o.Lines[i]
			line.UnitsToOrder = settled[line.ArticleID]
			if line.UnitsToOrder != 0 {
				out.StockChanges = append(out.StockChanges, StockDelta{
					StockArticleID: line.ArticleID,
					Delta:          -line.UnitsToOrder,
				})
			}
		}
	}

	if invoice != nil {
		profit, err := Profit(o, invoice, false)
		if err != nil {
			return nil, err
		}
		o.FoodcoopResult = &profit
	}

	o.TouchBy(actor, now)
	o.State = out.To
	out.Event = EventFinished
	return out, nil
}

// planFinishDirect debits subgroups like Finish but leaves stock and profit alone.
func planFinishDirect(current *Order, actor string, now time.Time) (*Outcome, error) {
	out, err := newOutcome(current, TransitionFinishDirect, actor, now)
	if err != nil {
		return nil, err
	}

	if err := debitSubgroups(out); err != nil {
		return nil, err
	}

	out.Comments = append(out.Comments, finishedDirectlyComment)
	out.Order.TouchBy(actor, now)
	out.Order.State = out.To
	out.Event = EventFinished
	return out, nil
}

// debitSubgroups recomputes each subgroup price from the frozen snapshots and
// plans a negative posting for it. The result must equal the price stored at Close.
func debitSubgroups(out *Outcome) error {
	o := out.Order
	prices := o.frozenPrices()
	note := ledgerNote(o)

	for _, so := range o.SubgroupOrders {
		price, withoutMarkup := settledPrices(prices, so)
		if !price.Equal(so.Price) || !withoutMarkup.Equal(so.PriceWithoutMarkup) {
			return apperror.NewSettlement("subgroup price differs from the price settled at close").
				WithDetail("subgroup_id", so.SubgroupID.String()).
				WithDetail("stored", so.Price.String()).
				WithDetail("recomputed", price.String())
		}
		out.Postings = append(out.Postings, Posting{
			OrderID:    o.ID,
			SubgroupID: so.SubgroupID,
			Amount:     price.Neg(),
			Note:       note,
			Actor:      out.Actor,
		})
	}
	return nil
}

func ledgerNote(o *Order) string {
	ends := "open end"
	if o.Ends != nil {
		ends = o.Ends.Format("2006-01-02")
	}
	return fmt.Sprintf("Order: %s, until %s", o.Name, ends)
}
