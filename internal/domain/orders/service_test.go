package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/domain/registers/ledger"
	"foodcoop/internal/domain/registers/stock"
	"foodcoop/internal/domain/subgroups"
	"foodcoop/internal/infrastructure/storage/memory"
)

var now = time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	svc      *orders.Service
	ledger   *ledger.Service
	stock    *stock.Service
	stats    *subgroups.Service
	notifier *recordingNotifier

	supplier id.ID
	apples   id.ID
	pears    id.ID
}

type fixtureOption func(f *fixture, cfg *orders.ServiceConfig)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store := memory.New()
	f := &fixture{
		store:    store,
		ledger:   ledger.NewService(store),
		stock:    stock.NewService(store),
		stats:    subgroups.NewService(store),
		notifier: &recordingNotifier{},
		supplier: id.New(),
		apples:   id.New(),
		pears:    id.New(),
	}

	store.SetPrice(orders.ArticlePrice{ArticleID: f.apples, NetPrice: types.MustMoney("2"), Tax: decimal.Zero, UnitQuantity: 1})
	store.SetPrice(orders.ArticlePrice{ArticleID: f.pears, NetPrice: types.MustMoney("3"), Tax: decimal.Zero, UnitQuantity: 1})

	cfg := orders.ServiceConfig{
		Repo:      store,
		TxManager: store,
		Prices:    store,
		Ledger:    f.ledger,
		Stock:     f.stock,
		Stats:     f.stats,
		Notifier:  f.notifier,
		Auditor:   store,
		Settings: orders.Config{
			Markup: decimal.Zero,
			Now:    func() time.Time { return now },
		},
	}
	for _, opt := range opts {
		opt(f, &cfg)
	}
	f.svc = orders.NewService(cfg)
	return f
}

func (f *fixture) subgroup(t *testing.T, balance string) id.ID {
	t.Helper()
	sg := id.New()
	f.store.RegisterSubgroup(sg, types.MustMoney(balance))
	return sg
}

func (f *fixture) openOrder(t *testing.T, supplierID id.ID, articles ...id.ID) *orders.Order {
	t.Helper()
	starts := now.Add(-72 * time.Hour)
	o, err := f.svc.Create(context.Background(), orders.CreateInput{
		Name:       "week 10",
		SupplierID: supplierID,
		ArticleIDs: articles,
		Starts:     &starts,
	}, "alice")
	require.NoError(t, err)
	return o
}

func (f *fixture) request(t *testing.T, orderID, subgroupID, articleID id.ID, quantity, tolerance int) {
	t.Helper()
	_, err := f.svc.PlaceRequest(context.Background(), orderID, orders.RequestInput{
		SubgroupID: subgroupID,
		ArticleID:  articleID,
		Quantity:   quantity,
		Tolerance:  tolerance,
	}, "alice")
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, subgroupID id.ID) string {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), subgroupID)
	require.NoError(t, err)
	return b.String()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []orders.EventKind
}

func (n *recordingNotifier) Enqueue(_ context.Context, kind orders.EventKind, _ id.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
}

func (n *recordingNotifier) Events() []orders.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]orders.EventKind(nil), n.events...)
}

// failingLedger delegates to a real ledger and fails the n-th posting.
type failingLedger struct {
	next   orders.LedgerPoster
	failAt int
	calls  int
}

func (l *failingLedger) Post(ctx context.Context, p orders.Posting) error {
	l.calls++
	if l.calls == l.failAt {
		return errors.New("account service unavailable")
	}
	return l.next.Post(ctx, p)
}

// failingStock rejects every stock adjustment.
type failingStock struct{ calls int }

func (s *failingStock) Adjust(context.Context, id.ID, id.ID, int) error {
	s.calls++
	return errors.New("stock service unavailable")
}

type fixedSchedule struct{ starts, ends time.Time }

func (s fixedSchedule) SuggestWindow(time.Time) (time.Time, time.Time) { return s.starts, s.ends }

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sgA := f.subgroup(t, "100")
	sgB := f.subgroup(t, "50")

	o := f.openOrder(t, f.supplier, f.apples, f.pears)
	assert.Equal(t, orders.StateOpened, o.State)

	f.request(t, o.ID, sgA, f.apples, 6, 0)
	f.request(t, o.ID, sgB, f.apples, 4, 0)
	f.request(t, o.ID, sgB, f.pears, 5, 0)

	closed, err := f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, orders.StateClosed, closed.State)
	require.NotNil(t, closed.Ends)
	assert.Equal(t, now, *closed.Ends)

	gross, err := f.svc.Sum(ctx, o.ID, orders.SumGross)
	require.NoError(t, err)
	assert.Equal(t, "35", gross.String())

	groups, err := f.svc.Sum(ctx, o.ID, orders.SumGroups)
	require.NoError(t, err)
	assert.Equal(t, "35", groups.String())

	_, err = f.svc.Profit(ctx, o.ID, false)
	assert.True(t, apperror.HasCode(err, apperror.CodeProfitUnavailable))

	_, err = f.svc.AttachInvoice(ctx, o.ID, types.MustMoney("30"), "bob")
	require.NoError(t, err)

	profit, err := f.svc.Profit(ctx, o.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "5", profit.String())

	finished, err := f.svc.Finish(ctx, o.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, orders.StateFinished, finished.State)
	require.NotNil(t, finished.FoodcoopResult)
	assert.Equal(t, "5", finished.FoodcoopResult.String())

	assert.Equal(t, "88", f.balance(t, sgA))
	assert.Equal(t, "27", f.balance(t, sgB))

	txs, err := f.ledger.TransactionsOf(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "Order: week 10, until 2026-03-05", txs[0].Note)

	stats, err := f.stats.Get(ctx, sgB)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OrderCount)

	assert.Equal(t, []orders.EventKind{orders.EventClosed, orders.EventFinished}, f.notifier.Events())
	assert.Len(t, f.store.AuditLog(), 2)
}

func TestService_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.openOrder(t, f.supplier, f.apples)

	_, err := f.svc.Finish(ctx, o.ID, "bob")
	assert.True(t, apperror.IsInvalidTransition(err))
	_, err = f.svc.FinishDirect(ctx, o.ID, "bob")
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)
	_, err = f.svc.Close(ctx, o.ID, "bob")
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = f.svc.FinishDirect(ctx, o.ID, "bob")
	require.NoError(t, err)
	_, err = f.svc.Finish(ctx, o.ID, "bob")
	assert.True(t, apperror.IsInvalidTransition(err))

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StateFinished, stored.State)
}

func TestService_LedgerFailureRollsBackFinish(t *testing.T) {
	ctx := context.Background()
	poster := &failingLedger{failAt: 3}
	f := newFixture(t, func(f *fixture, cfg *orders.ServiceConfig) {
		poster.next = f.ledger
		cfg.Ledger = poster
	})

	o := f.openOrder(t, f.supplier, f.apples)
	subgroupIDs := make([]id.ID, 5)
	for i := range subgroupIDs {
		subgroupIDs[i] = f.subgroup(t, "20")
		f.request(t, o.ID, subgroupIDs[i], f.apples, 1, 0)
	}
	_, err := f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)

	_, err = f.svc.Finish(ctx, o.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeLedgerPostingFailed))
	assert.Equal(t, 3, poster.calls)

	for _, sg := range subgroupIDs {
		assert.Equal(t, "20", f.balance(t, sg))
	}
	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StateClosed, stored.State)
	assert.Nil(t, stored.FoodcoopResult)

	txs, err := f.ledger.TransactionsOf(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestService_StockOrderFinish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sgA := f.subgroup(t, "10")
	sgB := f.subgroup(t, "10")
	f.store.SetStock(f.apples, 20)

	o := f.openOrder(t, id.Nil(), f.apples)
	f.request(t, o.ID, sgA, f.apples, 4, 0)
	f.request(t, o.ID, sgB, f.apples, 3, 0)

	_, err := f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)
	finished, err := f.svc.Finish(ctx, o.ID, "bob")
	require.NoError(t, err)

	assert.Equal(t, 7, finished.Lines[0].UnitsToOrder)

	changes, err := f.stock.ChangesOf(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, -7, changes[0].Delta)

	qty, err := f.stock.Quantity(ctx, f.apples)
	require.NoError(t, err)
	assert.Equal(t, 13, qty)
}

func TestService_StockOrderIgnoresPackageSize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sg := f.subgroup(t, "10")
	cheese := id.New()
	f.store.SetPrice(orders.ArticlePrice{ArticleID: cheese, NetPrice: types.MustMoney("1.5"), Tax: decimal.Zero, UnitQuantity: 6})
	f.store.SetStock(cheese, 10)

	o := f.openOrder(t, id.Nil(), cheese)
	f.request(t, o.ID, sg, cheese, 2, 0)

	closed, err := f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, closed.Lines[0].UnitsOrdered)
	assert.Equal(t, 2, closed.Lines[0].UnitsToOrder)
	require.NotNil(t, closed.SubgroupOrders[0].Lines[0].Result)
	assert.Equal(t, 2, *closed.SubgroupOrders[0].Lines[0].Result)

	finished, err := f.svc.Finish(ctx, o.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, finished.Lines[0].UnitsToOrder)
	assert.Equal(t, "7", f.balance(t, sg))

	changes, err := f.stock.ChangesOf(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, -2, changes[0].Delta)

	qty, err := f.stock.Quantity(ctx, cheese)
	require.NoError(t, err)
	assert.Equal(t, 8, qty)
}

func TestService_StockFailureRollsBackFinish(t *testing.T) {
	ctx := context.Background()
	adjuster := &failingStock{}
	f := newFixture(t, func(_ *fixture, cfg *orders.ServiceConfig) {
		cfg.Stock = adjuster
	})
	sgA := f.subgroup(t, "10")
	sgB := f.subgroup(t, "10")
	f.store.SetStock(f.apples, 20)

	o := f.openOrder(t, id.Nil(), f.apples)
	f.request(t, o.ID, sgA, f.apples, 2, 0)
	f.request(t, o.ID, sgB, f.apples, 1, 0)
	_, err := f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)

	_, err = f.svc.Finish(ctx, o.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeStockAdjustmentFailed))
	assert.Equal(t, 1, adjuster.calls)

	assert.Equal(t, "10", f.balance(t, sgA))
	assert.Equal(t, "10", f.balance(t, sgB))

	txs, err := f.ledger.TransactionsOf(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)

	changes, err := f.stock.ChangesOf(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StateClosed, stored.State)
}

func TestService_CloseFreezesPrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sg := f.subgroup(t, "40")

	o := f.openOrder(t, f.supplier, f.apples)
	f.request(t, o.ID, sg, f.apples, 5, 0)
	_, err := f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)

	f.store.SetPrice(orders.ArticlePrice{ArticleID: f.apples, NetPrice: types.MustMoney("9"), Tax: decimal.Zero, UnitQuantity: 1})

	sum, err := f.svc.Sum(ctx, o.ID, orders.SumFoodcoop)
	require.NoError(t, err)
	assert.Equal(t, "10", sum.String())

	_, err = f.svc.Finish(ctx, o.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "30", f.balance(t, sg))

	again, err := f.svc.Sum(ctx, o.ID, orders.SumFoodcoop)
	require.NoError(t, err)
	assert.Equal(t, "10", again.String())
}

func TestService_CloseMissingPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sg := f.subgroup(t, "0")
	unpriced := id.New()

	o := f.openOrder(t, f.supplier, unpriced)
	f.request(t, o.ID, sg, unpriced, 1, 0)

	_, err := f.svc.Close(ctx, o.ID, "bob")
	assert.True(t, apperror.HasCode(err, apperror.CodeSettlement))

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StateOpened, stored.State)
}

func TestService_UpdateSelectionDroppedArticles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sg := f.subgroup(t, "0")

	o := f.openOrder(t, f.supplier, f.apples, f.pears)
	f.request(t, o.ID, sg, f.pears, 2, 0)

	_, err := f.svc.UpdateSelection(ctx, o.ID, []id.ID{f.apples}, false, "alice")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeArticlesWouldBeDropped, appErr.Code)
	assert.Equal(t, []string{f.pears.String()}, appErr.Details["article_ids"])

	updated, err := f.svc.UpdateSelection(ctx, o.ID, []id.ID{f.apples}, true, "alice")
	require.NoError(t, err)
	assert.Len(t, updated.Lines, 1)
	assert.Empty(t, updated.SubgroupOrders)

	_, err = f.svc.UpdateSelection(ctx, o.ID, nil, true, "alice")
	assert.True(t, apperror.HasCode(err, apperror.CodeNoArticlesChosen))
}

func TestService_CloseConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sg := f.subgroup(t, "0")
	o := f.openOrder(t, f.supplier, f.apples)
	f.request(t, o.ID, sg, f.apples, 1, 0)

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Close(ctx, o.ID, "bob")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperror.IsInvalidTransition(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.notifier.Events(), 1)
}

func TestService_FinishDirectComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sg := f.subgroup(t, "10")
	f.store.SetStock(f.apples, 5)

	o := f.openOrder(t, id.Nil(), f.apples)
	f.request(t, o.ID, sg, f.apples, 2, 0)
	_, err := f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)
	_, err = f.svc.AttachInvoice(ctx, o.ID, types.MustMoney("1"), "bob")
	require.NoError(t, err)

	finished, err := f.svc.FinishDirect(ctx, o.ID, "carol")
	require.NoError(t, err)
	assert.Nil(t, finished.FoodcoopResult)
	assert.Equal(t, "6", f.balance(t, sg))

	qty, err := f.stock.Quantity(ctx, f.apples)
	require.NoError(t, err)
	assert.Equal(t, 5, qty)

	comments, err := f.svc.Comments(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "carol", comments[0].UserID)
}

func TestService_CreateUsesScheduleDefaults(t *testing.T) {
	starts := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	ends := time.Date(2026, 3, 12, 20, 0, 0, 0, time.UTC)
	f := newFixture(t, func(_ *fixture, cfg *orders.ServiceConfig) {
		cfg.Schedule = fixedSchedule{starts: starts, ends: ends}
	})

	o, err := f.svc.Create(context.Background(), orders.CreateInput{
		Name:       "next week",
		SupplierID: f.supplier,
		ArticleIDs: []id.ID{f.apples, f.apples},
	}, "alice")
	require.NoError(t, err)

	assert.Equal(t, starts, o.Starts)
	require.NotNil(t, o.Ends)
	assert.Equal(t, ends, *o.Ends)
	assert.Len(t, o.Lines, 1)
	assert.Equal(t, orders.EndActionNone, o.EndAction)
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	starts := now
	ends := now.Add(-time.Hour)

	tests := []struct {
		name string
		in   orders.CreateInput
		code string
	}{
		{"no articles", orders.CreateInput{Name: "x", SupplierID: f.supplier}, apperror.CodeNoArticlesChosen},
		{"ends before starts", orders.CreateInput{Name: "x", ArticleIDs: []id.ID{f.apples}, Starts: &starts, Ends: &ends}, apperror.CodeDateRangeInvalid},
		{"missing name", orders.CreateInput{ArticleIDs: []id.ID{f.apples}}, apperror.CodeValidation},
		{"unknown end action", orders.CreateInput{Name: "x", ArticleIDs: []id.ID{f.apples}, EndAction: "explode"}, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.in, "alice")
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestService_PlaceRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sg := f.subgroup(t, "0")
	o := f.openOrder(t, f.supplier, f.apples)

	f.request(t, o.ID, sg, f.apples, 2, 1)
	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.SubgroupOrders, 1)
	assert.Equal(t, 2, stored.SubgroupOrders[0].Lines[0].Quantity)
	assert.Equal(t, 1, stored.SubgroupOrders[0].Lines[0].Tolerance)

	f.request(t, o.ID, sg, f.apples, 0, 0)
	stored, err = f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SubgroupOrders)

	_, err = f.svc.PlaceRequest(ctx, o.ID, orders.RequestInput{SubgroupID: sg, ArticleID: f.pears, Quantity: 1}, "alice")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.PlaceRequest(ctx, o.ID, orders.RequestInput{SubgroupID: sg, ArticleID: f.apples, Quantity: -1}, "alice")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)
	_, err = f.svc.PlaceRequest(ctx, o.ID, orders.RequestInput{SubgroupID: sg, ArticleID: f.apples, Quantity: 1}, "alice")
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestService_AttachInvoiceRequiresClosedOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.openOrder(t, f.supplier, f.apples)

	_, err := f.svc.AttachInvoice(ctx, o.ID, types.MustMoney("1"), "bob")
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = f.svc.Close(ctx, o.ID, "bob")
	require.NoError(t, err)

	first, err := f.svc.AttachInvoice(ctx, o.ID, types.MustMoney("1"), "bob")
	require.NoError(t, err)
	second, err := f.svc.AttachInvoice(ctx, o.ID, types.MustMoney("2"), "bob")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = f.svc.AttachInvoice(ctx, o.ID, types.MustMoney("-2"), "bob")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestService_CloseDue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	starts := now.Add(-48 * time.Hour)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	create := func(ends time.Time, action orders.EndAction) *orders.Order {
		o, err := f.svc.Create(ctx, orders.CreateInput{
			Name: "auto", SupplierID: f.supplier, ArticleIDs: []id.ID{f.apples},
			Starts: &starts, Ends: &ends, EndAction: action,
		}, "alice")
		require.NoError(t, err)
		return o
	}
	due := create(past, orders.EndActionAutoClose)
	notYet := create(future, orders.EndActionAutoClose)
	manual := create(past, orders.EndActionNone)

	closed, err := f.svc.CloseDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	for _, tc := range []struct {
		o    *orders.Order
		want orders.State
	}{{due, orders.StateClosed}, {notYet, orders.StateOpened}, {manual, orders.StateOpened}} {
		stored, err := f.svc.Get(ctx, tc.o.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, stored.State)
	}

	stored, err := f.svc.Get(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, "system", stored.UpdatedBy)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for range 3 {
		f.openOrder(t, f.supplier, f.apples)
	}
	closed := f.openOrder(t, f.supplier, f.apples)
	_, err := f.svc.Close(ctx, closed.ID, "bob")
	require.NoError(t, err)

	state := orders.StateOpened
	page, err := f.svc.List(ctx, orders.ListFilter{State: &state})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalCount)
	assert.Len(t, page.Items, 3)

	filter := orders.ListFilter{}
	filter.Limit = 2
	page, err = f.svc.List(ctx, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.TotalCount)
	assert.Len(t, page.Items, 2)
}
