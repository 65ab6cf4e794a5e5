package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
)

func TestState_CanApply(t *testing.T) {
	tests := []struct {
		from State
		t    Transition
		want bool
	}{
		{StateOpened, TransitionClose, true},
		{StateOpened, TransitionFinish, false},
		{StateOpened, TransitionFinishDirect, false},
		{StateClosed, TransitionClose, false},
		{StateClosed, TransitionFinish, true},
		{StateClosed, TransitionFinishDirect, true},
		{StateFinished, TransitionClose, false},
		{StateFinished, TransitionFinish, false},
		{StateFinished, TransitionFinishDirect, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.t), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanApply(tt.t))
		})
	}
	assert.False(t, State("archived").IsValid())
}

func closedStockOrder() *Order {
	ends := frozenAt
	return &Order{
		Name:       "pantry",
		SupplierID: id.Nil(),
		State:      StateClosed,
		Starts:     frozenAt.Add(-48 * time.Hour),
		Ends:       &ends,
		Lines: []OrderLine{
			{ArticleID: articleA, UnitsOrdered: 7, UnitsToOrder: 7, Price: snapshot("1", "0", "0", "0")},
		},
		SubgroupOrders: []SubgroupOrder{
			{
				SubgroupID: sgOne,
				Lines:      []SubgroupOrderLine{{ArticleID: articleA, Quantity: 4, Result: result(4)}},
				Price:      types.MustMoney("4"), PriceWithoutMarkup: types.MustMoney("4"),
			},
			{
				SubgroupID: sgTwo,
				Lines:      []SubgroupOrderLine{{ArticleID: articleA, Quantity: 3, Result: result(3)}},
				Price:      types.MustMoney("3"), PriceWithoutMarkup: types.MustMoney("3"),
			},
		},
	}
}

func TestPlanFinish_StockOrderDecrementsStock(t *testing.T) {
	out, err := planFinish(closedStockOrder(), nil, "bob", frozenAt.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, out.StockChanges, 1)
	assert.Equal(t, StockDelta{StockArticleID: articleA, Delta: -7}, out.StockChanges[0])

	require.Len(t, out.Postings, 2)
	assert.Equal(t, "-4", out.Postings[0].Amount.String())
	assert.Equal(t, "-3", out.Postings[1].Amount.String())
	assert.Equal(t, "Order: pantry, until 2026-03-02", out.Postings[0].Note)

	assert.Equal(t, StateFinished, out.Order.State)
	assert.Nil(t, out.Order.FoodcoopResult)
	assert.Equal(t, EventFinished, out.Event)
}

func TestPlanFinish_SupplierOrderLeavesStockAlone(t *testing.T) {
	o := closedStockOrder()
	o.SupplierID = id.MustParse("00000000-0000-7000-8000-0000000000ff")

	out, err := planFinish(o, &Invoice{NetAmount: types.MustMoney("5.50")}, "bob", frozenAt)
	require.NoError(t, err)

	assert.Empty(t, out.StockChanges)
	require.NotNil(t, out.Order.FoodcoopResult)
	assert.Equal(t, "1.5", out.Order.FoodcoopResult.String())
}

func TestPlanFinish_PriceDriftIsSettlementError(t *testing.T) {
	o := closedStockOrder()
	o.SubgroupOrders[1].Price = types.MustMoney("2.99")

	_, err := planFinish(o, nil, "bob", frozenAt)
	assert.True(t, apperror.HasCode(err, apperror.CodeSettlement))
}

func TestPlanFinish_DoesNotMutateInput(t *testing.T) {
	o := closedStockOrder()
	_, err := planFinish(o, nil, "bob", frozenAt)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, o.State)
}

func TestPlanFinishDirect(t *testing.T) {
	out, err := planFinishDirect(closedStockOrder(), "carol", frozenAt)
	require.NoError(t, err)

	assert.Len(t, out.Postings, 2)
	assert.Empty(t, out.StockChanges)
	assert.Equal(t, []string{finishedDirectlyComment}, out.Comments)
	assert.Equal(t, StateFinished, out.To)
}

func TestPlanClose_DroppedArticles(t *testing.T) {
	now := frozenAt
	build := func() *Order {
		o := NewOrder("weekly", sgTwo, []id.ID{articleA, articleX}, now.Add(-time.Hour), nil, "alice", now)
		o.SubgroupOrders = []SubgroupOrder{{
			SubgroupID: sgOne,
			Lines: []SubgroupOrderLine{
				{ArticleID: articleX, Quantity: 2, RequestedAt: now.Add(-time.Minute)},
				{ArticleID: articleA, Quantity: 1, RequestedAt: now.Add(-time.Minute)},
			},
		}}
		o.SelectedArticleIDs = []id.ID{articleA}
		return o
	}
	prices := func(_ context.Context, articleID id.ID) (ArticlePrice, error) {
		return ArticlePrice{ArticleID: articleID, NetPrice: types.MustMoney("2"), Tax: decimal.Zero, UnitQuantity: 1}, nil
	}
	plan := closePlan{actor: "alice", now: now, markup: decimal.Zero, policy: nil, prices: prices}

	_, err := planClose(context.Background(), build(), plan)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeArticlesWouldBeDropped, appErr.Code)
	assert.Equal(t, []string{articleX.String()}, appErr.Details["article_ids"])

	plan.override = true
	plan.policy = nil
	out, err := planClose(context.Background(), build(), plan)
	require.NoError(t, err)

	so, ok := out.Order.SubgroupOrder(sgOne)
	require.True(t, ok)
	require.Len(t, so.Lines, 1)
	assert.Equal(t, articleA, so.Lines[0].ArticleID)
	assert.Len(t, out.Order.Lines, 1)
}

func TestPlanClose_WindowEndsNow(t *testing.T) {
	o := NewOrder("future", sgTwo, []id.ID{articleA}, frozenAt.Add(time.Hour), nil, "alice", frozenAt)

	_, err := planClose(context.Background(), o, closePlan{actor: "alice", now: frozenAt})
	assert.True(t, apperror.HasCode(err, apperror.CodeDateRangeInvalid))
}
