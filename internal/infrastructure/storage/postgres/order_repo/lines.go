package order_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/infrastructure/storage/postgres"
)

type lineRow struct {
	ID                id.ID            `db:"id"`
	OrderID           id.ID            `db:"order_id"`
	ArticleID         id.ID            `db:"article_id"`
	UnitsOrdered      int              `db:"units_ordered"`
	UnitsToOrder      int              `db:"units_to_order"`
	PriceNet          *decimal.Decimal `db:"price_net"`
	PriceTax          *decimal.Decimal `db:"price_tax"`
	PriceDeposit      *decimal.Decimal `db:"price_deposit"`
	PriceMarkup       *decimal.Decimal `db:"price_markup"`
	PriceUnitQuantity *int             `db:"price_unit_quantity"`
	PriceFrozenAt     *time.Time       `db:"price_frozen_at"`
}

func (l lineRow) toLine() orders.OrderLine {
	line := orders.OrderLine{
		ID:           l.ID,
		ArticleID:    l.ArticleID,
		UnitsOrdered: l.UnitsOrdered,
		UnitsToOrder: l.UnitsToOrder,
	}
	if l.PriceNet != nil && l.PriceTax != nil && l.PriceDeposit != nil && l.PriceMarkup != nil {
		unitQuantity := 1
		if l.PriceUnitQuantity != nil {
			unitQuantity = *l.PriceUnitQuantity
		}
		var frozenAt time.Time
		if l.PriceFrozenAt != nil {
			frozenAt = l.PriceFrozenAt.UTC()
		}
		line.Price = orders.RestorePriceSnapshot(*l.PriceNet, *l.PriceTax, *l.PriceDeposit, *l.PriceMarkup, unitQuantity, frozenAt)
	}
	return line
}

type subgroupOrderRow struct {
	ID                 id.ID       `db:"id"`
	OrderID            id.ID       `db:"order_id"`
	SubgroupID         id.ID       `db:"subgroup_id"`
	Price              types.Money `db:"price"`
	PriceWithoutMarkup types.Money `db:"price_without_markup"`
	UpdatedBy          string      `db:"updated_by"`
	UpdatedAt          time.Time   `db:"updated_at"`
}

type subgroupLineRow struct {
	ID              id.ID        `db:"id"`
	SubgroupOrderID id.ID        `db:"subgroup_order_id"`
	ArticleID       id.ID        `db:"article_id"`
	Quantity        int          `db:"quantity"`
	Tolerance       int          `db:"tolerance"`
	Result          *int         `db:"result"`
	UnitPrice       *types.Money `db:"unit_price"`
	RequestedAt     time.Time    `db:"requested_at"`
}

// loadChildren fills lines and subgroup orders of the given orders with three queries.
func (r *OrderRepo) loadChildren(ctx context.Context, list []*orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[id.ID]*orders.Order, len(list))
	ids := make([]id.ID, 0, len(list))
	for _, o := range list {
		byID[o.ID] = o
		ids = append(ids, o.ID)
		o.Lines = nil
		o.SubgroupOrders = nil
	}
	querier := r.txManager.GetQuerier(ctx)

	sql, args, err := r.builder.Select(
		"id", "order_id", "article_id", "units_ordered", "units_to_order",
		"price_net", "price_tax", "price_deposit", "price_markup", "price_unit_quantity", "price_frozen_at",
	).
		From(orderLinesTable).
		Where(squirrel.Expr("order_id = ANY(?)", ids)).
		OrderBy("order_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lines query: %w", err)
	}
	var lines []lineRow
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return fmt.Errorf("load order lines: %w", err)
	}
	for _, l := range lines {
		o := byID[l.OrderID]
		o.Lines = append(o.Lines, l.toLine())
	}

	sql, args, err = r.builder.Select(
		"id", "order_id", "subgroup_id", "price", "price_without_markup", "updated_by", "updated_at",
	).
		From(subgroupOrdersTable).
		Where(squirrel.Expr("order_id = ANY(?)", ids)).
		OrderBy("order_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build subgroup orders query: %w", err)
	}
	var subgroupOrders []subgroupOrderRow
	if err := pgxscan.Select(ctx, querier, &subgroupOrders, sql, args...); err != nil {
		return fmt.Errorf("load subgroup orders: %w", err)
	}
	if len(subgroupOrders) == 0 {
		return nil
	}

	sql, args, err = r.builder.Select(
		"l.id", "l.subgroup_order_id", "l.article_id", "l.quantity", "l.tolerance",
		"l.result", "l.unit_price", "l.requested_at",
	).
		From(subgroupOrderLinesTable + " l").
		Join(subgroupOrdersTable + " so ON so.id = l.subgroup_order_id").
		Where(squirrel.Expr("so.order_id = ANY(?)", ids)).
		OrderBy("l.subgroup_order_id", "l.position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build subgroup lines query: %w", err)
	}
	var subgroupLines []subgroupLineRow
	if err := pgxscan.Select(ctx, querier, &subgroupLines, sql, args...); err != nil {
		return fmt.Errorf("load subgroup lines: %w", err)
	}
	linesBySubgroupOrder := make(map[id.ID][]orders.SubgroupOrderLine, len(subgroupOrders))
	for _, l := range subgroupLines {
		linesBySubgroupOrder[l.SubgroupOrderID] = append(linesBySubgroupOrder[l.SubgroupOrderID], orders.SubgroupOrderLine{
			ID:          l.ID,
			ArticleID:   l.ArticleID,
			Quantity:    l.Quantity,
			Tolerance:   l.Tolerance,
			Result:      l.Result,
			UnitPrice:   l.UnitPrice,
			RequestedAt: l.RequestedAt.UTC(),
		})
	}

	for _, so := range subgroupOrders {
		o := byID[so.OrderID]
		o.SubgroupOrders = append(o.SubgroupOrders, orders.SubgroupOrder{
			ID:                 so.ID,
			SubgroupID:         so.SubgroupID,
			Lines:              linesBySubgroupOrder[so.ID],
			Price:              so.Price,
			PriceWithoutMarkup: so.PriceWithoutMarkup,
			UpdatedBy:          so.UpdatedBy,
			UpdatedAt:          so.UpdatedAt.UTC(),
		})
	}
	return nil
}

// saveChildren replaces lines and subgroup orders in one batch.
func (r *OrderRepo) saveChildren(ctx context.Context, o *orders.Order) error {
	queries := []postgres.BatchQuery{
		{SQL: "DELETE FROM " + orderLinesTable + " WHERE order_id = $1", Args: []any{o.ID}},
		{SQL: "DELETE FROM " + subgroupOrdersTable + " WHERE order_id = $1", Args: []any{o.ID}},
	}

	add := func(q squirrel.InsertBuilder) error {
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
		return nil
	}

	for i, l := range o.Lines {
		values := []any{l.ID, o.ID, i, l.ArticleID, l.UnitsOrdered, l.UnitsToOrder, nil, nil, nil, nil, nil, nil}
		if p := l.Price; p != nil {
			values[6], values[7], values[8], values[9] = p.Net(), p.Tax(), p.Deposit(), p.Markup()
			values[10], values[11] = p.UnitQuantity(), p.FrozenAt()
		}
		err := add(r.builder.Insert(orderLinesTable).
			Columns(
				"id", "order_id", "position", "article_id", "units_ordered", "units_to_order",
				"price_net", "price_tax", "price_deposit", "price_markup", "price_unit_quantity", "price_frozen_at",
			).
			Values(values...))
		if err != nil {
			return err
		}
	}

	for i, so := range o.SubgroupOrders {
		err := add(r.builder.Insert(subgroupOrdersTable).
			Columns("id", "order_id", "position", "subgroup_id", "price", "price_without_markup", "updated_by", "updated_at").
			Values(so.ID, o.ID, i, so.SubgroupID, so.Price, so.PriceWithoutMarkup, so.UpdatedBy, so.UpdatedAt))
		if err != nil {
			return err
		}
		for j, l := range so.Lines {
			err := add(r.builder.Insert(subgroupOrderLinesTable).
				Columns("id", "subgroup_order_id", "position", "article_id", "quantity", "tolerance", "result", "unit_price", "requested_at").
				Values(l.ID, so.ID, j, l.ArticleID, l.Quantity, l.Tolerance, l.Result, l.UnitPrice, l.RequestedAt))
			if err != nil {
				return err
			}
		}
	}

	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("save order %s children: %w", o.ID, err)
	}
	return nil
}
