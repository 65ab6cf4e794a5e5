// Package order_repo provides the PostgreSQL implementation of orders.Repository
// and the catalog price store.
package order_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/domain"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/infrastructure/storage/postgres"
)

const (
	ordersTable             = "orders"
	orderLinesTable         = "order_lines"
	subgroupOrdersTable     = "subgroup_orders"
	subgroupOrderLinesTable = "subgroup_order_lines"
	invoicesTable           = "invoices"
	orderCommentsTable      = "order_comments"
)

var orderColumns = postgres.ExtractDBColumns[orders.Order]()

// OrderRepo implements orders.Repository. Lines and subgroup orders are
// replaced as a whole on every update.
type OrderRepo struct {
	txManager *postgres.TxManager
	batch     *postgres.BatchExecutor
	builder   squirrel.StatementBuilderType
}

// NewOrderRepo creates a new order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		txManager: txManager,
		batch:     postgres.NewBatchExecutor(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the order with its lines and subgroup orders.
func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		data := postgres.StructToMap(o)

		q := r.builder.Insert(ordersTable).SetMap(data)
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert %s: %w", ordersTable, err)
		}

		return r.saveChildren(ctx, o)
	})
}

// Update stores the order with optimistic locking and advances its version.
func (r *OrderRepo) Update(ctx context.Context, o *orders.Order) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		data := postgres.StructToMap(o)
		for _, col := range []string{"id", "version", "created_at", "created_by"} {
			delete(data, col)
		}

		q := r.builder.Update(ordersTable).
			SetMap(data).
			Set("version", squirrel.Expr("version + 1")).
			Where(squirrel.Eq{"id": o.ID}).
			Where(squirrel.Eq{"version": o.Version})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}

		result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update %s: %w", ordersTable, err)
		}
		if result.RowsAffected() == 0 {
			return apperror.NewConcurrentModification(ordersTable, o.ID.String())
		}

		if err := r.saveChildren(ctx, o); err != nil {
			return err
		}
		o.Version++
		return nil
	})
}

// GetByID loads an order with lines and subgroup orders.
func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.get(ctx, orderID, "")
}

// GetForUpdate loads an order and locks its row until the transaction ends.
func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetForUpdate requires transaction context")
	}
	return r.get(ctx, orderID, "FOR UPDATE")
}

func (r *OrderRepo) get(ctx context.Context, orderID id.ID, suffix string) (*orders.Order, error) {
	q := r.builder.Select(orderColumns...).
		From(ordersTable).
		Where(squirrel.Eq{"id": orderID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	o := &orders.Order{}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), o, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := r.loadChildren(ctx, []*orders.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns a page of orders with their lines and subgroup orders.
func (r *OrderRepo) List(ctx context.Context, filter orders.ListFilter) (domain.ListResult[*orders.Order], error) {
	result := domain.ListResult[*orders.Order]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder.Select(orderColumns...).From(ordersTable)
	if filter.State != nil {
		q = q.Where(squirrel.Eq{"state": string(*filter.State)})
	}
	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy, "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list orders: %w", err)
	}

	if err := r.loadChildren(ctx, result.Items); err != nil {
		return result, err
	}
	return result, nil
}

var sortableColumns = map[string]struct{}{
	"starts": {}, "ends": {}, "name": {}, "state": {}, "created_at": {}, "updated_at": {},
}

func parseOrderBy(orderBy string) (string, error) {
	if strings.TrimSpace(orderBy) == "" {
		return "starts DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if _, ok := sortableColumns[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}
	return field + " " + direction, nil
}

// ListDueForAutoClose returns Opened auto-close orders whose ends passed.
func (r *OrderRepo) ListDueForAutoClose(ctx context.Context, now time.Time) ([]id.ID, error) {
	q := r.builder.Select("id").
		From(ordersTable).
		Where(squirrel.Eq{"state": string(orders.StateOpened), "end_action": string(orders.EndActionAutoClose)}).
		Where(squirrel.LtOrEq{"ends": now}).
		OrderBy("ends", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("list due orders: %w", err)
	}
	return ids, nil
}

// GetInvoice returns the order's invoice or nil.
func (r *OrderRepo) GetInvoice(ctx context.Context, orderID id.ID) (*orders.Invoice, error) {
	sql, args, err := r.builder.Select("id", "order_id", "net_amount", "created_by", "created_at").
		From(invoicesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var invoice orders.Invoice
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &invoice, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &invoice, nil
}

// SaveInvoice creates or replaces the order's invoice.
func (r *OrderRepo) SaveInvoice(ctx context.Context, invoice *orders.Invoice) error {
	sql, args, err := r.builder.Insert(invoicesTable).
		Columns("id", "order_id", "net_amount", "created_by", "created_at").
		Values(invoice.ID, invoice.OrderID, invoice.NetAmount, invoice.CreatedBy, invoice.CreatedAt).
		Suffix("ON CONFLICT (order_id) DO UPDATE SET net_amount = EXCLUDED.net_amount, created_by = EXCLUDED.created_by, created_at = EXCLUDED.created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}
	return nil
}

// AddComment appends to the order's comment log.
func (r *OrderRepo) AddComment(ctx context.Context, c *orders.Comment) error {
	sql, args, err := r.builder.Insert(orderCommentsTable).
		Columns("id", "order_id", "user_id", "text", "created_at").
		Values(c.ID, c.OrderID, c.UserID, c.Text, c.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListComments returns the comment log, oldest first.
func (r *OrderRepo) ListComments(ctx context.Context, orderID id.ID) ([]orders.Comment, error) {
	sql, args, err := r.builder.Select("id", "order_id", "user_id", "text", "created_at").
		From(orderCommentsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var comments []orders.Comment
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &comments, sql, args...); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
