// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
	"foodcoop/internal/infrastructure/storage/postgres"
)

const (
	stockChangesTable  = "reg_stock_changes"
	stockArticlesTable = "stock_articles"
)

var stockChangeColumns = []string{
	"line_id", "recorder_id", "recorder_type", "stock_article_id", "delta", "created_at",
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateChanges appends changes and moves the stock quantities in one transaction.
func (r *StockRepo) CreateChanges(ctx context.Context, changes []entity.StockChange) error {
	if len(changes) == 0 {
		return nil
	}

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rows := make([][]any, 0, len(changes))
		deltas := make(map[id.ID]int, len(changes))
		order := make([]id.ID, 0, len(changes))
		for _, c := range changes {
			rows = append(rows, []any{c.LineID, c.RecorderID, c.RecorderType, c.StockArticleID, c.Delta, c.CreatedAt})
			if _, seen := deltas[c.StockArticleID]; !seen {
				order = append(order, c.StockArticleID)
			}
			deltas[c.StockArticleID] += c.Delta
		}

		inserter := postgres.NewBatchInserter(r.txManager)
		if _, err := inserter.CopyFromSlice(ctx, stockChangesTable, stockChangeColumns, rows); err != nil {
			return fmt.Errorf("copy stock changes: %w", err)
		}

		q := r.builder.Insert(stockArticlesTable).Columns("id", "quantity")
		for _, articleID := range order {
			q = q.Values(articleID, deltas[articleID])
		}
		sql, args, err := q.
			Suffix("ON CONFLICT (id) DO UPDATE SET quantity = " + stockArticlesTable + ".quantity + EXCLUDED.quantity").
			ToSql()
		if err != nil {
			return fmt.Errorf("build quantity upsert: %w", err)
		}
		if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("apply stock quantities: %w", err)
		}
		return nil
	})
}

// ChangesByRecorder returns the changes recorded by one order.
func (r *StockRepo) ChangesByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockChange, error) {
	sql, args, err := r.builder.
		Select(stockChangeColumns...).
		From(stockChangesTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at", "line_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build changes query: %w", err)
	}

	var changes []entity.StockChange
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &changes, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock changes: %w", err)
	}
	return changes, nil
}

// Quantity returns the current quantity of a stock article. Unknown articles hold zero.
func (r *StockRepo) Quantity(ctx context.Context, stockArticleID id.ID) (int, error) {
	sql, args, err := r.builder.
		Select("quantity").
		From(stockArticlesTable).
		Where(squirrel.Eq{"id": stockArticleID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build quantity query: %w", err)
	}

	var quantity int
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &quantity, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get stock quantity: %w", err)
	}
	return quantity, nil
}

// SetQuantity overwrites the quantity of a stock article without recording a change.
// Used for seeding and inventory corrections.
func (r *StockRepo) SetQuantity(ctx context.Context, stockArticleID id.ID, quantity int) error {
	sql, args, err := r.builder.
		Insert(stockArticlesTable).
		Columns("id", "quantity").
		Values(stockArticleID, quantity).
		Suffix("ON CONFLICT (id) DO UPDATE SET quantity = EXCLUDED.quantity").
		ToSql()
	if err != nil {
		return fmt.Errorf("build quantity upsert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("set stock quantity: %w", err)
	}
	return nil
}
