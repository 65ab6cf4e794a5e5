package order_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/infrastructure/storage/postgres"
)

const articlePricesTable = "article_prices"

// PriceRepo implements orders.PriceSnapshotStore over the article price history.
type PriceRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewPriceRepo creates a new price repository.
func NewPriceRepo(txManager *postgres.TxManager) *PriceRepo {
	return &PriceRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

type priceRow struct {
	ArticleID    id.ID           `db:"article_id"`
	NetPrice     types.Money     `db:"net_price"`
	Tax          decimal.Decimal `db:"tax"`
	Deposit      types.Money     `db:"deposit"`
	UnitQuantity int             `db:"unit_quantity"`
}

// CurrentPrice returns the latest price valid at the given time.
func (r *PriceRepo) CurrentPrice(ctx context.Context, articleID id.ID, at time.Time) (orders.ArticlePrice, error) {
	sql, args, err := r.builder.
		Select("article_id", "net_price", "tax", "deposit", "unit_quantity").
		From(articlePricesTable).
		Where(squirrel.Eq{"article_id": articleID}).
		Where(squirrel.LtOrEq{"valid_from": at}).
		OrderBy("valid_from DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return orders.ArticlePrice{}, fmt.Errorf("build price query: %w", err)
	}

	var row priceRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.ArticlePrice{}, apperror.NewNotFound("article price", articleID.String())
		}
		return orders.ArticlePrice{}, fmt.Errorf("get article price: %w", err)
	}

	return orders.ArticlePrice{
		ArticleID:    row.ArticleID,
		NetPrice:     row.NetPrice,
		Tax:          row.Tax,
		Deposit:      row.Deposit,
		UnitQuantity: row.UnitQuantity,
	}, nil
}

// SetPrice stores a price valid from the given time, replacing one with the same start.
func (r *PriceRepo) SetPrice(ctx context.Context, p orders.ArticlePrice, validFrom time.Time) error {
	unitQuantity := p.UnitQuantity
	if unitQuantity < 1 {
		unitQuantity = 1
	}
	sql, args, err := r.builder.
		Insert(articlePricesTable).
		Columns("article_id", "valid_from", "net_price", "tax", "deposit", "unit_quantity").
		Values(p.ArticleID, validFrom.UTC(), p.NetPrice, p.Tax, p.Deposit, unitQuantity).
		Suffix("ON CONFLICT (article_id, valid_from) DO UPDATE SET net_price = EXCLUDED.net_price, " +
			"tax = EXCLUDED.tax, deposit = EXCLUDED.deposit, unit_quantity = EXCLUDED.unit_quantity").
		ToSql()
	if err != nil {
		return fmt.Errorf("build price insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("set article price: %w", err)
	}
	return nil
}
