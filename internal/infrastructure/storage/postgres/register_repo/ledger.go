package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/infrastructure/storage/postgres"
)

const (
	financialTransactionsTable = "reg_financial_transactions"
	subgroupAccountsTable      = "subgroup_accounts"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// InsertTransaction moves the account balance and appends the transaction.
func (r *LedgerRepo) InsertTransaction(ctx context.Context, t entity.FinancialTransaction) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := r.txManager.GetQuerier(ctx)

		sql, args, err := r.builder.
			Update(subgroupAccountsTable).
			Set("balance", squirrel.Expr("balance + ?", t.Amount)).
			Where(squirrel.Eq{"subgroup_id": t.SubgroupID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build balance update: %w", err)
		}
		tag, err := querier.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("subgroup", t.SubgroupID.String())
		}

		sql, args, err = r.builder.
			Insert(financialTransactionsTable).
			Columns("line_id", "recorder_id", "recorder_type", "subgroup_id", "amount", "note", "user_id", "created_at").
			Values(t.LineID, t.RecorderID, t.RecorderType, t.SubgroupID, t.Amount, t.Note, t.UserID, t.CreatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build transaction insert: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
}

// Balance returns the current account balance of a subgroup.
func (r *LedgerRepo) Balance(ctx context.Context, subgroupID id.ID) (types.Money, error) {
	sql, args, err := r.builder.
		Select("balance").
		From(subgroupAccountsTable).
		Where(squirrel.Eq{"subgroup_id": subgroupID}).
		ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build balance query: %w", err)
	}

	var balance types.Money
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &balance, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Zero(), apperror.NewNotFound("subgroup", subgroupID.String())
		}
		return types.Zero(), fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// TransactionsByRecorder returns the transactions an order posted.
func (r *LedgerRepo) TransactionsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.FinancialTransaction, error) {
	sql, args, err := r.builder.
		Select("line_id", "recorder_id", "recorder_type", "subgroup_id", "amount", "note", "user_id", "created_at").
		From(financialTransactionsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at", "line_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transactions query: %w", err)
	}

	var out []entity.FinancialTransaction
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return out, nil
}

// OpenAccount creates a subgroup account with an opening balance.
// An existing account keeps its balance.
func (r *LedgerRepo) OpenAccount(ctx context.Context, subgroupID id.ID, balance types.Money) error {
	sql, args, err := r.builder.
		Insert(subgroupAccountsTable).
		Columns("subgroup_id", "balance").
		Values(subgroupID, balance).
		Suffix("ON CONFLICT (subgroup_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build account insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("open account: %w", err)
	}
	return nil
}
