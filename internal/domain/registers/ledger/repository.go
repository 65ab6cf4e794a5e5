// Package ledger provides the financial-transaction register of subgroup accounts.
package ledger

import (
	"context"

	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
)

// Repository defines operations for the ledger.
type Repository interface {
	// InsertTransaction appends t and applies its amount to the subgroup balance.
	// An unknown subgroup is an apperror NotFound.
	InsertTransaction(ctx context.Context, t entity.FinancialTransaction) error

	// Balance returns the current account balance of a subgroup.
	Balance(ctx context.Context, subgroupID id.ID) (types.Money, error)

	// TransactionsByRecorder returns the transactions an order posted.
	TransactionsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.FinancialTransaction, error)
}
