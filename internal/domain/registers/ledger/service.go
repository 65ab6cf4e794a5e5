package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/orders"
	"foodcoop/pkg/logger"
)

// RecorderOrderSettlement marks transactions posted when an order is finished.
const RecorderOrderSettlement = "order.settlement"

// Service posts to subgroup accounts. Transactions are managed by the caller.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new ledger service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Post implements orders.LedgerPoster.
func (s *Service) Post(ctx context.Context, p orders.Posting) error {
	if id.IsNil(p.SubgroupID) {
		return apperror.NewValidation("subgroup is required").WithDetail("field", "subgroupId")
	}
	if strings.TrimSpace(p.Note) == "" {
		return apperror.NewValidation("note is required").WithDetail("field", "note")
	}

	t := entity.FinancialTransaction{
		MovementBase: entity.NewMovementBase(p.OrderID, RecorderOrderSettlement, s.now()),
		SubgroupID:   p.SubgroupID,
		Amount:       types.RoundCents(p.Amount),
		Note:         p.Note,
		UserID:       p.Actor,
	}
	if err := s.repo.InsertTransaction(ctx, t); err != nil {
		return apperror.NewLedgerPostingFailed(p.SubgroupID.String(), fmt.Errorf("insert transaction: %w", err))
	}

	logger.Debug(ctx, "posted financial transaction",
		"subgroup_id", p.SubgroupID,
		"amount", t.Amount.String(),
		"recorder_id", p.OrderID,
	)
	return nil
}

// Balance returns the account balance of a subgroup.
func (s *Service) Balance(ctx context.Context, subgroupID id.ID) (types.Money, error) {
	return s.repo.Balance(ctx, subgroupID)
}

// TransactionsOf returns the transactions an order posted.
func (s *Service) TransactionsOf(ctx context.Context, orderID id.ID) ([]entity.FinancialTransaction, error) {
	return s.repo.TransactionsByRecorder(ctx, orderID)
}
