package stock

import (
	"context"
	"fmt"
	"time"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
	"foodcoop/pkg/logger"
)

// RecorderFinish marks changes created when a stock order is finished.
const RecorderFinish = "order.finish"

// Service records stock changes. Transactions are managed by the caller.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new stock register service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Adjust records delta against a stock article on behalf of an order.
func (s *Service) Adjust(ctx context.Context, orderID, stockArticleID id.ID, delta int) error {
	if delta == 0 {
		return apperror.NewValidation("stock delta must not be zero").
			WithDetail("stock_article_id", stockArticleID.String())
	}
	if id.IsNil(orderID) || id.IsNil(stockArticleID) {
		return apperror.NewValidation("order and stock article are required")
	}

	change := entity.StockChange{
		MovementBase:   entity.NewMovementBase(orderID, RecorderFinish, s.now()),
		StockArticleID: stockArticleID,
		Delta:          delta,
	}
	if err := s.repo.CreateChanges(ctx, []entity.StockChange{change}); err != nil {
		return fmt.Errorf("create stock change: %w", err)
	}

	logger.Debug(ctx, "recorded stock change",
		"recorder_id", orderID,
		"stock_article_id", stockArticleID,
		"delta", delta,
	)
	return nil
}

// Quantity returns the current quantity of a stock article.
func (s *Service) Quantity(ctx context.Context, stockArticleID id.ID) (int, error) {
	return s.repo.Quantity(ctx, stockArticleID)
}

// ChangesOf returns the stock changes an order produced.
func (s *Service) ChangesOf(ctx context.Context, orderID id.ID) ([]entity.StockChange, error) {
	return s.repo.ChangesByRecorder(ctx, orderID)
}
