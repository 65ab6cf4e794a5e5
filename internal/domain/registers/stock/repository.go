// Package stock provides the stock-change register.
package stock

import (
	"context"

	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
)

// Repository defines operations for the stock register.
type Repository interface {
	// CreateChanges appends changes. Changes are never updated afterwards.
	CreateChanges(ctx context.Context, changes []entity.StockChange) error

	// ChangesByRecorder returns the changes recorded by one order.
	ChangesByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockChange, error)

	// Quantity returns the summed deltas of a stock article.
	Quantity(ctx context.Context, stockArticleID id.ID) (int, error)
}
