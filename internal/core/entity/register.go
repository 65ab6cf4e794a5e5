// Package entity provides core domain entities.
package entity

import (
	"time"

	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
)

// MovementBase contains common fields for all register movements.
// Movements are immutable: they are appended once and never updated.
type MovementBase struct {
	// LineID is unique identifier for this movement line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the order whose transition created this movement
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType names the transition (e.g. "order.finish")
	RecorderType string `db:"recorder_type" json:"recorderType"`

	// CreatedAt is when the movement was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMovementBase creates a new movement base with generated LineID.
func NewMovementBase(recorderID id.ID, recorderType string, at time.Time) MovementBase {
	return MovementBase{
		LineID:       id.New(),
		RecorderID:   recorderID,
		RecorderType: recorderType,
		CreatedAt:    at.UTC(),
	}
}

// StockChange is a quantity delta against a stock article.
type StockChange struct {
	MovementBase

	StockArticleID id.ID `db:"stock_article_id" json:"stockArticleId"`
	Delta          int   `db:"delta" json:"delta"`
}

// FinancialTransaction is a signed amount posted against a subgroup account.
// Negative amounts are debits.
type FinancialTransaction struct {
	MovementBase

	SubgroupID id.ID       `db:"subgroup_id" json:"subgroupId"`
	Amount     types.Money `db:"amount" json:"amount"`
	Note       string      `db:"note" json:"note"`
	UserID     string      `db:"user_id" json:"userId"`
}
