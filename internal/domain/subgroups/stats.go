// Package subgroups keeps per-subgroup order statistics.
package subgroups

import (
	"context"
	"fmt"
	"time"

	"foodcoop/internal/core/id"
)

// Stats summarizes a subgroup's participation in orders that are no longer open.
type Stats struct {
	SubgroupID  id.ID      `db:"subgroup_id" json:"subgroupId"`
	OrderCount  int        `db:"order_count" json:"orderCount"`
	LastOrderAt *time.Time `db:"last_order_at" json:"lastOrderAt,omitempty"`
}

// Repository recomputes and reads statistics.
type Repository interface {
	RecomputeStats(ctx context.Context, subgroupID id.ID) error
	GetStats(ctx context.Context, subgroupID id.ID) (Stats, error)
}

// Service implements orders.SubgroupStatsUpdater.
type Service struct {
	repo Repository
}

// NewService creates a new statistics service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Refresh recomputes the statistics of one subgroup from stored orders.
func (s *Service) Refresh(ctx context.Context, subgroupID id.ID) error {
	if err := s.repo.RecomputeStats(ctx, subgroupID); err != nil {
		return fmt.Errorf("recompute stats: %w", err)
	}
	return nil
}

// Get returns the statistics of a subgroup.
func (s *Service) Get(ctx context.Context, subgroupID id.ID) (Stats, error) {
	return s.repo.GetStats(ctx, subgroupID)
}
