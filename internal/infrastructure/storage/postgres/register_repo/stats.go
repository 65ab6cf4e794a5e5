package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"foodcoop/internal/core/id"
	"foodcoop/internal/domain/subgroups"
	"foodcoop/internal/infrastructure/storage/postgres"
)

const recomputeStatsSQL = `
INSERT INTO subgroup_stats (subgroup_id, order_count, last_order_at)
SELECT $1, COUNT(*), MAX(o.ends)
FROM orders o
JOIN subgroup_orders so ON so.order_id = o.id
WHERE so.subgroup_id = $1 AND o.state <> 'opened'
ON CONFLICT (subgroup_id) DO UPDATE
SET order_count = EXCLUDED.order_count, last_order_at = EXCLUDED.last_order_at`

// StatsRepo implements subgroups.Repository.
type StatsRepo struct {
	txManager *postgres.TxManager
}

// NewStatsRepo creates a new statistics repository.
func NewStatsRepo(txManager *postgres.TxManager) *StatsRepo {
	return &StatsRepo{txManager: txManager}
}

// RecomputeStats rebuilds the statistics row of one subgroup from stored orders.
func (r *StatsRepo) RecomputeStats(ctx context.Context, subgroupID id.ID) error {
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, recomputeStatsSQL, subgroupID); err != nil {
		return fmt.Errorf("recompute subgroup stats: %w", err)
	}
	return nil
}

// GetStats returns zero statistics for subgroups that never ordered.
func (r *StatsRepo) GetStats(ctx context.Context, subgroupID id.ID) (subgroups.Stats, error) {
	var stats subgroups.Stats
	err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &stats,
		"SELECT subgroup_id, order_count, last_order_at FROM subgroup_stats WHERE subgroup_id = $1", subgroupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return subgroups.Stats{SubgroupID: subgroupID}, nil
	}
	if err != nil {
		return subgroups.Stats{}, fmt.Errorf("get subgroup stats: %w", err)
	}
	return stats, nil
}
