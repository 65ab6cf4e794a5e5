package memory

import (
	"context"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/domain/subgroups"
)

// InsertTransaction implements ledger.Repository.
func (s *Store) InsertTransaction(ctx context.Context, t entity.FinancialTransaction) error {
	return s.view(ctx, func(st *state) error {
		balance, ok := st.balances[t.SubgroupID]
		if !ok {
			return apperror.NewNotFound("subgroup", t.SubgroupID.String())
		}
		st.balances[t.SubgroupID] = balance.Add(t.Amount)
		st.transactions = append(st.transactions, t)
		return nil
	})
}

// Balance implements ledger.Repository.
func (s *Store) Balance(ctx context.Context, subgroupID id.ID) (types.Money, error) {
	var out types.Money
	err := s.view(ctx, func(st *state) error {
		balance, ok := st.balances[subgroupID]
		if !ok {
			return apperror.NewNotFound("subgroup", subgroupID.String())
		}
		out = balance
		return nil
	})
	return out, err
}

// TransactionsByRecorder implements ledger.Repository.
func (s *Store) TransactionsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.FinancialTransaction, error) {
	var out []entity.FinancialTransaction
	err := s.view(ctx, func(st *state) error {
		for _, t := range st.transactions {
			if t.RecorderID == recorderID {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

// CreateChanges implements stock.Repository.
func (s *Store) CreateChanges(ctx context.Context, changes []entity.StockChange) error {
	return s.view(ctx, func(st *state) error {
		for _, c := range changes {
			st.stock[c.StockArticleID] += c.Delta
			st.stockChanges = append(st.stockChanges, c)
		}
		return nil
	})
}

// ChangesByRecorder implements stock.Repository.
func (s *Store) ChangesByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockChange, error) {
	var out []entity.StockChange
	err := s.view(ctx, func(st *state) error {
		for _, c := range st.stockChanges {
			if c.RecorderID == recorderID {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

// Quantity implements stock.Repository.
func (s *Store) Quantity(ctx context.Context, stockArticleID id.ID) (int, error) {
	var out int
	err := s.view(ctx, func(st *state) error {
		out = st.stock[stockArticleID]
		return nil
	})
	return out, err
}

// RecomputeStats implements subgroups.Repository.
func (s *Store) RecomputeStats(ctx context.Context, subgroupID id.ID) error {
	return s.view(ctx, func(st *state) error {
		stats := subgroups.Stats{SubgroupID: subgroupID}
		for _, o := range st.orders {
			if o.State == orders.StateOpened {
				continue
			}
			if _, ok := o.SubgroupOrder(subgroupID); !ok {
				continue
			}
			stats.OrderCount++
			if o.Ends != nil && (stats.LastOrderAt == nil || o.Ends.After(*stats.LastOrderAt)) {
				ends := *o.Ends
				stats.LastOrderAt = &ends
			}
		}
		st.stats[subgroupID] = stats
		return nil
	})
}

// GetStats implements subgroups.Repository.
func (s *Store) GetStats(ctx context.Context, subgroupID id.ID) (subgroups.Stats, error) {
	var out subgroups.Stats
	err := s.view(ctx, func(st *state) error {
		stats, ok := st.stats[subgroupID]
		if !ok {
			stats = subgroups.Stats{SubgroupID: subgroupID}
		}
		out = stats
		return nil
	})
	return out, err
}
