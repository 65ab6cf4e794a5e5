package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/domain"
	"foodcoop/internal/domain/orders"
)

const ordersEntity = "order"

// Create implements orders.Repository.
func (s *Store) Create(ctx context.Context, o *orders.Order) error {
	return s.view(ctx, func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return apperror.NewConflict("order already exists").WithDetail("id", o.ID.String())
		}
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

// GetByID implements orders.Repository.
func (s *Store) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	var out *orders.Order
	err := s.view(ctx, func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return apperror.NewNotFound(ordersEntity, orderID.String())
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

// GetForUpdate implements orders.Repository. Inside a transaction the
// store-wide lock already makes the caller exclusive.
func (s *Store) GetForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return s.GetByID(ctx, orderID)
}

// Update implements orders.Repository.
func (s *Store) Update(ctx context.Context, o *orders.Order) error {
	return s.view(ctx, func(st *state) error {
		stored, ok := st.orders[o.ID]
		if !ok {
			return apperror.NewNotFound(ordersEntity, o.ID.String())
		}
		if stored.Version != o.Version {
			return apperror.NewConcurrentModification(ordersEntity, o.ID.String())
		}
		o.Version++
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

// List implements orders.Repository.
func (s *Store) List(ctx context.Context, filter orders.ListFilter) (domain.ListResult[*orders.Order], error) {
	result := domain.ListResult[*orders.Order]{Limit: filter.Limit, Offset: filter.Offset}

	err := s.view(ctx, func(st *state) error {
		var items []*orders.Order
		for _, o := range st.orders {
			if filter.State != nil && o.State != *filter.State {
				continue
			}
			if filter.SupplierID != nil && o.SupplierID != *filter.SupplierID {
				continue
			}
			items = append(items, o.Clone())
		}

		desc := strings.HasPrefix(filter.OrderBy, "-") || filter.OrderBy == ""
		slices.SortFunc(items, func(a, b *orders.Order) int {
			c := a.Starts.Compare(b.Starts)
			if c == 0 {
				c = id.Compare(a.ID, b.ID)
			}
			if desc {
				return -c
			}
			return c
		})

		result.TotalCount = int64(len(items))
		start := min(filter.Offset, len(items))
		end := len(items)
		if filter.Limit > 0 {
			end = min(start+filter.Limit, len(items))
		}
		result.Items = items[start:end]
		return nil
	})
	return result, err
}

// ListDueForAutoClose implements orders.Repository.
func (s *Store) ListDueForAutoClose(ctx context.Context, now time.Time) ([]id.ID, error) {
	var due []id.ID
	err := s.view(ctx, func(st *state) error {
		for _, o := range st.orders {
			if o.State == orders.StateOpened && o.EndAction == orders.EndActionAutoClose &&
				o.Ends != nil && !o.Ends.After(now) {
				due = append(due, o.ID)
			}
		}
		return nil
	})
	slices.SortFunc(due, id.Compare)
	return due, err
}

// GetInvoice implements orders.Repository.
func (s *Store) GetInvoice(ctx context.Context, orderID id.ID) (*orders.Invoice, error) {
	var out *orders.Invoice
	err := s.view(ctx, func(st *state) error {
		if inv, ok := st.invoices[orderID]; ok {
			out = &inv
		}
		return nil
	})
	return out, err
}

// SaveInvoice implements orders.Repository.
func (s *Store) SaveInvoice(ctx context.Context, invoice *orders.Invoice) error {
	return s.view(ctx, func(st *state) error {
		if _, ok := st.orders[invoice.OrderID]; !ok {
			return apperror.NewNotFound(ordersEntity, invoice.OrderID.String())
		}
		st.invoices[invoice.OrderID] = *invoice
		return nil
	})
}

// AddComment implements orders.Repository.
func (s *Store) AddComment(ctx context.Context, c *orders.Comment) error {
	return s.view(ctx, func(st *state) error {
		st.comments[c.OrderID] = append(st.comments[c.OrderID], *c)
		return nil
	})
}

// ListComments implements orders.Repository.
func (s *Store) ListComments(ctx context.Context, orderID id.ID) ([]orders.Comment, error) {
	var out []orders.Comment
	err := s.view(ctx, func(st *state) error {
		out = slices.Clone(st.comments[orderID])
		return nil
	})
	return out, err
}

// CurrentPrice implements orders.PriceSnapshotStore.
func (s *Store) CurrentPrice(ctx context.Context, articleID id.ID, _ time.Time) (orders.ArticlePrice, error) {
	var out orders.ArticlePrice
	err := s.view(ctx, func(st *state) error {
		p, ok := st.prices[articleID]
		if !ok {
			return apperror.NewNotFound("article price", articleID.String())
		}
		out = p
		return nil
	})
	return out, err
}

// RecordTransition implements orders.TransitionAuditor.
func (s *Store) RecordTransition(ctx context.Context, out *orders.Outcome) error {
	return s.view(ctx, func(st *state) error {
		st.audit = append(st.audit, AuditEntry{
			OrderID:    out.Order.ID,
			Transition: out.Transition,
			From:       out.From,
			To:         out.To,
			Actor:      out.Actor,
			Postings:   len(out.Postings),
		})
		return nil
	})
}
