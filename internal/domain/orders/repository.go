package orders

import (
	"context"
	"time"

	"foodcoop/internal/core/id"
	"foodcoop/internal/domain"
)

// Repository stores orders together with their lines and subgroup orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)

	// GetForUpdate loads the order and holds it exclusively until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)

	// Update stores the order with optimistic locking on Version and
	// advances Version on success.
	Update(ctx context.Context, o *Order) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)

	// ListDueForAutoClose returns Opened orders with EndActionAutoClose whose ends passed.
	ListDueForAutoClose(ctx context.Context, now time.Time) ([]id.ID, error)

	// GetInvoice returns nil without error when the order has no invoice.
	GetInvoice(ctx context.Context, orderID id.ID) (*Invoice, error)
	SaveInvoice(ctx context.Context, invoice *Invoice) error

	AddComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, orderID id.ID) ([]Comment, error)
}

// ListFilter for filtering orders.
type ListFilter struct {
	domain.ListFilter

	State      *State
	SupplierID *id.ID
}
