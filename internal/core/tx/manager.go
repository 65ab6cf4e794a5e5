// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; storage packages implement them.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within one atomic unit of work.
	// If fn returns an error, every write made through ctx is rolled back.
	// If fn succeeds, the unit is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Func adapts a plain function to Manager. Useful in tests that need no atomicity.
type Func func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTransaction implements Manager.
func (f Func) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}
