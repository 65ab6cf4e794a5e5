// Package memory provides an in-memory implementation of every storage port.
// It backs the service tests and the server's memory mode.
//
// A transaction holds the store-wide lock and works on the live state; the state
// is cloned when the transaction begins and restored if it fails. Writes outside
// a transaction are applied immediately under the same lock.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/domain/subgroups"
)

// AuditEntry is a recorded transition.
type AuditEntry struct {
	OrderID    id.ID
	Transition orders.Transition
	From, To   orders.State
	Actor      string
	Postings   int
}

type state struct {
	orders       map[id.ID]*orders.Order
	invoices     map[id.ID]orders.Invoice
	comments     map[id.ID][]orders.Comment
	prices       map[id.ID]orders.ArticlePrice
	balances     map[id.ID]types.Money
	transactions []entity.FinancialTransaction
	stock        map[id.ID]int
	stockChanges []entity.StockChange
	stats        map[id.ID]subgroups.Stats
	audit        []AuditEntry
}

func newState() *state {
	return &state{
		orders:   make(map[id.ID]*orders.Order),
		invoices: make(map[id.ID]orders.Invoice),
		comments: make(map[id.ID][]orders.Comment),
		prices:   make(map[id.ID]orders.ArticlePrice),
		balances: make(map[id.ID]types.Money),
		stock:    make(map[id.ID]int),
		stats:    make(map[id.ID]subgroups.Stats),
	}
}

func (st *state) clone() *state {
	c := &state{
		orders:       make(map[id.ID]*orders.Order, len(st.orders)),
		invoices:     maps.Clone(st.invoices),
		comments:     make(map[id.ID][]orders.Comment, len(st.comments)),
		prices:       maps.Clone(st.prices),
		balances:     maps.Clone(st.balances),
		transactions: slices.Clone(st.transactions),
		stock:        maps.Clone(st.stock),
		stockChanges: slices.Clone(st.stockChanges),
		stats:        maps.Clone(st.stats),
		audit:        slices.Clone(st.audit),
	}
	for k, o := range st.orders {
		c.orders[k] = o.Clone()
	}
	for k, cs := range st.comments {
		c.comments[k] = slices.Clone(cs)
	}
	return c
}

// Store is the in-memory database.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

// view runs fn against the state, taking the lock unless ctx already holds it.
func (s *Store) view(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// --- seeding ---

// SetPrice makes p the current price of its article.
func (s *Store) SetPrice(p orders.ArticlePrice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.prices[p.ArticleID] = p
}

// RegisterSubgroup opens an account for a subgroup.
func (s *Store) RegisterSubgroup(subgroupID id.ID, balance types.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.balances[subgroupID] = balance
}

// SetStock sets the quantity of a stock article.
func (s *Store) SetStock(stockArticleID id.ID, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stock[stockArticleID] = quantity
}

// AuditLog returns the recorded transitions.
func (s *Store) AuditLog() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.audit)
}
