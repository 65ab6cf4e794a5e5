// Package orders provides the Order aggregate: a time-boxed purchasing round in
// which subgroups request articles from a supplier or from shared stock, and the
// lifecycle that closes and settles it.
package orders

import (
	"context"
	"slices"
	"time"

	"foodcoop/internal/core/entity"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
)

// EndAction tells the background scheduler what to do when ends has passed.
type EndAction string

const (
	EndActionNone      EndAction = "none"
	EndActionAutoClose EndAction = "auto_close"
)

// Order is the root aggregate. It exclusively owns its lines and subgroup orders.
type Order struct {
	entity.BaseDocument

	Name string `db:"name" json:"name"`

	// SupplierID is nil for orders drawn from shared stock.
	SupplierID id.ID `db:"supplier_id" json:"supplierId"`

	State     State      `db:"state" json:"state"`
	Starts    time.Time  `db:"starts" json:"starts"`
	Ends      *time.Time `db:"ends" json:"ends,omitempty"`
	EndAction EndAction  `db:"end_action" json:"endAction"`

	// FoodcoopResult is set by Finish when an invoice exists.
	FoodcoopResult *types.Money `db:"foodcoop_result" json:"foodcoopResult,omitempty"`

	// SelectedArticleIDs is what the order offers. Lines follow it through reconciliation.
	SelectedArticleIDs []id.ID `db:"selected_article_ids" json:"selectedArticleIds"`

	Lines          []OrderLine     `db:"-" json:"lines"`
	SubgroupOrders []SubgroupOrder `db:"-" json:"subgroupOrders"`
}

// OrderLine is one article of the order.
type OrderLine struct {
	ID        id.ID `json:"id"`
	ArticleID id.ID `json:"articleId"`

	// Price is frozen at Close and never replaced afterwards.
	Price *PriceSnapshot `json:"price,omitempty"`

	// UnitsOrdered is the number of supplier packages settled at Close, or pieces
	// for stock orders.
	UnitsOrdered int `json:"unitsOrdered"`

	// UnitsToOrder is the settled piece count: planned at Close,
	// reconciled against results at Finish for stock orders.
	UnitsToOrder int `json:"unitsToOrder"`
}

// SubgroupOrder is one subgroup's participation in the order.
type SubgroupOrder struct {
	ID         id.ID               `json:"id"`
	SubgroupID id.ID               `json:"subgroupId"`
	Lines      []SubgroupOrderLine `json:"lines"`

	// Price is charged to the subgroup (foodcoop prices);
	// PriceWithoutMarkup values the same results at gross prices.
	Price              types.Money `json:"price"`
	PriceWithoutMarkup types.Money `json:"priceWithoutMarkup"`

	UpdatedBy string    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubgroupOrderLine is a subgroup's request for one article.
type SubgroupOrderLine struct {
	ID        id.ID `json:"id"`
	ArticleID id.ID `json:"articleId"`
	Quantity  int   `json:"quantity"`
	Tolerance int   `json:"tolerance"`

	// Result is unset until Close.
	Result *int `json:"result,omitempty"`

	// UnitPrice is the foodcoop unit price the result was settled at.
	UnitPrice *types.Money `json:"unitPrice,omitempty"`

	RequestedAt time.Time `json:"requestedAt"`
}

// HasRequest reports whether the line still asks for anything.
func (l SubgroupOrderLine) HasRequest() bool {
	return l.Quantity != 0 || l.Tolerance != 0
}

// Invoice is the supplier's bill for an order.
type Invoice struct {
	ID        id.ID       `db:"id" json:"id"`
	OrderID   id.ID       `db:"order_id" json:"orderId"`
	NetAmount types.Money `db:"net_amount" json:"netAmount"`
	CreatedBy string      `db:"created_by" json:"createdBy"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

// Comment is an entry of the order's comment log.
type Comment struct {
	ID        id.ID     `db:"id" json:"id"`
	OrderID   id.ID     `db:"order_id" json:"orderId"`
	UserID    string    `db:"user_id" json:"userId"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewOrder creates an Opened order with one line per selected article.
func NewOrder(name string, supplierID id.ID, articleIDs []id.ID, starts time.Time, ends *time.Time, actor string, now time.Time) *Order {
	o := &Order{
		BaseDocument: entity.NewBaseDocument(actor, now),
		Name:         name,
		SupplierID:   supplierID,
		State:        StateOpened,
		Starts:       starts.UTC(),
		EndAction:    EndActionNone,
	}
	if ends != nil {
		e := ends.UTC()
		o.Ends = &e
	}
	o.SelectedArticleIDs = dedupe(articleIDs)
	for _, a := range o.SelectedArticleIDs {
		o.Lines = append(o.Lines, OrderLine{ID: id.New(), ArticleID: a})
	}
	return o
}

// IsStockOrder reports whether the order draws from shared stock.
func (o *Order) IsStockOrder() bool {
	return id.IsNil(o.SupplierID)
}

// Validate implements entity.Validatable.
func (o *Order) Validate(_ context.Context) error {
	if err := validateWindow(o.Starts, o.Ends); err != nil {
		return err
	}
	if o.State == StateOpened {
		return validateSelection(o.SelectedArticleIDs)
	}
	return nil
}

// Line returns the order line for an article.
func (o *Order) Line(articleID id.ID) (*OrderLine, bool) {
	for i := range o.Lines {
		if o.Lines[i].ArticleID == articleID {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// SubgroupOrder returns the participation of a subgroup.
func (o *Order) SubgroupOrder(subgroupID id.ID) (*SubgroupOrder, bool) {
	for i := range o.SubgroupOrders {
		if o.SubgroupOrders[i].SubgroupID == subgroupID {
			return &o.SubgroupOrders[i], true
		}
	}
	return nil, false
}

// requestTotals sums firm quantity and tolerance over all subgroups for an article.
func (o *Order) requestTotals(articleID id.ID) (quantity, tolerance int) {
	for _, so := range o.SubgroupOrders {
		for _, l := range so.Lines {
			if l.ArticleID == articleID {
				quantity += l.Quantity
				tolerance += l.Tolerance
			}
		}
	}
	return quantity, tolerance
}

// Clone returns a deep copy; transitions work on clones so a failed plan
// never leaks into the caller's aggregate.
func (o *Order) Clone() *Order {
	c := *o
	if o.Ends != nil {
		e := *o.Ends
		c.Ends = &e
	}
	if o.FoodcoopResult != nil {
		r := *o.FoodcoopResult
		c.FoodcoopResult = &r
	}
	c.SelectedArticleIDs = slices.Clone(o.SelectedArticleIDs)
	c.Lines = slices.Clone(o.Lines)
	c.SubgroupOrders = make([]SubgroupOrder, len(o.SubgroupOrders))
	for i, so := range o.SubgroupOrders {
		so.Lines = slices.Clone(so.Lines)
		for j, l := range so.Lines {
			if l.Result != nil {
				r := *l.Result
				so.Lines[j].Result = &r
			}
			if l.UnitPrice != nil {
				p := *l.UnitPrice
				so.Lines[j].UnitPrice = &p
			}
		}
		c.SubgroupOrders[i] = so
	}
	if o.SubgroupOrders == nil {
		c.SubgroupOrders = nil
	}
	return &c
}

func dedupe(ids []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if id.IsNil(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
