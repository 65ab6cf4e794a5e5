package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/domain/orders"
)

// --- Request DTOs ---

// CreateOrderRequest opens a new order. An empty supplierId creates a stock order.
type CreateOrderRequest struct {
	Name       string     `json:"name" binding:"required"`
	SupplierID string     `json:"supplierId,omitempty"`
	ArticleIDs []string   `json:"articleIds"`
	Starts     *time.Time `json:"starts,omitempty"`
	Ends       *time.Time `json:"ends,omitempty"`
	EndAction  string     `json:"endAction,omitempty"`
}

// ToInput converts the request to the service input.
func (r *CreateOrderRequest) ToInput() (orders.CreateInput, error) {
	in := orders.CreateInput{
		Name:      r.Name,
		Starts:    r.Starts,
		Ends:      r.Ends,
		EndAction: orders.EndAction(r.EndAction),
	}
	if r.SupplierID != "" {
		supplierID, err := parseID("supplierId", r.SupplierID)
		if err != nil {
			return in, err
		}
		in.SupplierID = supplierID
	}
	articleIDs, err := parseIDs("articleIds", r.ArticleIDs)
	if err != nil {
		return in, err
	}
	in.ArticleIDs = articleIDs

	switch in.EndAction {
	case "":
		in.EndAction = orders.EndActionNone
	case orders.EndActionNone, orders.EndActionAutoClose:
	default:
		return in, apperror.NewValidation("unknown end action").
			WithDetail("field", "endAction").
			WithDetail("value", r.EndAction)
	}
	return in, nil
}

// UpdateSelectionRequest replaces the article selection of an Opened order.
type UpdateSelectionRequest struct {
	ArticleIDs     []string `json:"articleIds"`
	IgnoreWarnings bool     `json:"ignoreWarnings"`
}

// ParseArticleIDs validates the article ids.
func (r *UpdateSelectionRequest) ParseArticleIDs() ([]id.ID, error) {
	return parseIDs("articleIds", r.ArticleIDs)
}

// PlaceRequestRequest sets a subgroup's request for one article.
type PlaceRequestRequest struct {
	SubgroupID string `json:"subgroupId" binding:"required"`
	ArticleID  string `json:"articleId" binding:"required"`
	Quantity   int    `json:"quantity" binding:"gte=0"`
	Tolerance  int    `json:"tolerance" binding:"gte=0"`
}

// ToInput converts the request to the service input.
func (r *PlaceRequestRequest) ToInput() (orders.RequestInput, error) {
	subgroupID, err := parseID("subgroupId", r.SubgroupID)
	if err != nil {
		return orders.RequestInput{}, err
	}
	articleID, err := parseID("articleId", r.ArticleID)
	if err != nil {
		return orders.RequestInput{}, err
	}
	return orders.RequestInput{
		SubgroupID: subgroupID,
		ArticleID:  articleID,
		Quantity:   r.Quantity,
		Tolerance:  r.Tolerance,
	}, nil
}

// CloseOrderRequest is the optional body of the close route.
type CloseOrderRequest struct {
	IgnoreWarnings bool `json:"ignoreWarnings"`
}

// InvoiceRequest attaches the supplier invoice.
type InvoiceRequest struct {
	NetAmount *decimal.Decimal `json:"netAmount" binding:"required"`
}

// --- Response DTOs ---

// OrderResponse renders an order with its lines and subgroup orders.
type OrderResponse struct {
	ID                 string                 `json:"id"`
	Version            int                    `json:"version"`
	Name               string                 `json:"name"`
	SupplierID         *string                `json:"supplierId"`
	State              string                 `json:"state"`
	Starts             time.Time              `json:"starts"`
	Ends               *time.Time             `json:"ends,omitempty"`
	EndAction          string                 `json:"endAction"`
	FoodcoopResult     *string                `json:"foodcoopResult,omitempty"`
	SelectedArticleIDs []string               `json:"selectedArticleIds"`
	Lines              []orders.OrderLine     `json:"lines"`
	SubgroupOrders     []orders.SubgroupOrder `json:"subgroupOrders"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
	CreatedBy          string                 `json:"createdBy,omitempty"`
	UpdatedBy          string                 `json:"updatedBy,omitempty"`
}

// FromOrder creates the response DTO.
func FromOrder(o *orders.Order) OrderResponse {
	resp := OrderResponse{
		ID:                 o.ID.String(),
		Version:            o.Version,
		Name:               o.Name,
		State:              string(o.State),
		Starts:             o.Starts,
		Ends:               o.Ends,
		EndAction:          string(o.EndAction),
		SelectedArticleIDs: id.Strings(o.SelectedArticleIDs),
		Lines:              o.Lines,
		SubgroupOrders:     o.SubgroupOrders,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		CreatedBy:          o.CreatedBy,
		UpdatedBy:          o.UpdatedBy,
	}
	if !o.IsStockOrder() {
		supplierID := o.SupplierID.String()
		resp.SupplierID = &supplierID
	}
	if o.FoodcoopResult != nil {
		result := o.FoodcoopResult.StringFixed(2)
		resp.FoodcoopResult = &result
	}
	if resp.Lines == nil {
		resp.Lines = []orders.OrderLine{}
	}
	if resp.SubgroupOrders == nil {
		resp.SubgroupOrders = []orders.SubgroupOrder{}
	}
	return resp
}

// OrderSummaryResponse is an order without lines, used in lists.
type OrderSummaryResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	State      string     `json:"state"`
	Starts     time.Time  `json:"starts"`
	Ends       *time.Time `json:"ends,omitempty"`
	EndAction  string     `json:"endAction"`
	Subgroups  int        `json:"subgroups"`
	StockOrder bool       `json:"stockOrder"`
}

// FromOrderSummary creates the list item DTO.
func FromOrderSummary(o *orders.Order) OrderSummaryResponse {
	return OrderSummaryResponse{
		ID:         o.ID.String(),
		Name:       o.Name,
		State:      string(o.State),
		Starts:     o.Starts,
		Ends:       o.Ends,
		EndAction:  string(o.EndAction),
		Subgroups:  len(o.SubgroupOrders),
		StockOrder: o.IsStockOrder(),
	}
}

// InvoiceResponse renders an invoice.
type InvoiceResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	NetAmount string    `json:"netAmount"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromInvoice creates the response DTO.
func FromInvoice(inv *orders.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:        inv.ID.String(),
		OrderID:   inv.OrderID.String(),
		NetAmount: inv.NetAmount.StringFixed(2),
		CreatedBy: inv.CreatedBy,
		CreatedAt: inv.CreatedAt,
	}
}

// CommentResponse renders a comment log entry.
type CommentResponse struct {
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromComments creates the response DTOs.
func FromComments(comments []orders.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentResponse{UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return out
}
