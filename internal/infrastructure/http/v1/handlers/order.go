package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/infrastructure/http/v1/dto"
)

// OrderService is the part of orders.Service the API exposes.
type OrderService interface {
	Create(ctx context.Context, in orders.CreateInput, actor string) (*orders.Order, error)
	Get(ctx context.Context, orderID id.ID) (*orders.Order, error)
	List(ctx context.Context, filter orders.ListFilter) (domain.ListResult[*orders.Order], error)
	UpdateSelection(ctx context.Context, orderID id.ID, articleIDs []id.ID, override bool, actor string) (*orders.Order, error)
	PlaceRequest(ctx context.Context, orderID id.ID, in orders.RequestInput, actor string) (*orders.Order, error)
	Close(ctx context.Context, orderID id.ID, actor string, opts ...orders.CloseOption) (*orders.Order, error)
	Finish(ctx context.Context, orderID id.ID, actor string) (*orders.Order, error)
	FinishDirect(ctx context.Context, orderID id.ID, actor string) (*orders.Order, error)
	AttachInvoice(ctx context.Context, orderID id.ID, netAmount types.Money, actor string) (*orders.Invoice, error)
	Sum(ctx context.Context, orderID id.ID, kind orders.SumKind) (types.Money, error)
	Profit(ctx context.Context, orderID id.ID, excludeMarkup bool) (types.Money, error)
	Comments(ctx context.Context, orderID id.ID) ([]orders.Comment, error)
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	*BaseHandler
	service OrderService
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(base *BaseHandler, service OrderService) *OrderHandler {
	return &OrderHandler{BaseHandler: base, service: service}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	o, err := h.service.Create(c.Request.Context(), in, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromOrder(o))
}

// Get handles GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	o, err := h.service.Get(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// List handles GET /orders.
func (h *OrderHandler) List(c *gin.Context) {
	filter := orders.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Limit = h.ParseIntQuery(c, "limit", filter.Limit)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", filter.OrderBy)

	if state := c.Query("state"); state != "" {
		s := orders.State(state)
		switch s {
		case orders.StateOpened, orders.StateClosed, orders.StateFinished:
			filter.State = &s
		default:
			h.Error(c, apperror.NewValidation("unknown state").WithDetail("field", "state"))
			return
		}
	}
	if supplierID := c.Query("supplierId"); supplierID != "" {
		parsed, err := id.Parse(supplierID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "supplierId"))
			return
		}
		filter.SupplierID = &parsed
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.OrderSummaryResponse, 0, len(result.Items))
	for _, o := range result.Items {
		items = append(items, dto.FromOrderSummary(o))
	}
	h.OK(c, dto.ListResponse[dto.OrderSummaryResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// UpdateSelection handles PUT /orders/:id/articles.
func (h *OrderHandler) UpdateSelection(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateSelectionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	articleIDs, err := req.ParseArticleIDs()
	if err != nil {
		h.Error(c, err)
		return
	}

	o, err := h.service.UpdateSelection(c.Request.Context(), orderID, articleIDs, req.IgnoreWarnings, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// PlaceRequest handles PUT /orders/:id/requests.
func (h *OrderHandler) PlaceRequest(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.PlaceRequestRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	o, err := h.service.PlaceRequest(c.Request.Context(), orderID, in, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// Close handles POST /orders/:id/close.
func (h *OrderHandler) Close(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseOrderRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	var opts []orders.CloseOption
	if req.IgnoreWarnings {
		opts = append(opts, orders.WithOverride())
	}
	o, err := h.service.Close(c.Request.Context(), orderID, h.GetUserID(c), opts...)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// Finish handles POST /orders/:id/finish.
func (h *OrderHandler) Finish(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	o, err := h.service.Finish(c.Request.Context(), orderID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// FinishDirect handles POST /orders/:id/finish-direct.
func (h *OrderHandler) FinishDirect(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	o, err := h.service.FinishDirect(c.Request.Context(), orderID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// AttachInvoice handles PUT /orders/:id/invoice.
func (h *OrderHandler) AttachInvoice(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.InvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.AttachInvoice(c.Request.Context(), orderID, *req.NetAmount, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoice(inv))
}

// Sum handles GET /orders/:id/sums/:kind.
func (h *OrderHandler) Sum(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	kind, err := orders.ParseSumKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}

	amount, err := h.service.Sum(c.Request.Context(), orderID, kind)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.MoneyResponse{OrderID: orderID.String(), Kind: string(kind), Amount: amount.StringFixed(2)})
}

// Profit handles GET /orders/:id/profit.
func (h *OrderHandler) Profit(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	excludeMarkup := false
	if v := c.Query("excludeMarkup"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid boolean").WithDetail("field", "excludeMarkup"))
			return
		}
		excludeMarkup = parsed
	}

	profit, err := h.service.Profit(c.Request.Context(), orderID, excludeMarkup)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.MoneyResponse{OrderID: orderID.String(), Amount: profit.StringFixed(2)})
}

// Comments handles GET /orders/:id/comments.
func (h *OrderHandler) Comments(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	comments, err := h.service.Comments(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromComments(comments)})
}
