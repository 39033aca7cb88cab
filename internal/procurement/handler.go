package procurement

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/platform/httpx"
	"github.com/odyssey-erp/salon-inventory/internal/platform/money"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Handler manages purchase order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	money   *money.Formatter
	auth    auth.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, formatter *money.Formatter, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, money: formatter, auth: authz}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAny(auth.ScopeInventoryView, auth.ScopeInventoryEdit))
		r.Get("/purchase-orders", h.handleList)
		r.Get("/purchase-orders/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAll(auth.ScopeInventoryEdit))
		r.Post("/purchase-orders", h.handleCreate)
		r.Put("/purchase-orders/{id}/status", h.handleStatus)
		r.Post("/purchase-orders/{id}/receive", h.handleReceive)
	})
}

// ItemResponse is the wire shape of an order item.
type ItemResponse struct {
	Item
	UnitCostDisplay  string `json:"unit_cost_display"`
	LineTotalDisplay string `json:"line_total_display"`
}

// OrderResponse is the wire shape of a purchase order.
type OrderResponse struct {
	PurchaseOrder
	Items                 []ItemResponse               `json:"items"`
	SubtotalDisplay       string                       `json:"subtotal_display"`
	TaxAmountDisplay      string                       `json:"tax_amount_display"`
	ShippingCostDisplay   string                       `json:"shipping_cost_display"`
	DiscountAmountDisplay string                       `json:"discount_amount_display"`
	TotalDisplay          string                       `json:"total_display"`
	Receipts              []inventory.MovementResponse `json:"receipts,omitempty"`
}

// NewOrderResponse decorates po with display amounts.
func NewOrderResponse(po PurchaseOrder, f *money.Formatter) OrderResponse {
	resp := OrderResponse{
		PurchaseOrder:         po,
		Items:                 make([]ItemResponse, 0, len(po.Items)),
		SubtotalDisplay:       f.Format(po.Subtotal),
		TaxAmountDisplay:      f.Format(po.TaxAmount),
		ShippingCostDisplay:   f.Format(po.ShippingCost),
		DiscountAmountDisplay: f.Format(po.DiscountAmount),
		TotalDisplay:          f.Format(po.Total),
	}
	for _, item := range po.Items {
		resp.Items = append(resp.Items, ItemResponse{
			Item:             item,
			UnitCostDisplay:  f.Format(item.UnitCost),
			LineTotalDisplay: f.Format(item.LineTotal),
		})
	}
	return resp
}

type createRequest struct {
	VendorID             int64         `json:"vendor_id" validate:"required,gt=0"`
	Items                []lineRequest `json:"items" validate:"required,min=1,dive"`
	TaxAmount            int64         `json:"tax_amount" validate:"gte=0"`
	ShippingCost         int64         `json:"shipping_cost" validate:"gte=0"`
	DiscountAmount       int64         `json:"discount_amount" validate:"gte=0"`
	Total                *int64        `json:"total" validate:"omitempty,gte=0"`
	Notes                string        `json:"notes" validate:"max=2000"`
	ExpectedDeliveryDate string        `json:"expected_delivery_date" validate:"omitempty,datetime=2006-01-02"`
}

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  *int64          `json:"unit_cost" validate:"omitempty,gte=0"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required,oneof=draft sent confirmed received cancelled"`
}

type receiveRequest struct {
	Items []receiveLineRequest `json:"items" validate:"required,min=1,dive"`
}

type receiveLineRequest struct {
	ItemID           int64           `json:"item_id" validate:"required,gt=0"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	BatchNumber      string          `json:"batch_number" validate:"max=100"`
	ExpiryDate       string          `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	filter := Filter{BusinessID: ident.BusinessID, Status: Status(r.URL.Query().Get("status"))}
	var err error
	if filter.VendorID, err = httpx.QueryInt64(r, "vendor_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Limit, filter.Offset = httpx.Page(r, 20, 200)
	orders, total, err := h.service.ListPurchaseOrders(r.Context(), filter)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "list purchase orders", err)
		return
	}
	items := make([]OrderResponse, 0, len(orders))
	for _, po := range orders {
		items = append(items, NewOrderResponse(po, h.money))
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, total, filter.Limit, filter.Offset))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.GetPurchaseOrder(r.Context(), ident.BusinessID, id)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "get purchase order", err)
		return
	}
	receipts, err := h.service.ListReceipts(r.Context(), ident.BusinessID, id)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "list purchase order receipts", err)
		return
	}
	resp := NewOrderResponse(po, h.money)
	for _, m := range receipts {
		resp.Receipts = append(resp.Receipts, inventory.NewMovementResponse(m, h.money))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateInput{
		VendorID:       req.VendorID,
		TaxAmount:      req.TaxAmount,
		ShippingCost:   req.ShippingCost,
		DiscountAmount: req.DiscountAmount,
		Total:          req.Total,
		Notes:          req.Notes,
	}
	if req.ExpectedDeliveryDate != "" {
		d, _ := time.Parse("2006-01-02", req.ExpectedDeliveryDate)
		input.ExpectedDeliveryDate = &d
	}
	for _, line := range req.Items {
		input.Lines = append(input.Lines, LineInput{ProductID: line.ProductID, Quantity: line.Quantity, UnitCost: line.UnitCost})
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), ident.BusinessID, ident.UserID, input)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "create purchase order", err)
		return
	}
	h.logger.Info("purchase order created", slog.Int64("business_id", ident.BusinessID), slog.String("number", po.Number))
	httpx.JSON(w, http.StatusCreated, NewOrderResponse(po, h.money))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.ChangeStatus(r.Context(), ident.BusinessID, ident.UserID, id, req.Status)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "change purchase order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOrderResponse(po, h.money))
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receiveRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines := make([]ReceiveLine, 0, len(req.Items))
	for _, item := range req.Items {
		line := ReceiveLine{ItemID: item.ItemID, Quantity: item.ReceivedQuantity, BatchNumber: item.BatchNumber}
		if item.ExpiryDate != "" {
			d, _ := time.Parse("2006-01-02", item.ExpiryDate)
			line.ExpiryDate = &d
		}
		lines = append(lines, line)
	}
	receipt, err := h.service.ReceiveItems(r.Context(), ident.BusinessID, ident.UserID, id, lines, r.Header.Get("Idempotency-Key"))
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "receive purchase order", err)
		return
	}
	h.logger.Info("purchase order received",
		slog.Int64("business_id", ident.BusinessID),
		slog.Int64("purchase_order_id", id),
		slog.Int("lines", len(lines)),
		slog.String("status", string(receipt.Order.Status)))

	resp := NewOrderResponse(receipt.Order, h.money)
	movements := make([]inventory.MovementResponse, 0, len(receipt.Movements))
	for _, m := range receipt.Movements {
		movements = append(movements, inventory.NewMovementResponse(m, h.money))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"purchase_order": resp,
		"movements":      movements,
	})
}
