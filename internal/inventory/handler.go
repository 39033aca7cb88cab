package inventory

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/platform/httpx"
	"github.com/odyssey-erp/salon-inventory/internal/platform/money"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
	money   *money.Formatter
	auth    auth.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, formatter *money.Formatter, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, money: formatter, auth: authz}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAny(auth.ScopeInventoryView, auth.ScopeInventoryEdit))
		r.Get("/stock-movements", h.handleListMovements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAll(auth.ScopeInventoryEdit))
		r.Post("/stock-adjustment", h.handleStockAdjustment)
	})
}

type stockAdjustmentRequest struct {
	ProductID   int64            `json:"product_id" validate:"required,gt=0"`
	Type        MovementType     `json:"type" validate:"required"`
	Quantity    *decimal.Decimal `json:"quantity" validate:"required"`
	UnitCost    *int64           `json:"unit_cost" validate:"omitempty,gte=0"`
	Reason      string           `json:"reason" validate:"max=255"`
	Notes       string           `json:"notes" validate:"max=2000"`
	BatchNumber string           `json:"batch_number" validate:"max=100"`
	ExpiryDate  string           `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

// MovementResponse is the wire shape of a movement.
type MovementResponse struct {
	Movement
	UnitCostDisplay  string `json:"unit_cost_display,omitempty"`
	TotalCostDisplay string `json:"total_cost_display,omitempty"`
}

// NewMovementResponse decorates m with display amounts.
func NewMovementResponse(m Movement, f *money.Formatter) MovementResponse {
	resp := MovementResponse{Movement: m}
	if m.UnitCost != nil {
		resp.UnitCostDisplay = f.Format(*m.UnitCost)
	}
	if m.TotalCost != nil {
		resp.TotalCostDisplay = f.Format(*m.TotalCost)
	}
	return resp
}

func (h *Handler) handleStockAdjustment(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())
	var req stockAdjustmentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := MovementInput{
		BusinessID:  id.BusinessID,
		ProductID:   req.ProductID,
		Type:        req.Type,
		Quantity:    *req.Quantity,
		UnitCost:    req.UnitCost,
		Reason:      req.Reason,
		Notes:       req.Notes,
		BatchNumber: req.BatchNumber,
		ActorID:     id.UserID,
	}
	if req.ExpiryDate != "" {
		expiry, _ := time.Parse("2006-01-02", req.ExpiryDate)
		input.ExpiryDate = &expiry
	}
	result, err := h.service.ApplyMovement(r.Context(), input)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "inventory apply movement", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"movement":       NewMovementResponse(result.Movement, h.money),
		"previous_stock": result.PreviousStock,
		"new_stock":      result.NewStock,
	})
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())
	filter := MovementFilter{
		BusinessID: id.BusinessID,
		Type:       MovementType(r.URL.Query().Get("type")),
		RefModule:  r.URL.Query().Get("ref_module"),
	}
	var err error
	if filter.ProductID, err = httpx.QueryInt64(r, "product_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.RefID, err = httpx.QueryInt64(r, "ref_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.From, err = httpx.QueryDate(r, "from", false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "to", true); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Limit, filter.Offset = httpx.Page(r, 50, 500)

	movements, total, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "inventory list movements", err)
		return
	}
	items := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		items = append(items, NewMovementResponse(m, h.money))
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, total, filter.Limit, filter.Offset))
}
