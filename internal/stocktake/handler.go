package stocktake

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/platform/httpx"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Handler exposes stocktake endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authz}
}

// MountRoutes registers stocktake routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAny(auth.ScopeInventoryView, auth.ScopeInventoryEdit))
		r.Get("/stocktakes", h.handleList)
		r.Get("/stocktakes/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAll(auth.ScopeInventoryEdit))
		r.Post("/stocktake", h.handleReconcile)
	})
}

type reconcileRequest struct {
	Notes string         `json:"notes" validate:"max=2000"`
	Items []countRequest `json:"items" validate:"required,min=1,dive"`
}

type countRequest struct {
	ProductID       int64            `json:"product_id" validate:"required,gt=0"`
	CountedQuantity *decimal.Decimal `json:"counted_quantity" validate:"required"`
	Notes           string           `json:"notes" validate:"max=500"`
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	var req reconcileRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	counts := make([]Count, 0, len(req.Items))
	for _, item := range req.Items {
		counts = append(counts, Count{ProductID: item.ProductID, CountedQuantity: *item.CountedQuantity, Notes: item.Notes})
	}
	result, err := h.service.Reconcile(r.Context(), ident.BusinessID, ident.UserID, req.Notes, counts)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "reconcile stocktake", err)
		return
	}
	h.logger.Info("stocktake reconciled",
		slog.Int64("business_id", ident.BusinessID),
		slog.Int64("stocktake_id", result.Stocktake.ID),
		slog.Int("adjustments", len(result.Adjustments)))
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	filter := Filter{BusinessID: ident.BusinessID}
	filter.Limit, filter.Offset = httpx.Page(r, 20, 100)
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "list stocktakes", err)
		return
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
	st, err := h.service.Get(r.Context(), ident.BusinessID, id)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "get stocktake", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}
