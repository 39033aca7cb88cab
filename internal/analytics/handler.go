package analytics

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/platform/httpx"
	"github.com/odyssey-erp/salon-inventory/internal/platform/money"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Handler serves the stats and analytics reads.
type Handler struct {
	logger  *slog.Logger
	service *Service
	money   *money.Formatter
	auth    auth.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, formatter *money.Formatter, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, money: formatter, auth: authz}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAny(auth.ScopeInventoryView, auth.ScopeInventoryEdit))
		r.Get("/stats", h.handleStats)
		r.Get("/analytics", h.handleAnalytics)
	})
}

// StatsResponse adds display strings to Stats.
type StatsResponse struct {
	Stats
	StockValueDisplay     string `json:"stock_value_display"`
	OpenOrderValueDisplay string `json:"open_order_value_display"`
}

// TypeSummaryResponse adds a display string to TypeSummary.
type TypeSummaryResponse struct {
	TypeSummary
	TotalCostDisplay string `json:"total_cost_display"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), ident.BusinessID)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "inventory stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, StatsResponse{
		Stats:                 stats,
		StockValueDisplay:     h.money.Format(stats.Products.StockValue),
		OpenOrderValueDisplay: h.money.Format(stats.PurchaseOrders.OpenValue),
	})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	from, err := httpx.QueryDate(r, "from", false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to", true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Movements(r.Context(), ident.BusinessID, from, to)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "inventory analytics", err)
		return
	}
	byType := make([]TypeSummaryResponse, 0, len(result.ByType))
	for _, s := range result.ByType {
		byType = append(byType, TypeSummaryResponse{TypeSummary: s, TotalCostDisplay: h.money.Format(s.TotalCost)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"from":         result.From,
		"to":           result.To,
		"by_type":      byType,
		"top_products": result.TopProducts,
	})
}
