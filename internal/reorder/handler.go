package reorder

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/platform/httpx"
	"github.com/odyssey-erp/salon-inventory/internal/platform/money"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Handler serves reorder suggestions.
type Handler struct {
	logger  *slog.Logger
	advisor *Advisor
	money   *money.Formatter
	auth    auth.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, advisor *Advisor, formatter *money.Formatter, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, advisor: advisor, money: formatter, auth: authz}
}

// MountRoutes registers the reorder route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.auth.RequireAny(auth.ScopeInventoryView, auth.ScopeInventoryEdit)).
		Get("/reorder-suggestions", h.handleSuggestions)
}

// SuggestionResponse adds a display string for the estimated cost.
type SuggestionResponse struct {
	Suggestion
	EstimatedCostDisplay string `json:"estimated_cost_display"`
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	var def decimal.Decimal
	if raw := r.URL.Query().Get("default_quantity"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil || !v.IsPositive() {
			httpx.RespondError(w, shared.InvalidInput("default_quantity must be a positive number"))
			return
		}
		def = v
	}
	items, err := h.advisor.SuggestReorders(r.Context(), ident.BusinessID, def)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "suggest reorders", err)
		return
	}
	resp := make([]SuggestionResponse, 0, len(items))
	for _, s := range items {
		resp = append(resp, SuggestionResponse{Suggestion: s, EstimatedCostDisplay: h.money.Format(s.EstimatedCost)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suggestions": resp, "total": len(resp)})
}
