package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/salon-inventory/internal/platform/httpx"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Handler manages API keys for the caller's business.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    Middleware
}

// NewHandler constructs the key management handler.
func NewHandler(logger *slog.Logger, service *Service, authz Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authz}
}

// MountRoutes registers key routes. Only keys holding ScopeAll may manage keys.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAll(ScopeAll))
		r.Post("/keys", h.handleIssue)
		r.Delete("/keys/{id}", h.handleRevoke)
	})
}

type issueRequest struct {
	Name   string   `json:"name" validate:"required,max=100"`
	UserID int64    `json:"user_id" validate:"gte=0"`
	Scopes []string `json:"scopes" validate:"required,min=1,dive,oneof=inventory.view inventory.edit *"`
}

type issueResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scopes    []string  `json:"scopes"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	var req issueRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	issued, err := h.service.IssueKey(r.Context(), ident.BusinessID, req.UserID, req.Name, req.Scopes)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "issue api key", err)
		return
	}
	h.logger.Info("api key issued", slog.Int64("business_id", ident.BusinessID), slog.String("key_id", issued.Key.ID))
	httpx.JSON(w, http.StatusCreated, issueResponse{
		ID:        issued.Key.ID,
		Name:      issued.Key.Name,
		Scopes:    issued.Key.Scopes,
		Token:     issued.Token,
		CreatedAt: issued.Key.CreatedAt,
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.RevokeKey(r.Context(), ident.BusinessID, id); err != nil {
		httpx.RespondErrorLog(w, h.logger, "revoke api key", err)
		return
	}
	h.logger.Info("api key revoked", slog.Int64("business_id", ident.BusinessID), slog.String("key_id", id))
	w.WriteHeader(http.StatusNoContent)
}
