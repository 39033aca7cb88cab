package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/salon-inventory/internal/platform/httpx"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Middleware wires authentication and scope checks for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate resolves the bearer token into a shared.Identity.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, ErrInvalidCredentials)
			return
		}
		id, err := m.Service.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, shared.ErrUnauthorized) && m.Logger != nil {
				m.Logger.Error("auth authenticate", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
	})
}

// RequireAny ensures the caller holds at least one of the scopes.
func (m Middleware) RequireAny(scopes ...string) func(http.Handler) http.Handler {
	return m.require(normalizeScopes(scopes), false)
}

// RequireAll ensures the caller holds every scope.
func (m Middleware) RequireAll(scopes ...string) func(http.Handler) http.Handler {
	return m.require(normalizeScopes(scopes), true)
}

func (m Middleware) require(required []string, all bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, ErrInvalidCredentials)
				return
			}
			if !granted(id, required, all) {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func granted(id shared.Identity, required []string, all bool) bool {
	if len(required) == 0 {
		return true
	}
	for _, scope := range required {
		has := id.HasScope(scope)
		if all && !has {
			return false
		}
		if !all && has {
			return true
		}
	}
	return all
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
