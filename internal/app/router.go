package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/salon-inventory/internal/analytics"
	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/catalog"
	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/observability"
	"github.com/odyssey-erp/salon-inventory/internal/platform/httpx"
	"github.com/odyssey-erp/salon-inventory/internal/procurement"
	"github.com/odyssey-erp/salon-inventory/internal/reorder"
	"github.com/odyssey-erp/salon-inventory/internal/stocktake"
	"github.com/odyssey-erp/salon-inventory/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Auth               auth.Middleware
	AuthHandler        *auth.Handler
	CatalogHandler     *catalog.Handler
	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	StocktakeHandler   *stocktake.Handler
	ReorderHandler     *reorder.Handler
	AnalyticsHandler   *analytics.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.Auth.Authenticate)
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		r.Route("/inventory", func(r chi.Router) {
			params.CatalogHandler.MountRoutes(r)
			params.InventoryHandler.MountRoutes(r)
			params.ProcurementHandler.MountRoutes(r)
			params.StocktakeHandler.MountRoutes(r)
			params.ReorderHandler.MountRoutes(r)
			if params.AnalyticsHandler != nil {
				params.AnalyticsHandler.MountRoutes(r)
			}
		})
	})

	return r
}
