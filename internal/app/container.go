package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/salon-inventory/internal/analytics"
	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/catalog"
	"github.com/odyssey-erp/salon-inventory/internal/integration"
	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/observability"
	"github.com/odyssey-erp/salon-inventory/internal/platform/db"
	"github.com/odyssey-erp/salon-inventory/internal/platform/money"
	"github.com/odyssey-erp/salon-inventory/internal/procurement"
	"github.com/odyssey-erp/salon-inventory/internal/reorder"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
	"github.com/odyssey-erp/salon-inventory/internal/stocktake"
	"github.com/odyssey-erp/salon-inventory/jobs"
)

// Dependencies are the process-level resources the HTTP service is built on.
type Dependencies struct {
	Logger     *slog.Logger
	Config     *Config
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	JobClient  *jobs.Client
	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// BuildRouterParams wires repositories, services and handlers.
func BuildRouterParams(deps Dependencies) (RouterParams, error) {
	cfg := deps.Config
	if cfg == nil {
		return RouterParams{}, fmt.Errorf("app: config required")
	}
	formatter, err := money.NewFormatter(cfg.Currency, cfg.Locale)
	if err != nil {
		return RouterParams{}, err
	}
	logger := deps.Logger

	authService := auth.NewService(auth.NewRepository(deps.Pool))
	authz := auth.Middleware{Service: authService, Logger: logger}
	audit := shared.NewAuditLogger(deps.Pool, logger)

	analyticsService := analytics.NewService(analytics.NewRepository(deps.Pool), analytics.NewCache(deps.Redis, cfg.AnalyticsCacheTTL))
	hooks := integration.NewHooks(analyticsService, deps.Metrics, deps.JobClient, logger)

	ledger := inventory.NewService(inventory.NewRepository(deps.Pool), audit, hooks)
	catalogService := catalog.NewService(catalog.NewRepository(deps.Pool), ledger, db.NewTransactor(deps.Pool), audit)
	procurementService := procurement.NewService(
		procurement.NewRepository(deps.Pool),
		catalogService,
		ledger,
		audit,
		shared.NewIdempotencyStore(deps.Pool),
		hooks,
		procurement.Options{AllowOverReceipt: cfg.AllowOverReceipt},
	)
	stocktakeService := stocktake.NewService(stocktake.NewRepository(deps.Pool), ledger, audit)
	advisor := reorder.NewAdvisor(catalogService, cfg.DefaultReorderQuantity)

	return RouterParams{
		Logger:             logger,
		Config:             cfg,
		Auth:               authz,
		AuthHandler:        auth.NewHandler(logger, authService, authz),
		CatalogHandler:     catalog.NewHandler(logger, catalogService, formatter, authz),
		InventoryHandler:   inventory.NewHandler(logger, ledger, formatter, authz),
		ProcurementHandler: procurement.NewHandler(logger, procurementService, formatter, authz),
		StocktakeHandler:   stocktake.NewHandler(logger, stocktakeService, authz),
		ReorderHandler:     reorder.NewHandler(logger, advisor, formatter, authz),
		AnalyticsHandler:   analytics.NewHandler(logger, analyticsService, formatter, authz),
		JobHandler:         deps.JobHandler,
		Metrics:            deps.Metrics,
	}, nil
}
