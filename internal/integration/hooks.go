package integration

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/procurement"
	"github.com/odyssey-erp/salon-inventory/jobs"
)

// CacheInvalidator drops a tenant's cached aggregates.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, businessID int64) error
}

// MovementObserver counts committed movements.
type MovementObserver interface {
	ObserveMovement(movementType, status string)
}

// AlertQueue schedules low stock alerts.
type AlertQueue interface {
	EnqueueLowStockAlert(ctx context.Context, payload jobs.LowStockAlertPayload) error
}

// Hooks fans committed ledger and purchase order events out to the cache,
// metrics and the job queue. Every collaborator is optional.
type Hooks struct {
	cache   CacheInvalidator
	metrics MovementObserver
	alerts  AlertQueue
	logger  *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(cache CacheInvalidator, metrics MovementObserver, alerts AlertQueue, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{cache: cache, metrics: metrics, alerts: alerts, logger: logger}
}

// HandleMovementApplied implements inventory.IntegrationHandler.
func (h *Hooks) HandleMovementApplied(ctx context.Context, evt inventory.MovementAppliedEvent) {
	if h == nil {
		return
	}
	h.invalidate(ctx, evt.BusinessID)
	if h.metrics != nil {
		h.metrics.ObserveMovement(string(evt.Type), string(evt.Status))
	}
	if h.alerts == nil || (evt.Status != inventory.StockLow && evt.Status != inventory.StockOut) {
		return
	}
	err := h.alerts.EnqueueLowStockAlert(ctx, jobs.LowStockAlertPayload{BusinessID: evt.BusinessID, ProductID: evt.ProductID})
	if err != nil {
		h.logger.Warn("enqueue low stock alert",
			slog.Int64("business_id", evt.BusinessID),
			slog.Int64("product_id", evt.ProductID),
			slog.Any("error", err))
	}
}

// HandleStatusChanged implements procurement.IntegrationHandler.
func (h *Hooks) HandleStatusChanged(ctx context.Context, evt procurement.StatusChangedEvent) {
	if h == nil {
		return
	}
	h.invalidate(ctx, evt.BusinessID)
}

func (h *Hooks) invalidate(ctx context.Context, businessID int64) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, businessID); err != nil {
		h.logger.Warn("invalidate analytics cache", slog.Int64("business_id", businessID), slog.Any("error", err))
	}
}

var (
	_ inventory.IntegrationHandler   = (*Hooks)(nil)
	_ procurement.IntegrationHandler = (*Hooks)(nil)
)
