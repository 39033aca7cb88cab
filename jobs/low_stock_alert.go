package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/catalog"
	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	jobmetrics "github.com/odyssey-erp/salon-inventory/internal/jobs"
	"github.com/odyssey-erp/salon-inventory/internal/reorder"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ProductReader loads a single product.
type ProductReader interface {
	GetProduct(ctx context.Context, businessID, id int64) (catalog.Product, error)
}

// LowStockAlertJob logs a restock suggestion for a product that ran low.
type LowStockAlertJob struct {
	Catalog         ProductReader
	DefaultQuantity int64
	Logger          *slog.Logger
	Metrics         *jobmetrics.Metrics
}

// NewLowStockAlertJob wires dependencies for the alert handler.
func NewLowStockAlertJob(catalog ProductReader, defaultQuantity int64, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockAlertJob {
	return &LowStockAlertJob{Catalog: catalog, DefaultQuantity: defaultQuantity, Logger: logger, Metrics: metrics}
}

// Handle processes low stock alert tasks.
func (j *LowStockAlertJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Catalog == nil {
		return errors.New("low stock alert: handler not configured")
	}
	var payload LowStockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskLowStockAlert)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("business_id", payload.BusinessID), slog.Int64("product_id", payload.ProductID))
	product, err := j.Catalog.GetProduct(ctx, payload.BusinessID, payload.ProductID)
	if errors.Is(err, shared.ErrNotFound) {
		logger.Warn("low stock alert for missing product")
		return nil
	}
	if err != nil {
		return err
	}

	status := product.Status()
	if status != inventory.StockLow && status != inventory.StockOut {
		logger.Info("stock recovered before alert ran", slog.String("status", string(status)))
		return nil
	}
	j.metrics().AddLowStockAlert(string(status))

	attrs := []any{
		slog.String("sku", product.SKU),
		slog.String("status", string(status)),
		slog.String("current_stock", product.CurrentStock.String()),
	}
	if s, ok := reorder.Evaluate(product, decimal.NewFromInt(j.defaultQuantity())); ok {
		attrs = append(attrs, slog.String("urgency", string(s.Urgency)), slog.String("suggested_quantity", s.SuggestedQuantity.String()))
	}
	logger.Warn("low stock", attrs...)
	return nil
}

func (j *LowStockAlertJob) defaultQuantity() int64 {
	if j.DefaultQuantity > 0 {
		return j.DefaultQuantity
	}
	return 10
}

func (j *LowStockAlertJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockAlert))
	}
	return slog.Default().With(slog.String("job", TaskLowStockAlert))
}

func (j *LowStockAlertJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
