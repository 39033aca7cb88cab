package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueAlerts carries low-stock alerts ahead of maintenance work.
	QueueAlerts = "alerts"
	// QueueDefault carries scheduled scans and cleanup.
	QueueDefault = "default"
	// TaskLowStockAlert is raised when a movement leaves a product low or out.
	TaskLowStockAlert = "inventory:low_stock_alert"
	// TaskReorderScan periodically logs reorder suggestions per tenant.
	TaskReorderScan = "inventory:reorder_scan"
	// TaskIdempotencyCleanup prunes expired receipt idempotency keys.
	TaskIdempotencyCleanup = "inventory:idempotency_cleanup"

	lowStockAlertWindow = time.Hour
)

// LowStockAlertPayload identifies the product to alert on. Status is read
// again when the task runs, so the payload stays stable for deduplication.
type LowStockAlertPayload struct {
	BusinessID int64 `json:"business_id"`
	ProductID  int64 `json:"product_id"`
}

// NewLowStockAlertTask constructs a task unique per product for an hour.
func NewLowStockAlertTask(payload LowStockAlertPayload) (*asynq.Task, error) {
	if payload.BusinessID == 0 || payload.ProductID == 0 {
		return nil, fmt.Errorf("jobs: low stock alert requires business and product")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockAlert, body,
		asynq.Queue(QueueAlerts),
		asynq.Unique(lowStockAlertWindow),
		asynq.MaxRetry(3)), nil
}

// ReorderScanPayload carries scheduling metadata.
type ReorderScanPayload struct {
	DefaultQuantity int64 `json:"default_quantity,omitempty"`
}

// NewReorderScanTask constructs the periodic scan task.
func NewReorderScanTask(defaultQuantity int64) (*asynq.Task, error) {
	body, err := json.Marshal(ReorderScanPayload{DefaultQuantity: defaultQuantity})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReorderScan, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
