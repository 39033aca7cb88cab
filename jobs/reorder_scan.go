package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/odyssey-erp/salon-inventory/internal/jobs"
	"github.com/odyssey-erp/salon-inventory/internal/reorder"
)

// BusinessSource lists tenants to scan.
type BusinessSource interface {
	ActiveBusinesses(ctx context.Context) ([]int64, error)
}

// Advisor produces reorder suggestions.
type Advisor interface {
	SuggestReorders(ctx context.Context, businessID int64, defaultQuantity decimal.Decimal) ([]reorder.Suggestion, error)
}

// ReorderScanJob logs a reorder summary per active tenant.
type ReorderScanJob struct {
	Businesses BusinessSource
	Advisor    Advisor
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewReorderScanJob wires dependencies for the scan handler.
func NewReorderScanJob(businesses BusinessSource, advisor Advisor, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReorderScanJob {
	return &ReorderScanJob{Businesses: businesses, Advisor: advisor, Logger: logger, Metrics: metrics}
}

// Handle processes reorder scan tasks.
func (j *ReorderScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Businesses == nil || j.Advisor == nil {
		return errors.New("reorder scan: handler not configured")
	}
	var payload ReorderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskReorderScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	businesses, err := j.Businesses.ActiveBusinesses(ctx)
	if err != nil {
		logger.Error("load businesses", slog.Any("error", err))
		return err
	}
	def := decimal.NewFromInt(payload.DefaultQuantity)
	for _, businessID := range businesses {
		scanCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		suggestions, err := j.Advisor.SuggestReorders(scanCtx, businessID, def)
		cancel()
		if err != nil {
			logger.Error("suggest reorders", slog.Int64("business_id", businessID), slog.Any("error", err))
			return err
		}
		critical := 0
		for _, s := range suggestions {
			if s.Urgency == reorder.UrgencyCritical {
				critical++
			}
		}
		j.metrics().SetReorderBacklog(businessID, critical, len(suggestions)-critical)
		if len(suggestions) > 0 {
			logger.Info("reorder suggestions",
				slog.Int64("business_id", businessID),
				slog.Int("total", len(suggestions)),
				slog.Int("critical", critical))
		}
	}
	logger.Info("completed reorder scan", slog.Int("businesses", len(businesses)), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ReorderScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReorderScan))
	}
	return slog.Default().With(slog.String("job", TaskReorderScan))
}

func (j *ReorderScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// PoolBusinesses reads tenants that have at least one tracked product.
type PoolBusinesses struct {
	Pool *pgxpool.Pool
}

// ActiveBusinesses implements BusinessSource.
func (p PoolBusinesses) ActiveBusinesses(ctx context.Context) ([]int64, error) {
	if p.Pool == nil {
		return nil, errors.New("reorder scan: pool not configured")
	}
	rows, err := p.Pool.Query(ctx, `SELECT DISTINCT business_id FROM products WHERE is_active AND track_stock ORDER BY business_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
