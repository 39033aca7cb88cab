package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/platform/db"
)

// Repository runs the aggregate queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// The CASE mirrors inventory.DeriveStatus.
const statusExpr = `CASE
	WHEN current_stock = 0 THEN 'out'
	WHEN current_stock <= minimum_stock THEN 'low'
	WHEN maximum_stock IS NOT NULL AND current_stock > maximum_stock THEN 'overstock'
	ELSE 'good' END`

// ProductStats counts products and values the tracked stock.
func (r *Repository) ProductStats(ctx context.Context, businessID int64) (ProductStats, error) {
	conn := db.Conn(ctx, r.pool)
	stats := ProductStats{StatusCounts: map[inventory.StockStatus]int{
		inventory.StockOut: 0, inventory.StockLow: 0, inventory.StockGood: 0, inventory.StockOverstock: 0,
	}}
	var value decimal.Decimal
	err := conn.QueryRow(ctx, `SELECT COUNT(*),
	COUNT(*) FILTER (WHERE is_active),
	COUNT(*) FILTER (WHERE is_active AND track_stock),
	COALESCE(SUM(current_stock * cost_per_unit) FILTER (WHERE is_active AND track_stock), 0)
FROM products WHERE business_id=$1`, businessID).Scan(&stats.Total, &stats.Active, &stats.Tracked, &value)
	if err != nil {
		return ProductStats{}, err
	}
	stats.StockValue = value.Round(0).IntPart()

	rows, err := conn.Query(ctx, `SELECT `+statusExpr+` AS status, COUNT(*) FROM products
WHERE business_id=$1 AND is_active AND track_stock GROUP BY 1`, businessID)
	if err != nil {
		return ProductStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return ProductStats{}, err
		}
		stats.StatusCounts[inventory.StockStatus(status)] = n
	}
	return stats, rows.Err()
}

// OrderStats totals purchase orders that are sent or confirmed.
func (r *Repository) OrderStats(ctx context.Context, businessID int64) (OrderStats, error) {
	var stats OrderStats
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total),0)::bigint FROM purchase_orders
WHERE business_id=$1 AND status IN ('sent','confirmed')`, businessID).Scan(&stats.Open, &stats.OpenValue)
	return stats, err
}

// MovementsByType summarises movements in [from, to].
func (r *Repository) MovementsByType(ctx context.Context, businessID int64, from, to time.Time) ([]TypeSummary, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT movement_type, COUNT(*), COALESCE(SUM(quantity),0),
	COALESCE(SUM(total_cost),0)::bigint
FROM stock_movements WHERE business_id=$1 AND created_at >= $2 AND created_at <= $3
GROUP BY movement_type ORDER BY movement_type`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TypeSummary{}
	for rows.Next() {
		var (
			s   TypeSummary
			typ string
		)
		if err := rows.Scan(&typ, &s.Count, &s.Quantity, &s.TotalCost); err != nil {
			return nil, err
		}
		s.Type = inventory.MovementType(typ)
		out = append(out, s)
	}
	return out, rows.Err()
}

// TopUsage ranks products by usage quantity in [from, to].
func (r *Repository) TopUsage(ctx context.Context, businessID int64, from, to time.Time, limit int) ([]ProductUsage, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT m.product_id, p.sku, p.name, SUM(m.quantity) AS used
FROM stock_movements m JOIN products p ON p.id = m.product_id
WHERE m.business_id=$1 AND m.movement_type='usage' AND m.created_at >= $2 AND m.created_at <= $3
GROUP BY m.product_id, p.sku, p.name ORDER BY used DESC, m.product_id LIMIT $4`, businessID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ProductUsage{}
	for rows.Next() {
		var u ProductUsage
		if err := rows.Scan(&u.ProductID, &u.SKU, &u.Name, &u.Quantity); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
