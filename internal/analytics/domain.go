// Package analytics serves cached aggregate reads over inventory state.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/inventory"
)

// ProductStats aggregates the product table for one tenant.
type ProductStats struct {
	Total        int                           `json:"total"`
	Active       int                           `json:"active"`
	Tracked      int                           `json:"tracked"`
	StatusCounts map[inventory.StockStatus]int `json:"status_counts"`
	StockValue   int64                         `json:"stock_value"`
}

// OrderStats aggregates open purchase orders.
type OrderStats struct {
	Open      int   `json:"open"`
	OpenValue int64 `json:"open_value"`
}

// Stats backs GET /inventory/stats.
type Stats struct {
	Products       ProductStats `json:"products"`
	PurchaseOrders OrderStats   `json:"purchase_orders"`
	GeneratedAt    time.Time    `json:"generated_at"`
}

// TypeSummary totals movements of one type.
type TypeSummary struct {
	Type      inventory.MovementType `json:"type"`
	Count     int                    `json:"count"`
	Quantity  decimal.Decimal        `json:"quantity"`
	TotalCost int64                  `json:"total_cost"`
}

// ProductUsage ranks a product by consumed quantity.
type ProductUsage struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// MovementAnalytics backs GET /inventory/analytics.
type MovementAnalytics struct {
	From        time.Time      `json:"from"`
	To          time.Time      `json:"to"`
	ByType      []TypeSummary  `json:"by_type"`
	TopProducts []ProductUsage `json:"top_products"`
}

const (
	topProductsLimit = 5
	defaultRange     = 30 * 24 * time.Hour
)
