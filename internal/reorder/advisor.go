// Package reorder derives restock suggestions from catalog stock levels.
package reorder

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/catalog"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Urgency ranks a suggestion.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyLow      Urgency = "low"
)

// Suggestion is one product that should be restocked.
type Suggestion struct {
	ProductID         int64           `json:"product_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Unit              string          `json:"unit"`
	VendorID          *int64          `json:"vendor_id,omitempty"`
	CurrentStock      decimal.Decimal `json:"current_stock"`
	Threshold         decimal.Decimal `json:"threshold"`
	SuggestedQuantity decimal.Decimal `json:"suggested_quantity"`
	Urgency           Urgency         `json:"urgency"`
	EstimatedCost     int64           `json:"estimated_cost"`
	LeadTimeDays      *int            `json:"lead_time_days,omitempty"`
}

// CatalogPort lists products that may need restocking.
type CatalogPort interface {
	ListStockCandidates(ctx context.Context, businessID int64) ([]catalog.Product, error)
}

// Advisor computes suggestions. It never writes.
type Advisor struct {
	catalog         CatalogPort
	defaultQuantity decimal.Decimal
}

// NewAdvisor builds Advisor. defaultQuantity applies when a product has
// neither a reorder quantity nor a maximum stock.
func NewAdvisor(catalog CatalogPort, defaultQuantity int64) *Advisor {
	if defaultQuantity <= 0 {
		defaultQuantity = 1
	}
	return &Advisor{catalog: catalog, defaultQuantity: decimal.NewFromInt(defaultQuantity)}
}

// SuggestReorders returns suggestions ordered critical first, then by
// ascending stock. A non-positive defaultQuantity uses the advisor default.
func (a *Advisor) SuggestReorders(ctx context.Context, businessID int64, defaultQuantity decimal.Decimal) ([]Suggestion, error) {
	if businessID == 0 {
		return nil, shared.InvalidInput("business required")
	}
	if !defaultQuantity.IsPositive() {
		defaultQuantity = a.defaultQuantity
	}
	products, err := a.catalog.ListStockCandidates(ctx, businessID)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(products))
	for _, p := range products {
		if s, ok := Evaluate(p, defaultQuantity); ok {
			out = append(out, s)
		}
	}
	Sort(out)
	return out, nil
}

// Evaluate reports whether p needs restocking and, if so, its suggestion.
func Evaluate(p catalog.Product, defaultQuantity decimal.Decimal) (Suggestion, bool) {
	if !p.IsActive || !p.TrackStock {
		return Suggestion{}, false
	}
	threshold := Threshold(p)
	if p.CurrentStock.GreaterThan(threshold) {
		return Suggestion{}, false
	}
	s := Suggestion{
		ProductID:    p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		Unit:         p.Unit,
		VendorID:     p.VendorID,
		CurrentStock: p.CurrentStock,
		Threshold:    threshold,
		Urgency:      UrgencyLow,
		LeadTimeDays: p.LeadTimeDays,
	}
	if p.CurrentStock.IsZero() {
		s.Urgency = UrgencyCritical
	}
	switch {
	case p.ReorderQuantity != nil:
		s.SuggestedQuantity = *p.ReorderQuantity
	case p.MaximumStock != nil:
		s.SuggestedQuantity = decimal.Max(decimal.NewFromInt(1), p.MaximumStock.Sub(p.CurrentStock))
	default:
		s.SuggestedQuantity = defaultQuantity
	}
	s.EstimatedCost = s.SuggestedQuantity.Mul(decimal.NewFromInt(p.CostPerUnit)).Round(0).IntPart()
	return s, true
}

// Threshold is the reorder point, else the minimum stock.
func Threshold(p catalog.Product) decimal.Decimal {
	if p.ReorderPoint != nil {
		return *p.ReorderPoint
	}
	return p.MinimumStock
}

// Sort orders suggestions critical first, then by ascending stock. Name and
// id break ties so output is stable.
func Sort(items []Suggestion) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Urgency != b.Urgency {
			return a.Urgency == UrgencyCritical
		}
		if c := a.CurrentStock.Cmp(b.CurrentStock); c != 0 {
			return c < 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ProductID < b.ProductID
	})
}
