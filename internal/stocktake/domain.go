package stocktake

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Stocktake is one physical count session.
type Stocktake struct {
	ID              int64     `json:"id"`
	BusinessID      int64     `json:"business_id"`
	ActorID         int64     `json:"actor_id"`
	Notes           string    `json:"notes,omitempty"`
	LineCount       int       `json:"line_count"`
	AdjustmentCount int       `json:"adjustment_count"`
	CreatedAt       time.Time `json:"created_at"`
	Lines           []Line    `json:"lines,omitempty"`
}

// Line records one counted product.
type Line struct {
	ID               int64           `json:"id"`
	StocktakeID      int64           `json:"stocktake_id"`
	ProductID        int64           `json:"product_id"`
	ExpectedQuantity decimal.Decimal `json:"expected_quantity"`
	CountedQuantity  decimal.Decimal `json:"counted_quantity"`
	Discrepancy      decimal.Decimal `json:"discrepancy"`
	MovementID       *int64          `json:"movement_id,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// Count is one counted product submitted for reconciliation.
type Count struct {
	ProductID       int64
	CountedQuantity decimal.Decimal
	Notes           string
}

// Adjustment is emitted for every product whose count differed.
type Adjustment struct {
	ProductID       int64           `json:"product_id"`
	PreviousStock   decimal.Decimal `json:"previous_stock"`
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
	Discrepancy     decimal.Decimal `json:"discrepancy"`
	MovementID      int64           `json:"movement_id"`
}

// Result is the outcome of Reconcile.
type Result struct {
	Stocktake   Stocktake    `json:"stocktake"`
	Adjustments []Adjustment `json:"adjustments"`
}

// Filter narrows stocktake listings.
type Filter struct {
	BusinessID int64
	Limit      int
	Offset     int
}

const (
	reasonSurplus  = "Stocktake surplus"
	reasonShortage = "Stocktake shortage"
)

// ErrStocktakeNotFound indicates the stocktake is missing in the tenant.
var ErrStocktakeNotFound = fmt.Errorf("%w: stocktake: not found", shared.ErrNotFound)
