package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// MovementType enumerates supported ledger movements.
type MovementType string

const (
	MovementReceive    MovementType = "receive"
	MovementUsage      MovementType = "usage"
	MovementAdjustment MovementType = "adjustment"
	MovementTransfer   MovementType = "transfer"
	MovementDamage     MovementType = "damage"
	MovementReturn     MovementType = "return"
	MovementExpired    MovementType = "expired"
)

// MovementTypes lists every movement type in display order.
var MovementTypes = []MovementType{
	MovementReceive, MovementUsage, MovementAdjustment, MovementTransfer,
	MovementDamage, MovementReturn, MovementExpired,
}

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	for _, known := range MovementTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Reference modules recorded on movements.
const (
	RefPurchaseOrder = "purchase_order"
	RefStocktake     = "stocktake"
)

// StockStatus is derived from stock fields, never stored.
type StockStatus string

const (
	StockOut       StockStatus = "out"
	StockLow       StockStatus = "low"
	StockOverstock StockStatus = "overstock"
	StockGood      StockStatus = "good"
)

// DeriveStatus classifies a stock level against its thresholds.
func DeriveStatus(current, minimum decimal.Decimal, maximum *decimal.Decimal) StockStatus {
	switch {
	case current.IsZero():
		return StockOut
	case current.LessThanOrEqual(minimum):
		return StockLow
	case maximum != nil && current.GreaterThan(*maximum):
		return StockOverstock
	default:
		return StockGood
	}
}

// NextStock applies the ledger delta rule for t to previous.
func NextStock(t MovementType, previous, quantity decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case MovementReceive, MovementReturn:
		return previous.Add(quantity), nil
	case MovementUsage, MovementDamage, MovementExpired:
		return decimal.Max(decimal.Zero, previous.Sub(quantity)), nil
	case MovementTransfer:
		next := previous.Sub(quantity)
		if next.IsNegative() {
			return previous, fmt.Errorf("%w: transfer of %s exceeds stock %s", ErrInsufficientStock, quantity, previous)
		}
		return next, nil
	case MovementAdjustment:
		return quantity, nil
	default:
		return previous, fmt.Errorf("%w: %q", ErrUnknownMovementType, t)
	}
}

// StockLevel is the ledger's locked view of a product row.
type StockLevel struct {
	BusinessID   int64
	ProductID    int64
	Name         string
	Unit         string
	CostPerUnit  int64
	CurrentStock decimal.Decimal
	MinimumStock decimal.Decimal
	MaximumStock *decimal.Decimal
	TrackStock   bool
	IsActive     bool
}

// Movement is an immutable ledger entry.
type Movement struct {
	ID            int64           `json:"id"`
	BusinessID    int64           `json:"business_id"`
	ProductID     int64           `json:"product_id"`
	Type          MovementType    `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
	UnitCost      *int64          `json:"unit_cost,omitempty"`
	TotalCost     *int64          `json:"total_cost,omitempty"`
	PreviousStock decimal.Decimal `json:"previous_stock"`
	NewStock      decimal.Decimal `json:"new_stock"`
	Reason        string          `json:"reason,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	BatchNumber   string          `json:"batch_number,omitempty"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	RefModule     string          `json:"ref_module,omitempty"`
	RefID         int64           `json:"ref_id,omitempty"`
	ActorID       int64           `json:"actor_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MovementInput describes a request to append a movement.
type MovementInput struct {
	BusinessID  int64
	ProductID   int64
	Type        MovementType
	Quantity    decimal.Decimal
	UnitCost    *int64
	Reason      string
	Notes       string
	BatchNumber string
	ExpiryDate  *time.Time
	RefModule   string
	RefID       int64
	ActorID     int64
}

// MovementResult is returned by ApplyMovement.
type MovementResult struct {
	Movement      Movement
	PreviousStock decimal.Decimal
	NewStock      decimal.Decimal
}

// StockUpdate is the product write that accompanies every movement.
type StockUpdate struct {
	BusinessID   int64
	ProductID    int64
	CurrentStock decimal.Decimal
	BatchNumber  string
	ExpiryDate   *time.Time
}

// MovementFilter filters ledger history.
type MovementFilter struct {
	BusinessID int64
	ProductID  int64
	Type       MovementType
	RefModule  string
	RefID      int64
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

var (
	// ErrProductNotFound indicates the product is missing in the tenant.
	ErrProductNotFound = fmt.Errorf("%w: inventory: product not found", shared.ErrNotFound)
	// ErrQuantityNotPositive indicates a movement quantity <= 0.
	ErrQuantityNotPositive = fmt.Errorf("%w: inventory: quantity must be greater than zero", shared.ErrInvalidInput)
	// ErrNegativeLevel indicates an adjustment to a negative absolute level.
	ErrNegativeLevel = fmt.Errorf("%w: inventory: adjusted level cannot be negative", shared.ErrInvalidInput)
	// ErrInvalidUnitCost indicates invalid cost value.
	ErrInvalidUnitCost = fmt.Errorf("%w: inventory: unit cost must be >= 0", shared.ErrInvalidInput)
	// ErrUnknownMovementType indicates an unsupported movement type.
	ErrUnknownMovementType = fmt.Errorf("%w: inventory: unknown movement type", shared.ErrInvalidInput)
	// ErrInsufficientStock triggered when a transfer would take stock below zero.
	ErrInsufficientStock = fmt.Errorf("%w: inventory: insufficient stock", shared.ErrConflict)
	// ErrStockNotTracked indicates the product opted out of stock tracking.
	ErrStockNotTracked = fmt.Errorf("%w: inventory: product does not track stock", shared.ErrInvalidState)
)
