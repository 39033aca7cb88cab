package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementAppliedEvent is emitted after a movement commits.
type MovementAppliedEvent struct {
	BusinessID    int64
	ProductID     int64
	ProductName   string
	MovementID    int64
	Type          MovementType
	Quantity      decimal.Decimal
	PreviousStock decimal.Decimal
	NewStock      decimal.Decimal
	Status        StockStatus
	RefModule     string
	RefID         int64
	AppliedAt     time.Time
}
