package procurement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusConfirmed Status = "confirmed"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusSent, StatusCancelled},
	StatusSent:      {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusReceived, StatusCancelled},
	StatusReceived:  nil,
	StatusCancelled: nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the workflow allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a status change outside the workflow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("procurement: cannot move purchase order from %s to %s", e.From, e.To)
}

// Is makes TransitionError match shared.ErrInvalidState.
func (e *TransitionError) Is(target error) bool {
	return target == shared.ErrInvalidState
}

// PurchaseOrder is a vendor order with its items.
type PurchaseOrder struct {
	ID                   int64      `json:"id"`
	BusinessID           int64      `json:"business_id"`
	VendorID             int64      `json:"vendor_id"`
	Number               string     `json:"order_number"`
	Status               Status     `json:"status"`
	Subtotal             int64      `json:"subtotal"`
	TaxAmount            int64      `json:"tax_amount"`
	ShippingCost         int64      `json:"shipping_cost"`
	DiscountAmount       int64      `json:"discount_amount"`
	Total                int64      `json:"total"`
	Notes                string     `json:"notes,omitempty"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time `json:"actual_delivery_date,omitempty"`
	CreatedBy            int64      `json:"created_by"`
	ApprovedBy           *int64     `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
	ReceivedBy           *int64     `json:"received_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Items                []Item     `json:"items"`
}

// Complete reports whether every item has been fully received.
func (po PurchaseOrder) Complete() bool {
	if len(po.Items) == 0 {
		return false
	}
	for _, item := range po.Items {
		if !item.Complete() {
			return false
		}
	}
	return true
}

// Item is one ordered product. Cost and unit are snapshotted at creation.
type Item struct {
	ID               int64           `json:"id"`
	PurchaseOrderID  int64           `json:"purchase_order_id"`
	ProductID        int64           `json:"product_id"`
	ProductName      string          `json:"product_name"`
	Unit             string          `json:"unit"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitCost         int64           `json:"unit_cost"`
	LineTotal        int64           `json:"line_total"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
}

// Complete reports whether the received quantity covers the order.
func (i Item) Complete() bool {
	return i.ReceivedQuantity.GreaterThanOrEqual(i.Quantity)
}

// Outstanding is the quantity still expected.
func (i Item) Outstanding() decimal.Decimal {
	left := i.Quantity.Sub(i.ReceivedQuantity)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// CreateInput describes a new purchase order.
type CreateInput struct {
	VendorID             int64
	Lines                []LineInput
	TaxAmount            int64
	ShippingCost         int64
	DiscountAmount       int64
	Total                *int64
	Notes                string
	ExpectedDeliveryDate *time.Time
}

// LineInput is one requested product. UnitCost defaults to the product cost.
type LineInput struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitCost  *int64
}

// ReceiveLine is one delivered item.
type ReceiveLine struct {
	ItemID      int64
	Quantity    decimal.Decimal
	BatchNumber string
	ExpiryDate  *time.Time
}

// Filter narrows purchase order listings.
type Filter struct {
	BusinessID int64
	Status     Status
	VendorID   int64
	Limit      int
	Offset     int
}

const idempotencyModule = "procurement.receive"

var (
	// ErrPurchaseOrderNotFound indicates the order is missing in the tenant.
	ErrPurchaseOrderNotFound = fmt.Errorf("%w: procurement: purchase order not found", shared.ErrNotFound)
	// ErrItemNotFound indicates a receipt line names an item outside the order.
	ErrItemNotFound = fmt.Errorf("%w: procurement: purchase order item not found", shared.ErrNotFound)
	// ErrOverReceipt indicates a receipt beyond the ordered quantity.
	ErrOverReceipt = fmt.Errorf("%w: procurement: received quantity exceeds ordered quantity", shared.ErrInvalidInput)
	// ErrVendorInactive blocks ordering from a vendor that is not active.
	ErrVendorInactive = fmt.Errorf("%w: procurement: vendor is not active", shared.ErrInvalidState)
	// ErrDuplicateNumber reports a generated order number collision.
	ErrDuplicateNumber = fmt.Errorf("%w: procurement: order number already used", shared.ErrConflict)
	// ErrNoLines indicates an order or receipt without lines.
	ErrNoLines = fmt.Errorf("%w: procurement: at least one line required", shared.ErrInvalidInput)
)
