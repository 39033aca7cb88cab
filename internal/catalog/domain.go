package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Product is a catalog item. CurrentStock, BatchNumber and ExpiryDate are
// owned by the stock ledger and read-only here.
type Product struct {
	ID              int64            `json:"id"`
	BusinessID      int64            `json:"business_id"`
	SKU             string           `json:"sku"`
	Barcode         string           `json:"barcode,omitempty"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	Brand           string           `json:"brand,omitempty"`
	Unit            string           `json:"unit"`
	CategoryID      *int64           `json:"category_id,omitempty"`
	VendorID        *int64           `json:"vendor_id,omitempty"`
	CostPerUnit     int64            `json:"cost_per_unit"`
	SellingPrice    *int64           `json:"selling_price,omitempty"`
	RetailPrice     *int64           `json:"retail_price,omitempty"`
	CurrentStock    decimal.Decimal  `json:"current_stock"`
	MinimumStock    decimal.Decimal  `json:"minimum_stock"`
	MaximumStock    *decimal.Decimal `json:"maximum_stock,omitempty"`
	ReorderPoint    *decimal.Decimal `json:"reorder_point,omitempty"`
	ReorderQuantity *decimal.Decimal `json:"reorder_quantity,omitempty"`
	LeadTimeDays    *int             `json:"lead_time_days,omitempty"`
	IsActive        bool             `json:"is_active"`
	TrackStock      bool             `json:"track_stock"`
	IsRetail        bool             `json:"is_retail"`
	BatchNumber     string           `json:"batch_number,omitempty"`
	ExpiryDate      *time.Time       `json:"expiry_date,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Status derives the stock status of p.
func (p Product) Status() inventory.StockStatus {
	return inventory.DeriveStatus(p.CurrentStock, p.MinimumStock, p.MaximumStock)
}

// ProductInput carries the catalog-editable product fields.
type ProductInput struct {
	SKU             string
	Barcode         string
	Name            string
	Description     string
	Brand           string
	Unit            string
	CategoryID      *int64
	VendorID        *int64
	CostPerUnit     int64
	SellingPrice    *int64
	RetailPrice     *int64
	MinimumStock    decimal.Decimal
	MaximumStock    *decimal.Decimal
	ReorderPoint    *decimal.Decimal
	ReorderQuantity *decimal.Decimal
	LeadTimeDays    *int
	TrackStock      bool
	IsRetail        bool
	IsActive        *bool
	// InitialStock is honoured on create only.
	InitialStock decimal.Decimal
}

// ProductFilter filters product listings.
type ProductFilter struct {
	BusinessID int64
	CategoryID int64
	VendorID   int64
	IsActive   *bool
	IsRetail   *bool
	Status     inventory.StockStatus
	Search     string
	SortBy     string
	SortDir    string
	Limit      int
	Offset     int
}

// Category groups products.
type Category struct {
	ID          int64     `json:"id"`
	BusinessID  int64     `json:"business_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryInput carries editable category fields.
type CategoryInput struct {
	Name        string
	Description string
	ParentID    *int64
	SortOrder   int
}

// VendorStatus enumerates vendor lifecycle states.
type VendorStatus string

const (
	VendorActive    VendorStatus = "active"
	VendorInactive  VendorStatus = "inactive"
	VendorSuspended VendorStatus = "suspended"
)

// Valid reports whether s is a known vendor status.
func (s VendorStatus) Valid() bool {
	switch s {
	case VendorActive, VendorInactive, VendorSuspended:
		return true
	}
	return false
}

// Vendor supplies products and receives purchase orders.
type Vendor struct {
	ID           int64        `json:"id"`
	BusinessID   int64        `json:"business_id"`
	Name         string       `json:"name"`
	ContactName  string       `json:"contact_name,omitempty"`
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Address      string       `json:"address,omitempty"`
	Website      string       `json:"website,omitempty"`
	PaymentTerms string       `json:"payment_terms,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	Status       VendorStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// VendorInput carries editable vendor fields.
type VendorInput struct {
	Name         string
	ContactName  string
	Email        string
	Phone        string
	Address      string
	Website      string
	PaymentTerms string
	Notes        string
	Status       VendorStatus
}

// VendorFilter filters vendor listings.
type VendorFilter struct {
	BusinessID int64
	Status     VendorStatus
	Search     string
	Limit      int
	Offset     int
}

const initialStockReason = "Initial stock"

var (
	// ErrProductNotFound indicates the product is missing in the tenant.
	ErrProductNotFound = inventory.ErrProductNotFound
	// ErrDuplicateSKU indicates another product in the tenant holds the SKU.
	ErrDuplicateSKU = fmt.Errorf("%w: catalog: sku already exists", shared.ErrConflict)
	// ErrCategoryInUse blocks deleting a category referenced by active products.
	ErrCategoryInUse = fmt.Errorf("%w: catalog: category is used by active products", shared.ErrConflict)
	// ErrCategoryCycle rejects a parent that is the category or one of its descendants.
	ErrCategoryCycle = fmt.Errorf("%w: catalog: category parent would form a cycle", shared.ErrInvalidInput)
	// ErrCategoryNotFound indicates the category is missing in the tenant.
	ErrCategoryNotFound = fmt.Errorf("%w: catalog: category not found", shared.ErrNotFound)
	// ErrVendorNotFound indicates the vendor is missing in the tenant.
	ErrVendorNotFound = fmt.Errorf("%w: catalog: vendor not found", shared.ErrNotFound)
)
