package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	SKUExists(ctx context.Context, businessID int64, sku string, excludeID int64) (bool, error)
	InsertProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, businessID, id int64) (Product, error)
	GetProducts(ctx context.Context, businessID int64, ids []int64) (map[int64]Product, error)
	SetProductActive(ctx context.Context, businessID, id int64, active bool) error
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	ListStockCandidates(ctx context.Context, businessID int64) ([]Product, error)

	InsertCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	GetCategory(ctx context.Context, businessID, id int64) (Category, error)
	ListCategories(ctx context.Context, businessID int64) ([]Category, error)
	CountActiveProductsInCategory(ctx context.Context, businessID, categoryID int64) (int, error)
	DeleteCategory(ctx context.Context, businessID, id int64) error

	InsertVendor(ctx context.Context, v Vendor) (Vendor, error)
	UpdateVendor(ctx context.Context, v Vendor) (Vendor, error)
	GetVendor(ctx context.Context, businessID, id int64) (Vendor, error)
	ListVendors(ctx context.Context, filter VendorFilter) ([]Vendor, int, error)
}

// LedgerPort is the stock ledger write path.
type LedgerPort interface {
	ApplyMovement(ctx context.Context, input inventory.MovementInput) (inventory.MovementResult, error)
}

// TxManager runs fn inside one storage transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(context.Context) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the catalog store.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	tx     TxManager
	audit  AuditPort
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, ledger LedgerPort, tx TxManager, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledger, tx: tx, audit: audit}
}

// CreateProduct stores a product. A positive initial stock is booked as one
// "receive" movement in the same transaction.
func (s *Service) CreateProduct(ctx context.Context, businessID, actorID int64, input ProductInput) (Product, error) {
	input = normalizeProductInput(input)
	if err := validateProductInput(input); err != nil {
		return Product{}, err
	}
	if input.InitialStock.IsNegative() {
		return Product{}, shared.InvalidInput("initial stock cannot be negative")
	}
	if input.InitialStock.IsPositive() && !input.TrackStock {
		return Product{}, shared.InvalidInput("initial stock requires stock tracking")
	}

	var created Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.checkReferences(ctx, businessID, input.CategoryID, input.VendorID); err != nil {
			return err
		}
		if err := s.checkSKU(ctx, businessID, input.SKU, 0); err != nil {
			return err
		}
		p := applyProductInput(Product{BusinessID: businessID, IsActive: true}, input)
		var err error
		created, err = s.repo.InsertProduct(ctx, p)
		if err != nil {
			return err
		}
		if !input.InitialStock.IsPositive() {
			return nil
		}
		cost := created.CostPerUnit
		result, err := s.ledger.ApplyMovement(ctx, inventory.MovementInput{
			BusinessID: businessID,
			ProductID:  created.ID,
			Type:       inventory.MovementReceive,
			Quantity:   input.InitialStock,
			UnitCost:   &cost,
			Reason:     initialStockReason,
			ActorID:    actorID,
		})
		if err != nil {
			return err
		}
		created.CurrentStock = result.NewStock
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, businessID, actorID, "catalog:product.create", "product", created.ID, map[string]any{"sku": created.SKU})
	return created, nil
}

// UpdateProduct replaces the editable fields of a product.
func (s *Service) UpdateProduct(ctx context.Context, businessID, actorID, id int64, input ProductInput) (Product, error) {
	input = normalizeProductInput(input)
	if err := validateProductInput(input); err != nil {
		return Product{}, err
	}
	var updated Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetProduct(ctx, businessID, id)
		if err != nil {
			return err
		}
		if err := s.checkReferences(ctx, businessID, input.CategoryID, input.VendorID); err != nil {
			return err
		}
		if !strings.EqualFold(current.SKU, input.SKU) {
			if err := s.checkSKU(ctx, businessID, input.SKU, id); err != nil {
				return err
			}
		}
		updated, err = s.repo.UpdateProduct(ctx, applyProductInput(current, input))
		return err
	})
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, businessID, actorID, "catalog:product.update", "product", id, map[string]any{"sku": updated.SKU})
	return updated, nil
}

// DeactivateProduct soft-deletes a product.
func (s *Service) DeactivateProduct(ctx context.Context, businessID, actorID, id int64) error {
	if err := s.repo.SetProductActive(ctx, businessID, id, false); err != nil {
		return err
	}
	s.record(ctx, businessID, actorID, "catalog:product.deactivate", "product", id, nil)
	return nil
}

// GetProduct loads a product.
func (s *Service) GetProduct(ctx context.Context, businessID, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, businessID, id)
}

// GetProducts loads products by id for collaborators that snapshot product data.
func (s *Service) GetProducts(ctx context.Context, businessID int64, ids []int64) (map[int64]Product, error) {
	if len(ids) == 0 {
		return map[int64]Product{}, nil
	}
	return s.repo.GetProducts(ctx, businessID, ids)
}

// ListProducts lists products for a tenant.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	if filter.BusinessID == 0 {
		return nil, 0, shared.InvalidInput("business required")
	}
	switch filter.Status {
	case "", inventory.StockOut, inventory.StockLow, inventory.StockOverstock, inventory.StockGood:
	default:
		return nil, 0, shared.InvalidInput("unknown stock status %q", filter.Status)
	}
	return s.repo.ListProducts(ctx, filter)
}

// ListStockCandidates returns active tracked products at or below their
// reorder threshold.
func (s *Service) ListStockCandidates(ctx context.Context, businessID int64) ([]Product, error) {
	return s.repo.ListStockCandidates(ctx, businessID)
}

// CreateCategory stores a category.
func (s *Service) CreateCategory(ctx context.Context, businessID, actorID int64, input CategoryInput) (Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Category{}, shared.InvalidInput("category name required")
	}
	if input.ParentID != nil {
		if _, err := s.repo.GetCategory(ctx, businessID, *input.ParentID); err != nil {
			return Category{}, err
		}
	}
	c, err := s.repo.InsertCategory(ctx, Category{
		BusinessID:  businessID,
		Name:        input.Name,
		Description: strings.TrimSpace(input.Description),
		ParentID:    input.ParentID,
		SortOrder:   input.SortOrder,
	})
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, businessID, actorID, "catalog:category.create", "category", c.ID, map[string]any{"name": c.Name})
	return c, nil
}

// UpdateCategory replaces the editable fields of a category.
func (s *Service) UpdateCategory(ctx context.Context, businessID, actorID, id int64, input CategoryInput) (Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Category{}, shared.InvalidInput("category name required")
	}
	if input.ParentID != nil {
		if err := s.checkParentChain(ctx, businessID, id, *input.ParentID); err != nil {
			return Category{}, err
		}
	}
	c, err := s.repo.UpdateCategory(ctx, Category{
		ID:          id,
		BusinessID:  businessID,
		Name:        input.Name,
		Description: strings.TrimSpace(input.Description),
		ParentID:    input.ParentID,
		SortOrder:   input.SortOrder,
	})
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, businessID, actorID, "catalog:category.update", "category", id, map[string]any{"name": c.Name})
	return c, nil
}

// checkParentChain walks up from parentID and fails when it reaches id.
func (s *Service) checkParentChain(ctx context.Context, businessID, id, parentID int64) error {
	seen := map[int64]bool{}
	for next := &parentID; next != nil; {
		if *next == id {
			return fmt.Errorf("%w: parent %d", ErrCategoryCycle, parentID)
		}
		if seen[*next] {
			return nil
		}
		seen[*next] = true
		parent, err := s.repo.GetCategory(ctx, businessID, *next)
		if err != nil {
			return err
		}
		next = parent.ParentID
	}
	return nil
}

// DeleteCategory removes a category unless an active product references it.
func (s *Service) DeleteCategory(ctx context.Context, businessID, actorID, id int64) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetCategory(ctx, businessID, id); err != nil {
			return err
		}
		n, err := s.repo.CountActiveProductsInCategory(ctx, businessID, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d active products", ErrCategoryInUse, n)
		}
		return s.repo.DeleteCategory(ctx, businessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, businessID, actorID, "catalog:category.delete", "category", id, nil)
	return nil
}

// GetCategory loads a category.
func (s *Service) GetCategory(ctx context.Context, businessID, id int64) (Category, error) {
	return s.repo.GetCategory(ctx, businessID, id)
}

// ListCategories lists all categories for a tenant.
func (s *Service) ListCategories(ctx context.Context, businessID int64) ([]Category, error) {
	return s.repo.ListCategories(ctx, businessID)
}

// CreateVendor stores a vendor. Status defaults to active.
func (s *Service) CreateVendor(ctx context.Context, businessID, actorID int64, input VendorInput) (Vendor, error) {
	input = normalizeVendorInput(input)
	if err := validateVendorInput(input); err != nil {
		return Vendor{}, err
	}
	v, err := s.repo.InsertVendor(ctx, applyVendorInput(Vendor{BusinessID: businessID}, input))
	if err != nil {
		return Vendor{}, err
	}
	s.record(ctx, businessID, actorID, "catalog:vendor.create", "vendor", v.ID, map[string]any{"name": v.Name})
	return v, nil
}

// UpdateVendor replaces the editable fields of a vendor.
func (s *Service) UpdateVendor(ctx context.Context, businessID, actorID, id int64, input VendorInput) (Vendor, error) {
	input = normalizeVendorInput(input)
	if err := validateVendorInput(input); err != nil {
		return Vendor{}, err
	}
	v, err := s.repo.UpdateVendor(ctx, applyVendorInput(Vendor{ID: id, BusinessID: businessID}, input))
	if err != nil {
		return Vendor{}, err
	}
	s.record(ctx, businessID, actorID, "catalog:vendor.update", "vendor", id, map[string]any{"status": string(v.Status)})
	return v, nil
}

// GetVendor loads a vendor.
func (s *Service) GetVendor(ctx context.Context, businessID, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, businessID, id)
}

// ListVendors lists vendors for a tenant.
func (s *Service) ListVendors(ctx context.Context, filter VendorFilter) ([]Vendor, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, shared.InvalidInput("unknown vendor status %q", filter.Status)
	}
	return s.repo.ListVendors(ctx, filter)
}

func (s *Service) checkSKU(ctx context.Context, businessID int64, sku string, excludeID int64) error {
	exists, err := s.repo.SKUExists(ctx, businessID, sku, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSKU, sku)
	}
	return nil
}

func (s *Service) checkReferences(ctx context.Context, businessID int64, categoryID, vendorID *int64) error {
	if categoryID != nil {
		if _, err := s.repo.GetCategory(ctx, businessID, *categoryID); err != nil {
			return err
		}
	}
	if vendorID != nil {
		if _, err := s.repo.GetVendor(ctx, businessID, *vendorID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, businessID, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: businessID,
		ActorID:    actorID,
		Action:     action,
		Entity:     entity,
		EntityID:   strconv.FormatInt(id, 10),
		Meta:       meta,
	})
}

func normalizeProductInput(in ProductInput) ProductInput {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.Brand = strings.TrimSpace(in.Brand)
	if in.Unit == "" {
		in.Unit = "unit"
	}
	return in
}

func validateProductInput(in ProductInput) error {
	var problems []string
	if in.SKU == "" {
		problems = append(problems, "sku required")
	}
	if in.Name == "" {
		problems = append(problems, "name required")
	}
	if in.CostPerUnit < 0 {
		problems = append(problems, "cost_per_unit must be >= 0")
	}
	if negativeAmount(in.SellingPrice) || negativeAmount(in.RetailPrice) {
		problems = append(problems, "prices must be >= 0")
	}
	if in.MinimumStock.IsNegative() || negativeDecimal(in.MaximumStock) || negativeDecimal(in.ReorderPoint) {
		problems = append(problems, "stock thresholds must be >= 0")
	}
	if in.ReorderQuantity != nil && !in.ReorderQuantity.IsPositive() {
		problems = append(problems, "reorder_quantity must be > 0")
	}
	if in.MaximumStock != nil && in.MaximumStock.LessThan(in.MinimumStock) {
		problems = append(problems, "maximum_stock must be >= minimum_stock")
	}
	if in.LeadTimeDays != nil && *in.LeadTimeDays < 0 {
		problems = append(problems, "lead_time_days must be >= 0")
	}
	if len(problems) > 0 {
		return shared.InvalidInput("%s", strings.Join(problems, "; "))
	}
	return nil
}

func negativeAmount(v *int64) bool {
	return v != nil && *v < 0
}

func negativeDecimal(v *decimal.Decimal) bool {
	return v != nil && v.IsNegative()
}

func applyProductInput(p Product, in ProductInput) Product {
	p.SKU = in.SKU
	p.Barcode = in.Barcode
	p.Name = in.Name
	p.Description = strings.TrimSpace(in.Description)
	p.Brand = in.Brand
	p.Unit = in.Unit
	p.CategoryID = in.CategoryID
	p.VendorID = in.VendorID
	p.CostPerUnit = in.CostPerUnit
	p.SellingPrice = in.SellingPrice
	p.RetailPrice = in.RetailPrice
	p.MinimumStock = in.MinimumStock
	p.MaximumStock = in.MaximumStock
	p.ReorderPoint = in.ReorderPoint
	p.ReorderQuantity = in.ReorderQuantity
	p.LeadTimeDays = in.LeadTimeDays
	p.TrackStock = in.TrackStock
	p.IsRetail = in.IsRetail
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return p
}

func normalizeVendorInput(in VendorInput) VendorInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Status == "" {
		in.Status = VendorActive
	}
	return in
}

func validateVendorInput(in VendorInput) error {
	if in.Name == "" {
		return shared.InvalidInput("vendor name required")
	}
	if !in.Status.Valid() {
		return shared.InvalidInput("unknown vendor status %q", in.Status)
	}
	return nil
}

func applyVendorInput(v Vendor, in VendorInput) Vendor {
	v.Name = in.Name
	v.ContactName = strings.TrimSpace(in.ContactName)
	v.Email = in.Email
	v.Phone = strings.TrimSpace(in.Phone)
	v.Address = strings.TrimSpace(in.Address)
	v.Website = strings.TrimSpace(in.Website)
	v.PaymentTerms = strings.TrimSpace(in.PaymentTerms)
	v.Notes = strings.TrimSpace(in.Notes)
	v.Status = in.Status
	return v
}
