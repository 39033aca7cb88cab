package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/platform/db"
)

const skuConstraint = "products_business_id_sku_key"

// Repository persists catalog records in PostgreSQL. Every query is scoped by
// business id and runs on the ambient transaction when ctx carries one.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const productColumns = `id, business_id, sku, COALESCE(barcode,''), name, COALESCE(description,''), COALESCE(brand,''), unit,
category_id, vendor_id, cost_per_unit, selling_price, retail_price, current_stock, minimum_stock, maximum_stock,
reorder_point, reorder_quantity, lead_time_days, is_active, track_stock, is_retail, COALESCE(batch_number,''), expiry_date,
created_at, updated_at`

func scanProduct(row rowScanner) (Product, error) {
	var (
		p                   Product
		maximum, point, qty decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.BusinessID, &p.SKU, &p.Barcode, &p.Name, &p.Description, &p.Brand, &p.Unit,
		&p.CategoryID, &p.VendorID, &p.CostPerUnit, &p.SellingPrice, &p.RetailPrice, &p.CurrentStock, &p.MinimumStock, &maximum,
		&point, &qty, &p.LeadTimeDays, &p.IsActive, &p.TrackStock, &p.IsRetail, &p.BatchNumber, &p.ExpiryDate,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.MaximumStock = nullDecimal(maximum)
	p.ReorderPoint = nullDecimal(point)
	p.ReorderQuantity = nullDecimal(qty)
	return p, nil
}

func nullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// SKUExists reports whether sku is taken in the tenant by a product other than excludeID.
func (r *Repository) SKUExists(ctx context.Context, businessID int64, sku string, excludeID int64) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM products WHERE business_id=$1 AND lower(sku)=lower($2) AND id<>$3)`,
		businessID, sku, excludeID).Scan(&exists)
	return exists, err
}

// InsertProduct stores p with zero stock; initial stock arrives through the ledger.
func (r *Repository) InsertProduct(ctx context.Context, p Product) (Product, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO products
(business_id, sku, barcode, name, description, brand, unit, category_id, vendor_id, cost_per_unit, selling_price, retail_price,
 current_stock, minimum_stock, maximum_stock, reorder_point, reorder_quantity, lead_time_days, is_active, track_stock, is_retail)
VALUES ($1,$2,NULLIF($3,''),$4,NULLIF($5,''),NULLIF($6,''),$7,$8,$9,$10,$11,$12,0,$13,$14,$15,$16,$17,$18,$19,$20)
RETURNING `+productColumns,
		p.BusinessID, p.SKU, p.Barcode, p.Name, p.Description, p.Brand, p.Unit, p.CategoryID, p.VendorID,
		p.CostPerUnit, p.SellingPrice, p.RetailPrice, p.MinimumStock, p.MaximumStock, p.ReorderPoint,
		p.ReorderQuantity, p.LeadTimeDays, p.IsActive, p.TrackStock, p.IsRetail)
	out, err := scanProduct(row)
	if err != nil {
		if db.IsUniqueViolation(err, skuConstraint) {
			return Product{}, ErrDuplicateSKU
		}
		return Product{}, err
	}
	return out, nil
}

// UpdateProduct writes catalog fields. Stock, batch and expiry are left untouched.
func (r *Repository) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `UPDATE products SET
sku=$3, barcode=NULLIF($4,''), name=$5, description=NULLIF($6,''), brand=NULLIF($7,''), unit=$8, category_id=$9, vendor_id=$10,
cost_per_unit=$11, selling_price=$12, retail_price=$13, minimum_stock=$14, maximum_stock=$15, reorder_point=$16,
reorder_quantity=$17, lead_time_days=$18, is_active=$19, track_stock=$20, is_retail=$21, updated_at=NOW()
WHERE business_id=$1 AND id=$2
RETURNING `+productColumns,
		p.BusinessID, p.ID, p.SKU, p.Barcode, p.Name, p.Description, p.Brand, p.Unit, p.CategoryID, p.VendorID,
		p.CostPerUnit, p.SellingPrice, p.RetailPrice, p.MinimumStock, p.MaximumStock, p.ReorderPoint,
		p.ReorderQuantity, p.LeadTimeDays, p.IsActive, p.TrackStock, p.IsRetail)
	out, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		if db.IsUniqueViolation(err, skuConstraint) {
			return Product{}, ErrDuplicateSKU
		}
		return Product{}, err
	}
	return out, nil
}

// GetProduct loads one product.
func (r *Repository) GetProduct(ctx context.Context, businessID, id int64) (Product, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE business_id=$1 AND id=$2`, businessID, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// GetProducts loads the listed products keyed by id. Missing ids are absent from the map.
func (r *Repository) GetProducts(ctx context.Context, businessID int64, ids []int64) (map[int64]Product, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+productColumns+` FROM products WHERE business_id=$1 AND id = ANY($2)`, businessID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// SetProductActive toggles the soft-delete flag.
func (r *Repository) SetProductActive(ctx context.Context, businessID, id int64, active bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE products SET is_active=$3, updated_at=NOW() WHERE business_id=$1 AND id=$2`, businessID, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// statusExpr mirrors inventory.DeriveStatus in SQL so status filters page correctly.
const statusExpr = `CASE
 WHEN current_stock = 0 THEN 'out'
 WHEN current_stock <= minimum_stock THEN 'low'
 WHEN maximum_stock IS NOT NULL AND current_stock > maximum_stock THEN 'overstock'
 ELSE 'good' END`

// ListProducts returns a filtered page of products and the unpaged total.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	where := []string{"business_id=$1"}
	args := []any{filter.BusinessID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.CategoryID != 0 {
		add("category_id=$%d", filter.CategoryID)
	}
	if filter.VendorID != 0 {
		add("vendor_id=$%d", filter.VendorID)
	}
	if filter.IsActive != nil {
		add("is_active=$%d", *filter.IsActive)
	}
	if filter.IsRetail != nil {
		add("is_retail=$%d", *filter.IsRetail)
	}
	if filter.Status != "" {
		add("("+statusExpr+")=$%d", string(filter.Status))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d OR barcode ILIKE $%d OR brand ILIKE $%d)", n, n, n, n))
	}
	clause := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM products WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, clause, productSortOrder(filter.SortBy, filter.SortDir), len(args)-1, len(args))
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func productSortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "sku " + dir + ", id"
	case "current_stock":
		return "current_stock " + dir + ", id"
	case "cost_per_unit":
		return "cost_per_unit " + dir + ", id"
	case "created_at":
		return "created_at " + dir + ", id"
	default:
		return "name " + dir + ", id"
	}
}

// ListStockCandidates returns active, stock-tracked products at or below their
// reorder threshold.
func (r *Repository) ListStockCandidates(ctx context.Context, businessID int64) ([]Product, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+productColumns+` FROM products
WHERE business_id=$1 AND is_active AND track_stock
AND current_stock <= COALESCE(reorder_point, minimum_stock, 0)`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const categoryColumns = `id, business_id, name, COALESCE(description,''), parent_id, sort_order, created_at, updated_at`

func scanCategory(row rowScanner) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Description, &c.ParentID, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// InsertCategory stores c.
func (r *Repository) InsertCategory(ctx context.Context, c Category) (Category, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO categories (business_id, name, description, parent_id, sort_order)
VALUES ($1,$2,NULLIF($3,''),$4,$5) RETURNING `+categoryColumns, c.BusinessID, c.Name, c.Description, c.ParentID, c.SortOrder)
	return scanCategory(row)
}

// UpdateCategory writes c.
func (r *Repository) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `UPDATE categories SET name=$3, description=NULLIF($4,''), parent_id=$5, sort_order=$6, updated_at=NOW()
WHERE business_id=$1 AND id=$2 RETURNING `+categoryColumns, c.BusinessID, c.ID, c.Name, c.Description, c.ParentID, c.SortOrder)
	out, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	return out, err
}

// GetCategory loads one category.
func (r *Repository) GetCategory(ctx context.Context, businessID, id int64) (Category, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE business_id=$1 AND id=$2`, businessID, id)
	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	return c, err
}

// ListCategories returns all categories of the tenant.
func (r *Repository) ListCategories(ctx context.Context, businessID int64) ([]Category, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE business_id=$1 ORDER BY sort_order, name, id`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountActiveProductsInCategory counts active products referencing the category.
func (r *Repository) CountActiveProductsInCategory(ctx context.Context, businessID, categoryID int64) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE business_id=$1 AND category_id=$2 AND is_active`, businessID, categoryID).Scan(&n)
	return n, err
}

// DeleteCategory removes a category. Inactive products and child categories
// referencing it are detached by the foreign keys.
func (r *Repository) DeleteCategory(ctx context.Context, businessID, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM categories WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

const vendorColumns = `id, business_id, name, COALESCE(contact_name,''), COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''),
COALESCE(website,''), COALESCE(payment_terms,''), COALESCE(notes,''), status, created_at, updated_at`

func scanVendor(row rowScanner) (Vendor, error) {
	var (
		v      Vendor
		status string
	)
	err := row.Scan(&v.ID, &v.BusinessID, &v.Name, &v.ContactName, &v.Email, &v.Phone, &v.Address,
		&v.Website, &v.PaymentTerms, &v.Notes, &status, &v.CreatedAt, &v.UpdatedAt)
	v.Status = VendorStatus(status)
	return v, err
}

// InsertVendor stores v.
func (r *Repository) InsertVendor(ctx context.Context, v Vendor) (Vendor, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO vendors
(business_id, name, contact_name, email, phone, address, website, payment_terms, notes, status)
VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),NULLIF($6,''),NULLIF($7,''),NULLIF($8,''),NULLIF($9,''),$10)
RETURNING `+vendorColumns,
		v.BusinessID, v.Name, v.ContactName, v.Email, v.Phone, v.Address, v.Website, v.PaymentTerms, v.Notes, string(v.Status))
	return scanVendor(row)
}

// UpdateVendor writes v.
func (r *Repository) UpdateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `UPDATE vendors SET name=$3, contact_name=NULLIF($4,''), email=NULLIF($5,''),
phone=NULLIF($6,''), address=NULLIF($7,''), website=NULLIF($8,''), payment_terms=NULLIF($9,''), notes=NULLIF($10,''), status=$11, updated_at=NOW()
WHERE business_id=$1 AND id=$2 RETURNING `+vendorColumns,
		v.BusinessID, v.ID, v.Name, v.ContactName, v.Email, v.Phone, v.Address, v.Website, v.PaymentTerms, v.Notes, string(v.Status))
	out, err := scanVendor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, ErrVendorNotFound
	}
	return out, err
}

// GetVendor loads one vendor.
func (r *Repository) GetVendor(ctx context.Context, businessID, id int64) (Vendor, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE business_id=$1 AND id=$2`, businessID, id)
	v, err := scanVendor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, ErrVendorNotFound
	}
	return v, err
}

// ListVendors returns a filtered page of vendors and the unpaged total.
func (r *Repository) ListVendors(ctx context.Context, filter VendorFilter) ([]Vendor, int, error) {
	where := []string{"business_id=$1"}
	args := []any{filter.BusinessID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR contact_name ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}
	clause := strings.Join(where, " AND ")
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM vendors WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM vendors WHERE %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		vendorColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}
