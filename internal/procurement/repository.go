package procurement

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

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	LockOrder(ctx context.Context, businessID, id int64) (PurchaseOrder, error)
	UpdateStatus(ctx context.Context, po PurchaseOrder) error
	AddReceived(ctx context.Context, itemID int64, quantity decimal.Decimal) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a transaction. The ledger joins it through ctx.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderNumberConstraint = "purchase_orders_business_id_order_number_key"

const orderColumns = `id, business_id, vendor_id, order_number, status, subtotal, tax_amount, shipping_cost,
discount_amount, total, COALESCE(notes,''), expected_delivery_date, actual_delivery_date, COALESCE(created_by,0),
approved_by, approved_at, received_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (PurchaseOrder, error) {
	var (
		po     PurchaseOrder
		status string
	)
	err := row.Scan(&po.ID, &po.BusinessID, &po.VendorID, &po.Number, &status, &po.Subtotal, &po.TaxAmount,
		&po.ShippingCost, &po.DiscountAmount, &po.Total, &po.Notes, &po.ExpectedDeliveryDate,
		&po.ActualDeliveryDate, &po.CreatedBy, &po.ApprovedBy, &po.ApprovedAt, &po.ReceivedBy,
		&po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Status = Status(status)
	return po, nil
}

func (r *txRepo) InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(business_id, vendor_id, order_number, status, subtotal, tax_amount, shipping_cost, discount_amount, total,
 notes, expected_delivery_date, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12)
RETURNING `+orderColumns,
		po.BusinessID, po.VendorID, po.Number, string(po.Status), po.Subtotal, po.TaxAmount, po.ShippingCost,
		po.DiscountAmount, po.Total, po.Notes, po.ExpectedDeliveryDate, db.NullInt(po.CreatedBy))
	created, err := scanOrder(row)
	if db.IsUniqueViolation(err, orderNumberConstraint) {
		return PurchaseOrder{}, ErrDuplicateNumber
	}
	return created, err
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_order_items
(purchase_order_id, product_id, product_name, unit, quantity, unit_cost, line_total, received_quantity)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		item.PurchaseOrderID, item.ProductID, item.ProductName, item.Unit, item.Quantity, item.UnitCost,
		item.LineTotal, item.ReceivedQuantity).Scan(&id)
	return id, err
}

func (r *txRepo) LockOrder(ctx context.Context, businessID, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders
WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrPurchaseOrderNotFound
		}
		return PurchaseOrder{}, err
	}
	items, err := loadItems(ctx, r.tx, []int64{po.ID})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items = items[po.ID]
	return po, nil
}

func (r *txRepo) UpdateStatus(ctx context.Context, po PurchaseOrder) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$3, approved_by=$4, approved_at=$5,
received_by=$6, actual_delivery_date=$7, updated_at=NOW()
WHERE business_id=$1 AND id=$2`,
		po.BusinessID, po.ID, string(po.Status), po.ApprovedBy, po.ApprovedAt, po.ReceivedBy, po.ActualDeliveryDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPurchaseOrderNotFound
	}
	return nil
}

func (r *txRepo) AddReceived(ctx context.Context, itemID int64, quantity decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_order_items SET received_quantity = received_quantity + $2 WHERE id=$1`, itemID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// GetOrder returns an order with its items.
func (r *Repository) GetOrder(ctx context.Context, businessID, id int64) (PurchaseOrder, error) {
	conn := db.Conn(ctx, r.pool)
	po, err := scanOrder(conn.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE business_id=$1 AND id=$2`, businessID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrPurchaseOrderNotFound
		}
		return PurchaseOrder{}, err
	}
	items, err := loadItems(ctx, conn, []int64{po.ID})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items = items[po.ID]
	return po, nil
}

// ListOrders returns a page of orders, newest first, with their items.
func (r *Repository) ListOrders(ctx context.Context, filter Filter) ([]PurchaseOrder, int, error) {
	where := []string{"business_id=$1"}
	args := []any{filter.BusinessID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.VendorID != 0 {
		args = append(args, filter.VendorID)
		where = append(where, fmt.Sprintf("vendor_id=$%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM purchase_orders WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE %s
ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, orderColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		orders []PurchaseOrder
		ids    []int64
	)
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, po)
		ids = append(ids, po.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()
	if len(ids) == 0 {
		return orders, total, nil
	}
	items, err := loadItems(ctx, conn, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, total, nil
}

func loadItems(ctx context.Context, q db.Querier, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, purchase_order_id, product_id, product_name, unit, quantity, unit_cost,
line_total, received_quantity FROM purchase_order_items WHERE purchase_order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.PurchaseOrderID, &item.ProductID, &item.ProductName, &item.Unit,
			&item.Quantity, &item.UnitCost, &item.LineTotal, &item.ReceivedQuantity); err != nil {
			return nil, err
		}
		out[item.PurchaseOrderID] = append(out[item.PurchaseOrderID], item)
	}
	return out, rows.Err()
}
