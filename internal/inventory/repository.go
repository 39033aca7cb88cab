package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockProduct(ctx context.Context, businessID, productID int64) (StockLevel, error)
	InsertMovement(ctx context.Context, m Movement) (int64, time.Time, error)
	UpdateStock(ctx context.Context, update StockUpdate) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a transaction, joining the one carried
// by ctx when present.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *txRepo) LockProduct(ctx context.Context, businessID, productID int64) (StockLevel, error) {
	var (
		level   StockLevel
		maximum decimal.NullDecimal
	)
	err := r.tx.QueryRow(ctx, `SELECT business_id, id, name, unit, cost_per_unit, current_stock, minimum_stock, maximum_stock, track_stock, is_active
FROM products WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, productID).Scan(
		&level.BusinessID, &level.ProductID, &level.Name, &level.Unit, &level.CostPerUnit,
		&level.CurrentStock, &level.MinimumStock, &maximum, &level.TrackStock, &level.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{}, ErrProductNotFound
		}
		return StockLevel{}, err
	}
	if maximum.Valid {
		level.MaximumStock = &maximum.Decimal
	}
	return level, nil
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, time.Time, error) {
	var (
		id        int64
		createdAt time.Time
	)
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements
(business_id, product_id, movement_type, quantity, unit, unit_cost, total_cost, previous_stock, new_stock,
 reason, notes, batch_number, expiry_date, ref_module, ref_id, actor_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),NULLIF($11,''),NULLIF($12,''),$13,NULLIF($14,''),$15,$16)
RETURNING id, created_at`,
		m.BusinessID, m.ProductID, string(m.Type), m.Quantity, m.Unit, m.UnitCost, m.TotalCost,
		m.PreviousStock, m.NewStock, m.Reason, m.Notes, m.BatchNumber, m.ExpiryDate,
		m.RefModule, db.NullInt(m.RefID), db.NullInt(m.ActorID),
	).Scan(&id, &createdAt)
	if err != nil {
		return 0, time.Time{}, err
	}
	return id, createdAt, nil
}

func (r *txRepo) UpdateStock(ctx context.Context, update StockUpdate) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET current_stock=$3,
batch_number=COALESCE(NULLIF($4,''), batch_number),
expiry_date=COALESCE($5, expiry_date),
updated_at=NOW()
WHERE business_id=$1 AND id=$2`,
		update.BusinessID, update.ProductID, update.CurrentStock, update.BatchNumber, update.ExpiryDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ListMovements returns ledger history newest first with the unpaged total.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	where := []string{"business_id=$1"}
	args := []any{filter.BusinessID}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		where = append(where, fmt.Sprintf("product_id=$%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("movement_type=$%d", len(args)))
	}
	if filter.RefModule != "" {
		args = append(args, filter.RefModule)
		where = append(where, fmt.Sprintf("ref_module=$%d", len(args)))
	}
	if filter.RefID != 0 {
		args = append(args, filter.RefID)
		where = append(where, fmt.Sprintf("ref_id=$%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM stock_movements WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT id, business_id, product_id, movement_type, quantity, unit, unit_cost, total_cost,
previous_stock, new_stock, COALESCE(reason,''), COALESCE(notes,''), COALESCE(batch_number,''), expiry_date,
COALESCE(ref_module,''), COALESCE(ref_id,0), COALESCE(actor_id,0), created_at
FROM stock_movements WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var (
			m    Movement
			kind string
		)
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.ProductID, &kind, &m.Quantity, &m.Unit, &m.UnitCost, &m.TotalCost,
			&m.PreviousStock, &m.NewStock, &m.Reason, &m.Notes, &m.BatchNumber, &m.ExpiryDate,
			&m.RefModule, &m.RefID, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		m.Type = MovementType(kind)
		out = append(out, m)
	}
	return out, total, rows.Err()
}
