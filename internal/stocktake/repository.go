package stocktake

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/platform/db"
)

// Repository persists stocktakes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertStocktake(ctx context.Context, st Stocktake) (Stocktake, error)
	LockStock(ctx context.Context, businessID, productID int64) (decimal.Decimal, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	FinishStocktake(ctx context.Context, id int64, lines, adjustments int) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a transaction the ledger joins through ctx.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *txRepo) InsertStocktake(ctx context.Context, st Stocktake) (Stocktake, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stocktakes (business_id, actor_id, notes)
VALUES ($1, $2, NULLIF($3,'')) RETURNING id, created_at`,
		st.BusinessID, db.NullInt(st.ActorID), st.Notes).Scan(&st.ID, &st.CreatedAt)
	return st, err
}

// LockStock locks the product row; the ledger later locks the same row in
// the same transaction.
func (r *txRepo) LockStock(ctx context.Context, businessID, productID int64) (decimal.Decimal, error) {
	var (
		current decimal.Decimal
		tracked bool
	)
	err := r.tx.QueryRow(ctx, `SELECT current_stock, track_stock FROM products
WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, productID).Scan(&current, &tracked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, inventory.ErrProductNotFound
		}
		return decimal.Decimal{}, err
	}
	if !tracked {
		return decimal.Decimal{}, inventory.ErrStockNotTracked
	}
	return current, nil
}

func (r *txRepo) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stocktake_lines
(stocktake_id, product_id, expected_quantity, counted_quantity, discrepancy, movement_id, notes)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,'')) RETURNING id`,
		line.StocktakeID, line.ProductID, line.ExpectedQuantity, line.CountedQuantity, line.Discrepancy,
		line.MovementID, line.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) FinishStocktake(ctx context.Context, id int64, lines, adjustments int) error {
	_, err := r.tx.Exec(ctx, `UPDATE stocktakes SET line_count=$2, adjustment_count=$3 WHERE id=$1`, id, lines, adjustments)
	return err
}

// Get loads a stocktake with its lines.
func (r *Repository) Get(ctx context.Context, businessID, id int64) (Stocktake, error) {
	conn := db.Conn(ctx, r.pool)
	var st Stocktake
	err := conn.QueryRow(ctx, `SELECT id, business_id, COALESCE(actor_id,0), COALESCE(notes,''), line_count, adjustment_count, created_at
FROM stocktakes WHERE business_id=$1 AND id=$2`, businessID, id).Scan(
		&st.ID, &st.BusinessID, &st.ActorID, &st.Notes, &st.LineCount, &st.AdjustmentCount, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stocktake{}, ErrStocktakeNotFound
		}
		return Stocktake{}, err
	}
	rows, err := conn.Query(ctx, `SELECT id, stocktake_id, product_id, expected_quantity, counted_quantity, discrepancy,
movement_id, COALESCE(notes,'') FROM stocktake_lines WHERE stocktake_id=$1 ORDER BY product_id`, id)
	if err != nil {
		return Stocktake{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.StocktakeID, &line.ProductID, &line.ExpectedQuantity, &line.CountedQuantity,
			&line.Discrepancy, &line.MovementID, &line.Notes); err != nil {
			return Stocktake{}, err
		}
		st.Lines = append(st.Lines, line)
	}
	return st, rows.Err()
}

// List returns stocktake headers newest first with the unpaged total.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Stocktake, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM stocktakes WHERE business_id=$1`, filter.BusinessID).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := conn.Query(ctx, `SELECT id, business_id, COALESCE(actor_id,0), COALESCE(notes,''), line_count, adjustment_count, created_at
FROM stocktakes WHERE business_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, filter.BusinessID, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Stocktake
	for rows.Next() {
		var st Stocktake
		if err := rows.Scan(&st.ID, &st.BusinessID, &st.ActorID, &st.Notes, &st.LineCount, &st.AdjustmentCount, &st.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, st)
	}
	return out, total, rows.Err()
}
