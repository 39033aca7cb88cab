package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict is returned when a receipt key was already reserved.
var ErrIdempotencyConflict = fmt.Errorf("%w: request already processed", ErrConflict)

var errNoIdempotencyStore = errors.New("idempotency store not initialised")

// IdempotencyStore reserves request keys in the idempotency_keys table.
// Reservations are made on the pool, outside any business transaction, so a
// concurrent replay blocks on the primary key rather than on row locks.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, now: time.Now}
}

// CheckAndInsert reserves key for module. A key seen before yields
// ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.pool == nil {
		return errNoIdempotencyStore
	}
	switch {
	case key == "":
		return fmt.Errorf("%w: idempotency key required", ErrInvalidInput)
	case module == "":
		return fmt.Errorf("%w: idempotency module required", ErrInvalidInput)
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at)
VALUES ($1, $2, $3) ON CONFLICT (key) DO NOTHING`, key, module, s.now().UTC())
	if err != nil {
		return fmt.Errorf("reserve idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Delete releases a reservation after the guarded work failed.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.pool == nil || key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1`, key)
	return err
}

// Cleanup prunes reservations older than the retention window and reports
// how many rows went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
