package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/salon-inventory/internal/platform/db"
)

// Repository persists API keys.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetKey loads a key by id.
func (r *Repository) GetKey(ctx context.Context, id string) (APIKey, error) {
	var key APIKey
	err := r.pool.QueryRow(ctx, `SELECT id, business_id, COALESCE(user_id,0), name, secret_hash, scopes, created_at, last_used_at, revoked_at
FROM api_keys WHERE id=$1`, id).Scan(
		&key.ID, &key.BusinessID, &key.UserID, &key.Name, &key.SecretHash, &key.Scopes,
		&key.CreatedAt, &key.LastUsedAt, &key.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, ErrKeyNotFound
		}
		return APIKey{}, err
	}
	return key, nil
}

// InsertKey stores a new key.
func (r *Repository) InsertKey(ctx context.Context, key APIKey) (time.Time, error) {
	var createdAt time.Time
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO api_keys (id, business_id, user_id, name, secret_hash, scopes)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`,
		key.ID, key.BusinessID, db.NullInt(key.UserID), key.Name, key.SecretHash, key.Scopes,
	).Scan(&createdAt)
	return createdAt, err
}

// TouchKey records the last successful use.
func (r *Repository) TouchKey(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at=$2 WHERE id=$1`, id, at)
	return err
}

// RevokeKey marks a key revoked.
func (r *Repository) RevokeKey(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE api_keys SET revoked_at=$2 WHERE id=$1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}
