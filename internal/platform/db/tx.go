package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxTxAttempts bounds retries on serialization failures and deadlocks.
const maxTxAttempts = 3

type txContextKey struct{}

type txState struct {
	tx          pgx.Tx
	afterCommit []func(context.Context)
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx executes fn inside a read-committed transaction. When ctx already
// carries a transaction opened by an outer WithTx, fn joins it and the outer
// call owns commit and rollback.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok {
		return fn(ctx, state.tx)
	}
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runTx(ctx, pool, fn)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	state := &txState{tx: tx}
	txCtx := context.WithValue(ctx, txContextKey{}, state)
	if err := fn(txCtx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	for _, hook := range state.afterCommit {
		hook(ctx)
	}
	return nil
}

// AfterCommit defers fn until the transaction carried by ctx commits. Outside
// a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok {
		state.afterCommit = append(state.afterCommit, fn)
		return
	}
	fn(ctx)
}

// Conn returns the transaction carried by ctx, or the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok {
		return state.tx
	}
	return pool
}

// Transactor exposes WithTx to services that coordinate several repositories.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor constructs Transactor.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithinTx runs fn in a transaction shared by every repository call made with the returned ctx.
func (t *Transactor) WithinTx(ctx context.Context, fn func(context.Context) error) error {
	return WithTx(ctx, t.pool, func(ctx context.Context, _ pgx.Tx) error {
		return fn(ctx)
	})
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to one constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
