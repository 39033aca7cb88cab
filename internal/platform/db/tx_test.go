package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestAfterCommitRunsImmediatelyOutsideTx(t *testing.T) {
	ran := false
	AfterCommit(context.Background(), func(context.Context) { ran = true })
	require.True(t, ran)
}

func TestAfterCommitDefersInsideTx(t *testing.T) {
	state := &txState{}
	ctx := context.WithValue(context.Background(), txContextKey{}, state)
	ran := false
	AfterCommit(ctx, func(context.Context) { ran = true })
	require.False(t, ran)
	require.Len(t, state.afterCommit, 1)
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "products_business_id_sku_key"})
	require.True(t, IsUniqueViolation(err, ""))
	require.True(t, IsUniqueViolation(err, "products_business_id_sku_key"))
	require.False(t, IsUniqueViolation(err, "other_key"))
	require.False(t, IsUniqueViolation(errors.New("boom"), ""))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
}

func TestRetryable(t *testing.T) {
	require.True(t, retryable(&pgconn.PgError{Code: "40001"}))
	require.True(t, retryable(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "40P01"})))
	require.False(t, retryable(&pgconn.PgError{Code: "23505"}))
	require.False(t, retryable(errors.New("timeout")))
}

func TestNullHelpers(t *testing.T) {
	require.Nil(t, NullInt(0))
	require.Equal(t, int64(4), NullInt(4))
}
