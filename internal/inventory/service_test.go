package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	products  map[int64]StockLevel
	movements []Movement
	batches   map[int64]string
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(levels ...StockLevel) *memoryRepo {
	repo := &memoryRepo{products: make(map[int64]StockLevel), batches: make(map[int64]string)}
	for _, l := range levels {
		repo.products[l.ProductID] = l
	}
	return repo
}

// WithTx holds the repo lock for the whole callback, standing in for the row lock.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]StockLevel, len(r.products))
	for k, v := range r.products {
		snapshot[k] = v
	}
	count := len(r.movements)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.products = snapshot
		r.movements = r.movements[:count]
		return err
	}
	return nil
}

func (r *memoryRepo) ListMovements(_ context.Context, filter MovementFilter) ([]Movement, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for _, m := range r.movements {
		if m.BusinessID != filter.BusinessID {
			continue
		}
		if filter.ProductID != 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.RefModule != "" && (m.RefModule != filter.RefModule || m.RefID != filter.RefID) {
			continue
		}
		if !filter.From.IsZero() && m.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && m.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, m)
	}
	return out, len(out), nil
}

func (tx *memoryTx) LockProduct(_ context.Context, businessID, productID int64) (StockLevel, error) {
	level, ok := tx.repo.products[productID]
	if !ok || level.BusinessID != businessID {
		return StockLevel{}, ErrProductNotFound
	}
	return level, nil
}

func (tx *memoryTx) InsertMovement(_ context.Context, m Movement) (int64, time.Time, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	m.CreatedAt = time.Now()
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, m.CreatedAt, nil
}

func (tx *memoryTx) UpdateStock(_ context.Context, update StockUpdate) error {
	level, ok := tx.repo.products[update.ProductID]
	if !ok {
		return ErrProductNotFound
	}
	level.CurrentStock = update.CurrentStock
	tx.repo.products[update.ProductID] = level
	if update.BatchNumber != "" {
		tx.repo.batches[update.ProductID] = update.BatchNumber
	}
	return nil
}

type recordingHooks struct {
	mu     sync.Mutex
	events []MovementAppliedEvent
}

func (h *recordingHooks) HandleMovementApplied(_ context.Context, evt MovementAppliedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, evt)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func shampoo(stock string) StockLevel {
	return StockLevel{
		BusinessID:   1,
		ProductID:    10,
		Name:         "Shampoo",
		Unit:         "bottle",
		CostPerUnit:  450,
		CurrentStock: dec(stock),
		MinimumStock: dec("5"),
		TrackStock:   true,
		IsActive:     true,
	}
}

func TestNextStock(t *testing.T) {
	cases := []struct {
		kind    MovementType
		prev    string
		qty     string
		want    string
		wantErr error
	}{
		{MovementReceive, "10", "5", "15", nil},
		{MovementReturn, "0", "2.5", "2.5", nil},
		{MovementUsage, "10", "3", "7", nil},
		{MovementUsage, "2", "5", "0", nil},
		{MovementDamage, "1", "1", "0", nil},
		{MovementExpired, "4", "10", "0", nil},
		{MovementTransfer, "10", "4", "6", nil},
		{MovementTransfer, "3", "4", "3", ErrInsufficientStock},
		{MovementAdjustment, "10", "7", "7", nil},
		{MovementAdjustment, "10", "0", "0", nil},
		{MovementType("gift"), "10", "1", "10", ErrUnknownMovementType},
	}
	for _, tc := range cases {
		got, err := NextStock(tc.kind, dec(tc.prev), dec(tc.qty))
		if tc.wantErr != nil {
			require.ErrorIs(t, err, tc.wantErr, tc.kind)
			continue
		}
		require.NoError(t, err)
		require.True(t, dec(tc.want).Equal(got), "%s %s %s: got %s", tc.kind, tc.prev, tc.qty, got)
	}
}

func TestApplyMovementReceiveAndUsage(t *testing.T) {
	repo := newMemoryRepo(shampoo("10"))
	hooks := &recordingHooks{}
	svc := NewService(repo, nil, hooks)
	ctx := context.Background()

	res, err := svc.ApplyMovement(ctx, MovementInput{BusinessID: 1, ProductID: 10, Type: MovementReceive, Quantity: dec("5"), BatchNumber: "B-77"})
	require.NoError(t, err)
	require.True(t, dec("10").Equal(res.PreviousStock))
	require.True(t, dec("15").Equal(res.NewStock))
	require.Equal(t, "bottle", res.Movement.Unit)
	require.Equal(t, int64(450), *res.Movement.UnitCost)
	require.Equal(t, int64(2250), *res.Movement.TotalCost)
	require.Equal(t, "B-77", repo.batches[10])

	res, err = svc.ApplyMovement(ctx, MovementInput{BusinessID: 1, ProductID: 10, Type: MovementUsage, Quantity: dec("12")})
	require.NoError(t, err)
	require.True(t, dec("3").Equal(res.NewStock))

	require.Len(t, hooks.events, 2)
	require.Equal(t, StockGood, hooks.events[0].Status)
	require.Equal(t, StockLow, hooks.events[1].Status)
	require.Equal(t, "Shampoo", hooks.events[1].ProductName)
}

func TestApplyMovementClampsAtZero(t *testing.T) {
	repo := newMemoryRepo(shampoo("2"))
	hooks := &recordingHooks{}
	svc := NewService(repo, nil, hooks)

	res, err := svc.ApplyMovement(context.Background(), MovementInput{BusinessID: 1, ProductID: 10, Type: MovementUsage, Quantity: dec("5")})
	require.NoError(t, err)
	require.True(t, res.NewStock.IsZero())
	require.Equal(t, StockOut, hooks.events[0].Status)
}

func TestApplyMovementAdjustmentSetsAbsoluteLevel(t *testing.T) {
	repo := newMemoryRepo(shampoo("10"))
	svc := NewService(repo, nil, nil)
	cost := int64(100)

	res, err := svc.ApplyMovement(context.Background(), MovementInput{BusinessID: 1, ProductID: 10, Type: MovementAdjustment, Quantity: dec("7"), UnitCost: &cost})
	require.NoError(t, err)
	require.True(t, dec("7").Equal(res.NewStock))
	require.True(t, dec("7").Equal(repo.products[10].CurrentStock))
	require.Equal(t, int64(300), *res.Movement.TotalCost)

	res, err = svc.ApplyMovement(context.Background(), MovementInput{BusinessID: 1, ProductID: 10, Type: MovementAdjustment, Quantity: decimal.Zero})
	require.NoError(t, err)
	require.True(t, res.NewStock.IsZero())
}

func TestApplyMovementTransferInsufficientLeavesStateUntouched(t *testing.T) {
	repo := newMemoryRepo(shampoo("3"))
	hooks := &recordingHooks{}
	svc := NewService(repo, nil, hooks)

	_, err := svc.ApplyMovement(context.Background(), MovementInput{BusinessID: 1, ProductID: 10, Type: MovementTransfer, Quantity: dec("4")})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.True(t, dec("3").Equal(repo.products[10].CurrentStock))
	require.Empty(t, repo.movements)
	require.Empty(t, hooks.events)
}

func TestApplyMovementValidation(t *testing.T) {
	untracked := shampoo("5")
	untracked.ProductID = 11
	untracked.TrackStock = false
	repo := newMemoryRepo(shampoo("5"), untracked)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	negCost := int64(-1)

	cases := []struct {
		name  string
		input MovementInput
		want  error
	}{
		{"zero quantity", MovementInput{BusinessID: 1, ProductID: 10, Type: MovementReceive, Quantity: decimal.Zero}, ErrQuantityNotPositive},
		{"negative quantity", MovementInput{BusinessID: 1, ProductID: 10, Type: MovementUsage, Quantity: dec("-1")}, ErrQuantityNotPositive},
		{"negative adjustment", MovementInput{BusinessID: 1, ProductID: 10, Type: MovementAdjustment, Quantity: dec("-1")}, ErrNegativeLevel},
		{"unknown type", MovementInput{BusinessID: 1, ProductID: 10, Type: "gift", Quantity: dec("1")}, ErrUnknownMovementType},
		{"negative cost", MovementInput{BusinessID: 1, ProductID: 10, Type: MovementReceive, Quantity: dec("1"), UnitCost: &negCost}, ErrInvalidUnitCost},
		{"missing product", MovementInput{BusinessID: 1, ProductID: 99, Type: MovementReceive, Quantity: dec("1")}, ErrProductNotFound},
		{"other tenant", MovementInput{BusinessID: 2, ProductID: 10, Type: MovementReceive, Quantity: dec("1")}, ErrProductNotFound},
		{"untracked", MovementInput{BusinessID: 1, ProductID: 11, Type: MovementReceive, Quantity: dec("1")}, ErrStockNotTracked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ApplyMovement(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, repo.movements)
}

func TestLedgerReplayMatchesCurrentStock(t *testing.T) {
	repo := newMemoryRepo(shampoo("0"))
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	steps := []struct {
		kind MovementType
		qty  string
	}{
		{MovementReceive, "20"},
		{MovementUsage, "3.5"},
		{MovementDamage, "1"},
		{MovementTransfer, "5"},
		{MovementReturn, "2"},
		{MovementAdjustment, "11"},
		{MovementExpired, "20"},
		{MovementReceive, "4"},
	}
	for _, st := range steps {
		_, err := svc.ApplyMovement(ctx, MovementInput{BusinessID: 1, ProductID: 10, Type: st.kind, Quantity: dec(st.qty)})
		require.NoError(t, err)
	}

	history, total, err := svc.ListMovements(ctx, MovementFilter{BusinessID: 1, ProductID: 10})
	require.NoError(t, err)
	require.Equal(t, len(steps), total)

	level := decimal.Zero
	for _, m := range history {
		require.True(t, level.Equal(m.PreviousStock), "movement %d previous %s, expected %s", m.ID, m.PreviousStock, level)
		level, err = NextStock(m.Type, level, m.Quantity)
		require.NoError(t, err)
		require.True(t, level.Equal(m.NewStock))
	}
	require.True(t, level.Equal(repo.products[10].CurrentStock))
	require.True(t, dec("4").Equal(level))
}

func TestConcurrentMovementsSerialize(t *testing.T) {
	repo := newMemoryRepo(shampoo("100"))
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyMovement(ctx, MovementInput{BusinessID: 1, ProductID: 10, Type: MovementReceive, Quantity: dec("10")})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.ApplyMovement(ctx, MovementInput{BusinessID: 1, ProductID: 10, Type: MovementUsage, Quantity: dec("3")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.True(t, dec("240").Equal(repo.products[10].CurrentStock))
	require.Len(t, repo.movements, 40)
}

func TestListMovementsValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, _, err := svc.ListMovements(context.Background(), MovementFilter{})
	require.True(t, errors.Is(err, shared.ErrInvalidInput))
	_, _, err = svc.ListMovements(context.Background(), MovementFilter{BusinessID: 1, Type: "bogus"})
	require.ErrorIs(t, err, ErrUnknownMovementType)
}

func TestDeriveStatus(t *testing.T) {
	maximum := dec("50")
	require.Equal(t, StockOut, DeriveStatus(decimal.Zero, dec("5"), &maximum))
	require.Equal(t, StockLow, DeriveStatus(dec("5"), dec("5"), &maximum))
	require.Equal(t, StockGood, DeriveStatus(dec("50"), dec("5"), &maximum))
	require.Equal(t, StockOverstock, DeriveStatus(dec("51"), dec("5"), &maximum))
	require.Equal(t, StockGood, DeriveStatus(dec("500"), dec("5"), nil))
}
