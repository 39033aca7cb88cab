package stocktake

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

const business = int64(1)

// memoryStore holds stock, stocktakes and movements so a failed
// reconciliation can be rolled back as a unit.
type memoryStore struct {
	stock      map[int64]decimal.Decimal
	untracked  map[int64]bool
	stocktakes map[int64]Stocktake
	movements  []inventory.Movement
	nextID     int64
}

type memoryTx struct {
	store *memoryStore
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		stock:      map[int64]decimal.Decimal{},
		untracked:  map[int64]bool{},
		stocktakes: map[int64]Stocktake{},
	}
}

func (s *memoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	stock := make(map[int64]decimal.Decimal, len(s.stock))
	for k, v := range s.stock {
		stock[k] = v
	}
	stocktakes := make(map[int64]Stocktake, len(s.stocktakes))
	for k, v := range s.stocktakes {
		stocktakes[k] = v
	}
	n := len(s.movements)
	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.stock, s.stocktakes, s.movements = stock, stocktakes, s.movements[:n]
		return err
	}
	return nil
}

func (s *memoryStore) Get(_ context.Context, businessID, id int64) (Stocktake, error) {
	st, ok := s.stocktakes[id]
	if !ok || st.BusinessID != businessID {
		return Stocktake{}, ErrStocktakeNotFound
	}
	return st, nil
}

func (s *memoryStore) List(_ context.Context, filter Filter) ([]Stocktake, int, error) {
	var out []Stocktake
	for _, st := range s.stocktakes {
		if st.BusinessID == filter.BusinessID {
			st.Lines = nil
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (tx *memoryTx) InsertStocktake(_ context.Context, st Stocktake) (Stocktake, error) {
	st.ID = tx.store.id()
	st.CreatedAt = time.Now()
	tx.store.stocktakes[st.ID] = st
	return st, nil
}

func (tx *memoryTx) LockStock(_ context.Context, _ int64, productID int64) (decimal.Decimal, error) {
	current, ok := tx.store.stock[productID]
	if !ok {
		return decimal.Decimal{}, inventory.ErrProductNotFound
	}
	if tx.store.untracked[productID] {
		return decimal.Decimal{}, inventory.ErrStockNotTracked
	}
	return current, nil
}

func (tx *memoryTx) InsertLine(_ context.Context, line Line) (int64, error) {
	line.ID = tx.store.id()
	st := tx.store.stocktakes[line.StocktakeID]
	st.Lines = append(st.Lines, line)
	tx.store.stocktakes[st.ID] = st
	return line.ID, nil
}

func (tx *memoryTx) FinishStocktake(_ context.Context, id int64, lines, adjustments int) error {
	st := tx.store.stocktakes[id]
	st.LineCount, st.AdjustmentCount = lines, adjustments
	tx.store.stocktakes[id] = st
	return nil
}

type memoryLedger struct {
	store *memoryStore
	fail  map[int64]error
}

func (l *memoryLedger) ApplyMovement(_ context.Context, in inventory.MovementInput) (inventory.MovementResult, error) {
	if err := l.fail[in.ProductID]; err != nil {
		return inventory.MovementResult{}, err
	}
	prev := l.store.stock[in.ProductID]
	next, err := inventory.NextStock(in.Type, prev, in.Quantity)
	if err != nil {
		return inventory.MovementResult{}, err
	}
	l.store.stock[in.ProductID] = next
	m := inventory.Movement{
		ID:            l.store.id(),
		BusinessID:    in.BusinessID,
		ProductID:     in.ProductID,
		Type:          in.Type,
		Quantity:      in.Quantity,
		PreviousStock: prev,
		NewStock:      next,
		Reason:        in.Reason,
		RefModule:     in.RefModule,
		RefID:         in.RefID,
	}
	l.store.movements = append(l.store.movements, m)
	return inventory.MovementResult{Movement: m, PreviousStock: prev, NewStock: next}, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestService() (*Service, *memoryStore, *memoryLedger, *recordingAudit) {
	store := newMemoryStore()
	store.stock[10] = dec("5")
	store.stock[20] = dec("3")
	store.stock[30] = dec("0")
	ledger := &memoryLedger{store: store, fail: map[int64]error{}}
	audit := &recordingAudit{}
	return NewService(store, ledger, audit), store, ledger, audit
}

func TestReconcileMatchingCountsBookNothing(t *testing.T) {
	svc, store, _, audit := newTestService()

	result, err := svc.Reconcile(context.Background(), business, 7, "monthly", []Count{
		{ProductID: 10, CountedQuantity: dec("5")},
		{ProductID: 20, CountedQuantity: dec("3.000")},
	})
	require.NoError(t, err)
	require.Empty(t, result.Adjustments)
	require.NotNil(t, result.Adjustments)
	require.Empty(t, store.movements)
	require.Equal(t, 2, result.Stocktake.LineCount)
	require.Zero(t, result.Stocktake.AdjustmentCount)
	for _, line := range result.Stocktake.Lines {
		require.Nil(t, line.MovementID)
		require.True(t, line.Discrepancy.IsZero())
	}
	require.Len(t, audit.logs, 1)
	require.Equal(t, "stocktake:reconcile", audit.logs[0].Action)
}

func TestReconcileBooksSurplusAndShortage(t *testing.T) {
	svc, store, _, _ := newTestService()

	result, err := svc.Reconcile(context.Background(), business, 7, "", []Count{
		{ProductID: 20, CountedQuantity: dec("1")},
		{ProductID: 10, CountedQuantity: dec("8")},
		{ProductID: 30, CountedQuantity: dec("0")},
	})
	require.NoError(t, err)
	require.Len(t, result.Adjustments, 2)

	require.Equal(t, int64(10), result.Adjustments[0].ProductID)
	require.True(t, dec("3").Equal(result.Adjustments[0].Discrepancy))
	require.True(t, dec("5").Equal(result.Adjustments[0].PreviousStock))
	require.Equal(t, int64(20), result.Adjustments[1].ProductID)
	require.True(t, dec("-2").Equal(result.Adjustments[1].Discrepancy))

	require.True(t, dec("8").Equal(store.stock[10]))
	require.True(t, dec("1").Equal(store.stock[20]))
	require.Len(t, store.movements, 2)
	require.Equal(t, reasonSurplus, store.movements[0].Reason)
	require.Equal(t, reasonShortage, store.movements[1].Reason)
	for _, m := range store.movements {
		require.Equal(t, inventory.MovementAdjustment, m.Type)
		require.Equal(t, inventory.RefStocktake, m.RefModule)
		require.Equal(t, result.Stocktake.ID, m.RefID)
	}

	saved, err := svc.Get(context.Background(), business, result.Stocktake.ID)
	require.NoError(t, err)
	require.Len(t, saved.Lines, 3)
	require.Equal(t, 2, saved.AdjustmentCount)
}

func TestReconcileIsAtomic(t *testing.T) {
	svc, store, ledger, audit := newTestService()
	ledger.fail[20] = errors.New("boom")

	_, err := svc.Reconcile(context.Background(), business, 7, "", []Count{
		{ProductID: 10, CountedQuantity: dec("9")},
		{ProductID: 20, CountedQuantity: dec("0")},
	})
	require.Error(t, err)
	require.True(t, dec("5").Equal(store.stock[10]))
	require.Empty(t, store.movements)
	require.Empty(t, store.stocktakes)
	require.Empty(t, audit.logs)
}

func TestReconcileValidation(t *testing.T) {
	cases := []struct {
		name   string
		counts []Count
		target error
	}{
		{"empty", nil, shared.ErrInvalidInput},
		{"missing product", []Count{{CountedQuantity: dec("1")}}, shared.ErrInvalidInput},
		{"negative", []Count{{ProductID: 10, CountedQuantity: dec("-1")}}, inventory.ErrNegativeLevel},
		{"duplicate", []Count{{ProductID: 10, CountedQuantity: dec("1")}, {ProductID: 10, CountedQuantity: dec("2")}}, shared.ErrInvalidInput},
		{"unknown product", []Count{{ProductID: 99, CountedQuantity: dec("1")}}, inventory.ErrProductNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _, _ := newTestService()
			_, err := svc.Reconcile(context.Background(), business, 7, "", tc.counts)
			require.ErrorIs(t, err, tc.target)
			require.Empty(t, store.stocktakes)
		})
	}
}

func TestReconcileRejectsUntrackedProduct(t *testing.T) {
	svc, store, _, _ := newTestService()
	store.untracked[30] = true

	_, err := svc.Reconcile(context.Background(), business, 7, "", []Count{{ProductID: 30, CountedQuantity: dec("2")}})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
