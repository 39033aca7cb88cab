package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

type mockRepo struct {
	mu           sync.Mutex
	products     ProductStats
	orders       OrderStats
	byType       []TypeSummary
	top          []ProductUsage
	productCalls int
	orderCalls   int
	typeCalls    int
	orderErr     error
	lastFrom     time.Time
	lastTo       time.Time
}

func (m *mockRepo) ProductStats(ctx context.Context, businessID int64) (ProductStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productCalls++
	return m.products, nil
}

func (m *mockRepo) OrderStats(ctx context.Context, businessID int64) (OrderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderCalls++
	return m.orders, m.orderErr
}

func (m *mockRepo) MovementsByType(ctx context.Context, businessID int64, from, to time.Time) ([]TypeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typeCalls++
	m.lastFrom, m.lastTo = from, to
	return m.byType, nil
}

func (m *mockRepo) TopUsage(ctx context.Context, businessID int64, from, to time.Time, limit int) ([]ProductUsage, error) {
	if limit != topProductsLimit {
		return nil, errors.New("unexpected limit")
	}
	return m.top, nil
}

func newTestService(t *testing.T, repo RepositoryPort) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute))
}

func TestStatsCachesPerTenant(t *testing.T) {
	repo := &mockRepo{
		products: ProductStats{Total: 3, Active: 2, Tracked: 2, StockValue: 1500,
			StatusCounts: map[inventory.StockStatus]int{inventory.StockLow: 1, inventory.StockGood: 1}},
		orders: OrderStats{Open: 1, OpenValue: 9900},
	}
	svc := newTestService(t, repo)
	ctx := context.Background()

	stats, err := svc.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Products.StockValue != 1500 || stats.PurchaseOrders.Open != 1 {
		t.Fatalf("unexpected stats %#v", stats)
	}
	if stats.Products.StatusCounts[inventory.StockLow] != 1 {
		t.Fatalf("expected one low product, got %#v", stats.Products.StatusCounts)
	}

	// Second call should hit cache.
	if _, err := svc.Stats(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.productCalls != 1 || repo.orderCalls != 1 {
		t.Fatalf("expected cached result, repo called %d/%d times", repo.productCalls, repo.orderCalls)
	}

	// Another tenant misses.
	if _, err := svc.Stats(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.productCalls != 2 {
		t.Fatalf("expected tenant 2 to load, calls %d", repo.productCalls)
	}

	// Bumping tenant 1 reloads only tenant 1.
	if err := svc.Invalidate(ctx, 1); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	repo.products.StockValue = 2000
	stats, err = svc.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Products.StockValue != 2000 {
		t.Fatalf("expected refreshed value 2000 got %d", stats.Products.StockValue)
	}
	if _, err := svc.Stats(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.productCalls != 3 {
		t.Fatalf("expected 3 repo calls, got %d", repo.productCalls)
	}
}

func TestStatsErrorIsNotCached(t *testing.T) {
	repo := &mockRepo{orderErr: errors.New("db down")}
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Stats(ctx, 1); err == nil {
		t.Fatalf("expected error")
	}
	repo.orderErr = nil
	if _, err := svc.Stats(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.orderCalls != 2 {
		t.Fatalf("expected reload after failure, calls %d", repo.orderCalls)
	}
}

func TestMovementsDefaultsRange(t *testing.T) {
	repo := &mockRepo{
		byType: []TypeSummary{{Type: inventory.MovementUsage, Count: 2, Quantity: decimal.NewFromInt(5), TotalCost: 900}},
		top:    []ProductUsage{{ProductID: 4, Name: "Shampoo", Quantity: decimal.NewFromInt(5)}},
	}
	svc := newTestService(t, repo)
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	result, err := svc.Movements(context.Background(), 1, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.lastTo.Equal(now) || !repo.lastFrom.Equal(now.Add(-defaultRange)) {
		t.Fatalf("unexpected range %s..%s", repo.lastFrom, repo.lastTo)
	}
	if len(result.ByType) != 1 || len(result.TopProducts) != 1 {
		t.Fatalf("unexpected result %#v", result)
	}

	if _, err := svc.Movements(context.Background(), 1, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.typeCalls != 1 {
		t.Fatalf("expected cached movements, calls %d", repo.typeCalls)
	}

	_, err = svc.Movements(context.Background(), 1, now, now.Add(-time.Hour))
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCacheWithoutRedisLoadsEveryTime(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, nil)
	for i := 0; i < 2; i++ {
		if _, err := svc.Stats(context.Background(), 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if repo.productCalls != 2 {
		t.Fatalf("expected uncached loads, calls %d", repo.productCalls)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	repo := &mockRepo{
		products: ProductStats{StockValue: 1234},
		byType:   []TypeSummary{{Type: inventory.MovementReceive, Count: 1, Quantity: decimal.NewFromInt(3), TotalCost: 450}},
	}
	svc := newTestService(t, repo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, nil, auth.Middleware{Logger: logger})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithIdentity(req.Context(), shared.Identity{BusinessID: 1, Scopes: []string{auth.ScopeInventoryView}})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status %d: %s", rec.Code, rec.Body.String())
	}
	var stats StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.StockValueDisplay != "1234" {
		t.Fatalf("unexpected display %q", stats.StockValueDisplay)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics?from=2026-01-01&to=2026-01-31", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics status %d: %s", rec.Code, rec.Body.String())
	}
	if repo.lastTo.Day() != 31 || repo.lastTo.Hour() != 23 {
		t.Fatalf("expected end of day upper bound, got %s", repo.lastTo)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics?from=jan", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
