package inventory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/platform/money"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// filterCapture remembers the last history filter the handler built.
type filterCapture struct {
	*memoryRepo
	last MovementFilter
}

func (c *filterCapture) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	c.last = filter
	return c.memoryRepo.ListMovements(ctx, filter)
}

func newTestRouter(t *testing.T, repo RepositoryPort, scopes ...string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	formatter, err := money.NewFormatter("USD", "en-US")
	require.NoError(t, err)
	h := NewHandler(logger, NewService(repo, nil, nil), formatter, auth.Middleware{Logger: logger})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithIdentity(req.Context(), shared.Identity{BusinessID: 1, UserID: 7, Scopes: scopes})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type adjustmentResponse struct {
	Movement      MovementResponse `json:"movement"`
	PreviousStock decimal.Decimal  `json:"previous_stock"`
	NewStock      decimal.Decimal  `json:"new_stock"`
}

func TestStockAdjustmentRejectsMissingQuantity(t *testing.T) {
	repo := newMemoryRepo(shampoo("20"))
	router := newTestRouter(t, repo, auth.ScopeInventoryEdit)

	for _, body := range []string{
		`{"product_id":10,"type":"adjustment"}`,
		`{"product_id":10,"type":"adjustment","quantity":null}`,
		`{"product_id":10,"type":"usage"}`,
	} {
		rec := serve(router, http.MethodPost, "/stock-adjustment", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.Contains(t, rec.Body.String(), "Quantity")
	}
	require.Equal(t, "20", repo.products[10].CurrentStock.String())
	require.Empty(t, repo.movements)
}

func TestStockAdjustmentValidation(t *testing.T) {
	repo := newMemoryRepo(shampoo("20"))
	router := newTestRouter(t, repo, auth.ScopeInventoryEdit)

	cases := map[string]struct {
		body string
		code int
	}{
		"unknown type":      {`{"product_id":10,"type":"gift","quantity":"1"}`, http.StatusBadRequest},
		"missing product":   {`{"type":"receive","quantity":"1"}`, http.StatusBadRequest},
		"bad expiry":        {`{"product_id":10,"type":"receive","quantity":"1","expiry_date":"31/03/2027"}`, http.StatusBadRequest},
		"negative cost":     {`{"product_id":10,"type":"receive","quantity":"1","unit_cost":-5}`, http.StatusBadRequest},
		"zero usage":        {`{"product_id":10,"type":"usage","quantity":"0"}`, http.StatusBadRequest},
		"unknown field":     {`{"product_id":10,"type":"receive","quantity":"1","colour":"red"}`, http.StatusBadRequest},
		"unknown product":   {`{"product_id":99,"type":"receive","quantity":"1"}`, http.StatusNotFound},
		"transfer too much": {`{"product_id":10,"type":"transfer","quantity":"25"}`, http.StatusConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(router, http.MethodPost, "/stock-adjustment", tc.body)
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
	require.Equal(t, "20", repo.products[10].CurrentStock.String())
	require.Empty(t, repo.movements)
}

func TestStockAdjustmentAppliesMovement(t *testing.T) {
	repo := newMemoryRepo(shampoo("20"))
	router := newTestRouter(t, repo, auth.ScopeInventoryEdit)

	rec := serve(router, http.MethodPost, "/stock-adjustment",
		`{"product_id":10,"type":"receive","quantity":"3","unit_cost":450,"batch_number":"B-7","expiry_date":"2027-03-31"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp adjustmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "20", resp.PreviousStock.String())
	require.Equal(t, "23", resp.NewStock.String())
	require.NotNil(t, resp.Movement.ExpiryDate)
	require.Equal(t, "2027-03-31", resp.Movement.ExpiryDate.Format("2006-01-02"))
	require.Equal(t, "B-7", resp.Movement.BatchNumber)
	require.Contains(t, resp.Movement.UnitCostDisplay, "4.50")
	require.Contains(t, resp.Movement.TotalCostDisplay, "13.50")

	// An explicit zero is a legitimate absolute level.
	rec = serve(router, http.MethodPost, "/stock-adjustment", `{"product_id":10,"type":"adjustment","quantity":"0","reason":"write-off"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.NewStock.IsZero())
	require.True(t, repo.products[10].CurrentStock.IsZero())
	require.Len(t, repo.movements, 2)
}

func TestStockMovementsFilters(t *testing.T) {
	repo := &filterCapture{memoryRepo: newMemoryRepo(shampoo("20"))}
	edit := newTestRouter(t, repo, auth.ScopeInventoryEdit)
	for _, body := range []string{
		`{"product_id":10,"type":"receive","quantity":"5"}`,
		`{"product_id":10,"type":"usage","quantity":"2"}`,
	} {
		require.Equal(t, http.StatusCreated, serve(edit, http.MethodPost, "/stock-adjustment", body).Code)
	}
	router := newTestRouter(t, repo, auth.ScopeInventoryView)

	rec := serve(router, http.MethodGet, "/stock-movements?product_id=10&type=usage", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page shared.Page[MovementResponse]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, MovementUsage, page.Items[0].Type)
	require.NotEmpty(t, page.Items[0].TotalCostDisplay)
	require.Equal(t, int64(10), repo.last.ProductID)
	require.Equal(t, int64(1), repo.last.BusinessID)

	rec = serve(router, http.MethodGet, "/stock-movements?from=2020-01-01&to=2020-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Zero(t, page.Total)
	require.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), repo.last.From)
	require.Equal(t, time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), repo.last.To)

	rec = serve(router, http.MethodGet, "/stock-movements?ref_module=purchase_order&ref_id=5&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, RefPurchaseOrder, repo.last.RefModule)
	require.Equal(t, int64(5), repo.last.RefID)
	require.Equal(t, 5, repo.last.Limit)

	for _, query := range []string{"product_id=abc", "ref_id=-1", "from=yesterday", "type=gift"} {
		rec = serve(router, http.MethodGet, "/stock-movements?"+query, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestStockAdjustmentRequiresEditScope(t *testing.T) {
	repo := newMemoryRepo(shampoo("20"))
	router := newTestRouter(t, repo, auth.ScopeInventoryView)

	rec := serve(router, http.MethodPost, "/stock-adjustment", `{"product_id":10,"type":"receive","quantity":"1"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, repo.movements)

	rec = serve(router, http.MethodGet, "/stock-movements", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
