package reorder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/catalog"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

type stubCatalog struct {
	products []catalog.Product
}

func (c stubCatalog) ListStockCandidates(_ context.Context, businessID int64) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range c.products {
		if p.BusinessID == businessID {
			out = append(out, p)
		}
	}
	return out, nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func product(id int64, name, stock string) catalog.Product {
	return catalog.Product{
		ID:           id,
		BusinessID:   1,
		SKU:          name,
		Name:         name,
		Unit:         "pcs",
		CostPerUnit:  250,
		CurrentStock: dec(stock),
		IsActive:     true,
		TrackStock:   true,
	}
}

func TestSuggestReordersOrdering(t *testing.T) {
	a := product(1, "A", "0")
	b := product(2, "B", "2")
	b.ReorderPoint = ptr("5")
	c := product(3, "C", "8")
	c.ReorderPoint = ptr("5")

	advisor := NewAdvisor(stubCatalog{products: []catalog.Product{c, b, a}}, 10)
	out, err := advisor.SuggestReorders(context.Background(), 1, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, int64(1), out[0].ProductID)
	require.Equal(t, UrgencyCritical, out[0].Urgency)
	require.Equal(t, int64(2), out[1].ProductID)
	require.Equal(t, UrgencyLow, out[1].Urgency)
}

func TestSuggestReordersEligibility(t *testing.T) {
	inactive := product(1, "inactive", "0")
	inactive.IsActive = false
	untracked := product(2, "untracked", "0")
	untracked.TrackStock = false
	byMinimum := product(3, "minimum", "3")
	byMinimum.MinimumStock = dec("3")
	above := product(4, "above", "4")
	above.MinimumStock = dec("3")
	pointWins := product(5, "point", "4")
	pointWins.MinimumStock = dec("10")
	pointWins.ReorderPoint = ptr("2")

	advisor := NewAdvisor(stubCatalog{products: []catalog.Product{inactive, untracked, byMinimum, above, pointWins}}, 10)
	out, err := advisor.SuggestReorders(context.Background(), 1, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(3), out[0].ProductID)
	require.True(t, dec("3").Equal(out[0].Threshold))
}

func TestSuggestedQuantity(t *testing.T) {
	withQty := product(1, "qty", "1")
	withQty.ReorderQuantity = ptr("24")
	withQty.MaximumStock = ptr("50")
	withMax := product(2, "max", "1")
	withMax.MinimumStock = dec("2")
	withMax.MaximumStock = ptr("20")
	fullMax := product(3, "full", "2")
	fullMax.MinimumStock = dec("2")
	fullMax.MaximumStock = ptr("1.5")
	fallback := product(4, "default", "0")

	cases := []struct {
		p    catalog.Product
		want string
	}{
		{withQty, "24"},
		{withMax, "19"},
		{fullMax, "1"},
		{fallback, "6"},
	}
	for _, tc := range cases {
		s, ok := Evaluate(tc.p, dec("6"))
		require.True(t, ok, tc.p.Name)
		require.True(t, dec(tc.want).Equal(s.SuggestedQuantity), "%s: got %s", tc.p.Name, s.SuggestedQuantity)
	}

	s, _ := Evaluate(withMax, dec("6"))
	require.Equal(t, int64(19*250), s.EstimatedCost)
}

func TestSortTieBreaks(t *testing.T) {
	items := []Suggestion{
		{ProductID: 9, Name: "b", Urgency: UrgencyLow, CurrentStock: dec("1")},
		{ProductID: 8, Name: "a", Urgency: UrgencyLow, CurrentStock: dec("1")},
		{ProductID: 7, Name: "z", Urgency: UrgencyLow, CurrentStock: dec("0.5")},
		{ProductID: 6, Name: "y", Urgency: UrgencyCritical, CurrentStock: dec("0")},
	}
	Sort(items)
	ids := make([]int64, 0, len(items))
	for _, s := range items {
		ids = append(ids, s.ProductID)
	}
	require.Equal(t, []int64{6, 7, 8, 9}, ids)
}

func TestSuggestionsEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	advisor := NewAdvisor(stubCatalog{products: []catalog.Product{product(1, "A", "0")}}, 10)
	h := NewHandler(logger, advisor, nil, auth.Middleware{Logger: logger})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithIdentity(req.Context(), shared.Identity{BusinessID: 1, Scopes: []string{auth.ScopeInventoryView}})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reorder-suggestions?default_quantity=4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Suggestions []SuggestionResponse `json:"suggestions"`
		Total       int                  `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, 1, body.Total)
	require.Equal(t, "4", body.Suggestions[0].SuggestedQuantity.String())
	require.Equal(t, "1000", body.Suggestions[0].EstimatedCostDisplay)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reorder-suggestions?default_quantity=-1", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
