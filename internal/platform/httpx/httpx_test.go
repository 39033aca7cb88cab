package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

func TestRespondErrorMapsClasses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{shared.InvalidInput("sku required"), http.StatusBadRequest, "Validation Failed"},
		{fmt.Errorf("%w: product", shared.ErrNotFound), http.StatusNotFound, "Not Found"},
		{fmt.Errorf("%w: duplicate sku", shared.ErrConflict), http.StatusConflict, "Conflict"},
		{fmt.Errorf("%w: draft -> received", shared.ErrInvalidState), http.StatusConflict, "Invalid State"},
		{shared.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{shared.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		var body ProblemDetail
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Equal(t, tc.title, body.Title)
		if tc.status == http.StatusInternalServerError {
			require.Empty(t, body.Detail)
		} else {
			require.Equal(t, tc.err.Error(), body.Detail)
		}
	}
}

type bindTarget struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=0"`
}

func TestBind(t *testing.T) {
	var target bindTarget
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"gloves","count":2}`))
	require.NoError(t, Bind(req, &target))
	require.Equal(t, "gloves", target.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":-1}`))
	err := Bind(req, &bindTarget{})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	require.Contains(t, err.Error(), "bindTarget.Name failed required")
	require.Contains(t, err.Error(), "bindTarget.Count failed gte")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":true}`))
	require.ErrorIs(t, Bind(req, &bindTarget{}), shared.ErrInvalidInput)
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?vendor_id=7&active=false&from=2026-03-01&limit=500&offset=-3", nil)

	id, err := QueryInt64(req, "vendor_id")
	require.NoError(t, err)
	require.Equal(t, int64(7), id)

	missing, err := QueryInt64(req, "category_id")
	require.NoError(t, err)
	require.Zero(t, missing)

	active, err := QueryBool(req, "active")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.False(t, *active)

	from, err := QueryDate(req, "from", false)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), from)
	to, err := QueryDate(req, "from", true)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 23, 59, 59, 999999999, time.UTC), to)

	limit, offset := Page(req, 20, 200)
	require.Equal(t, 200, limit)
	require.Zero(t, offset)

	_, err = PathInt64("0", "id")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = PathInt64("abc", "id")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	bad := httptest.NewRequest(http.MethodGet, "/?active=maybe&from=03-01-2026", nil)
	_, err = QueryBool(bad, "active")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = QueryDate(bad, "from", false)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}
