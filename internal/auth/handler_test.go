package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newKeyRouter(svc *Service) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := Middleware{Service: svc, Logger: logger}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	NewHandler(logger, svc, mw).MountRoutes(r)
	return r
}

func doRequest(h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestKeyManagementEndpoints(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	admin, err := svc.IssueKey(ctx, 9, 1, "owner", []string{ScopeAll})
	require.NoError(t, err)
	viewer, err := svc.IssueKey(ctx, 9, 2, "viewer", []string{ScopeInventoryView})
	require.NoError(t, err)
	router := newKeyRouter(svc)

	rec := doRequest(router, http.MethodPost, "/keys", viewer.Token, `{"name":"x","scopes":["inventory.view"]}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(router, http.MethodPost, "/keys", admin.Token, `{"name":"x","scopes":["inventory.delete"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/keys", admin.Token, `{"name":"stock room","scopes":["inventory.edit"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issued issueResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&issued))
	require.NotEmpty(t, issued.Token)

	id, err := svc.Authenticate(ctx, issued.Token)
	require.NoError(t, err)
	require.Equal(t, int64(9), id.BusinessID)

	rec = doRequest(router, http.MethodDelete, "/keys/"+issued.ID, admin.Token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(router, http.MethodDelete, "/keys/"+issued.ID, admin.Token, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodPost, "/keys", issued.Token, `{"name":"x","scopes":["*"]}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
