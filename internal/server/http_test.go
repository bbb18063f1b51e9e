package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTP(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewHTTPServer(newTestStore(t), "127.0.0.1:0", NewMetrics(reg), reg).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHealth(t *testing.T) {
	h := newTestHTTP(t)
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestHTTPDocumentLifecycle(t *testing.T) {
	h := newTestHTTP(t)

	for _, doc := range []string{
		`{"name":"Alice","age":30}`,
		`{"name":"Bob","age":25}`,
		`{"name":"Carol","age":40}`,
	} {
		rec := do(t, h, http.MethodPost, "/collections/users/documents", doc)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, "/collections/users/documents/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var alice map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alice))
	assert.Equal(t, "Alice", alice["name"])

	rec = do(t, h, http.MethodPost, "/collections/users/find",
		`{"search":{"keyword":"Alise","fields":["name"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Alice", found[0]["name"])

	rec = do(t, h, http.MethodPost, "/collections/users/find", `{"skip":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodPatch, "/collections/users/documents/2", `{"set":{"age":26}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/collections/users/count",
		`{"filters":[{"field":"age","operator":"=","value":"26"}]}`)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/collections/users/documents/2", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/collections/users/documents/2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/collections/users/delete",
		`{"filters":[{"field":"age","operator":">=","value":30}]}`)
	assert.JSONEq(t, `{"deleted":2}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/collections/users/count", "")
	assert.JSONEq(t, `{"count":0}`, rec.Body.String())
}

func TestHTTPErrors(t *testing.T) {
	h := newTestHTTP(t)

	tests := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodGet, "/collections/users/documents/abc", "", http.StatusBadRequest},
		{http.MethodGet, "/collections/users/documents/9", "", http.StatusNotFound},
		{http.MethodPost, "/collections/users/documents", `not json`, http.StatusBadRequest},
		{http.MethodPost, "/collections/users/find", `{"sort":{"field":"a","direction":"up"}}`, http.StatusBadRequest},
		{http.MethodPost, "/collections/users/find", `{"skip":-1}`, http.StatusBadRequest},
		{http.MethodPost, "/collections/bad.name/find", `{}`, http.StatusBadRequest},
		{http.MethodPatch, "/collections/users/documents/1", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec := do(t, h, tt.method, tt.path, tt.body)
		assert.Equal(t, tt.code, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestHTTPMalformedDeleteKeepsDocuments(t *testing.T) {
	h := newTestHTTP(t)

	for _, doc := range []string{`{"name":"Alice"}`, `{"name":"Bob"}`, `{"name":"Carol"}`} {
		rec := do(t, h, http.MethodPost, "/collections/users/documents", doc)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	for _, body := range []string{
		`{"filters":{"field":"name","operator":"=","value":"Bob"}}`,
		`{"filters":[{"field":"name","operator":"=","value":"Bob"}],"limit":"1"}`,
	} {
		rec := do(t, h, http.MethodPost, "/collections/users/delete", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := do(t, h, http.MethodPost, "/collections/users/count", "")
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())
}

func TestHTTPMetrics(t *testing.T) {
	h := newTestHTTP(t)

	do(t, h, http.MethodPost, "/collections/users/documents", `{"name":"Alice"}`)
	do(t, h, http.MethodPost, "/collections/users/find", `{}`)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `fawldb_operations_total{operation="insert",status="ok"} 1`)
	assert.Contains(t, body, `fawldb_operations_total{operation="find",status="ok"} 1`)
	assert.Contains(t, body, "fawldb_http_requests_total")
}
