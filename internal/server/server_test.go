package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/cache"
	"studio/internal/page"
)

type staticPages []*page.Meta

func (s staticPages) ListPages() ([]*page.Meta, error) {
	return s, nil
}

func newTestServer(t *testing.T, pages staticPages, templates map[string]any) *httptest.Server {
	t.Helper()
	s := New(cache.NewMetadataManager(pages, cache.Policy{}), Options{Templates: templates})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string) (map[string]any, int) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return out, resp.StatusCode
}

func TestResolveGetNamedTemplate(t *testing.T) {
	ts := newTestServer(t, nil, map[string]any{
		"contact": map[string]any{"fields": []any{"name", "email"}},
	})

	env, status := getJSON(t, ts.URL+"/api/resolve?code=contact&type=template")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, env["success"])
	assert.Equal(t, "contact", env["code"])
	assert.Equal(t, "template", env["type"])
	assert.Equal(t, map[string]any{"fields": []any{"name", "email"}}, env["data"])
	assert.Equal(t, "remote", env["source"])
}

func TestResolveGetUnknownCodeIsEmptyObject(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	env, status := getJSON(t, ts.URL+"/api/resolve?code=nope")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, env["success"])
	assert.Equal(t, map[string]any{}, env["data"])
}

func TestResolvePostEchoesFormData(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	body, _ := json.Marshal(map[string]any{
		"id":       "req-9",
		"formData": map[string]any{"name": "Ada"},
	})
	resp, err := http.Post(ts.URL+"/api/resolve", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "req-9", env["id"])
	assert.Equal(t, map[string]any{"name": "Ada"}, env["data"])
}

func TestResolvePostMalformedBody(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp, err := http.Post(ts.URL+"/api/resolve", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPageEndpoints(t *testing.T) {
	ts := newTestServer(t, staticPages{
		{ID: "a", Name: "Alpha"},
		{ID: "b", Name: "Beta"},
	}, nil)

	resp, err := http.Get(ts.URL + "/api/pages")
	require.NoError(t, err)
	defer resp.Body.Close()
	var pages []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pages))
	assert.Len(t, pages, 2)

	pg, status := getJSON(t, ts.URL+"/api/pages/b")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Beta", pg["name"])

	_, status = getJSON(t, ts.URL+"/api/pages/zzz")
	assert.Equal(t, http.StatusNotFound, status)
}
