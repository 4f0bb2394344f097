package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	specpkg "github.com/daap14/iaap/api"
	"github.com/daap14/iaap/internal/api/handler"
)

func TestOpenAPIHandler_ReturnsJSON(t *testing.T) {
	t.Parallel()

	yamlDoc := []byte(`openapi: "3.1.0"
info:
  title: Test API
  version: "1.0.0"
paths: {}
`)
	h := handler.NewOpenAPIHandler(yamlDoc)
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err, "response should be valid JSON")

	assert.Equal(t, "3.1.0", result["openapi"])
	info := result["info"].(map[string]interface{})
	assert.Equal(t, "Test API", info["title"])
	assert.Contains(t, result, "paths")
}

func TestOpenAPIHandler_InvalidYAML_Returns500(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler([]byte(`{{{not yaml at all}}}`))
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}

func TestOpenAPIHandler_CachesConversion(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler([]byte(`openapi: "3.1.0"
info:
  title: Cache Test
  version: "1.0.0"
paths: {}
`))

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, w1.Body.String(), w2.Body.String(), "cached response should be identical")
}

func TestOpenAPIHandler_EmbeddedDocument(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, specpkg.OpenAPISpec, "embedded OpenAPI document should not be empty")

	h := handler.NewOpenAPIHandler(specpkg.OpenAPISpec)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result), "embedded document should produce valid JSON")

	assert.Equal(t, "3.1.0", result["openapi"])
	info := result["info"].(map[string]interface{})
	assert.Equal(t, "IAAP API", info["title"])
	paths := result["paths"].(map[string]interface{})
	assert.Contains(t, paths, "/slack/events")
}
