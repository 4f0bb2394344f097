package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/iaap/internal/api/middleware"
	"github.com/daap14/iaap/internal/auth"
)

const testBcryptCost = 4

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// --- RequestID ---

func TestRequestID_GeneratesNewID(t *testing.T) {
	var capturedID string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = middleware.GetRequestID(r.Context())
		assert.NotNil(t, middleware.Logger(r.Context()))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	_, err := uuid.Parse(capturedID)
	assert.NoError(t, err, "generated request ID should be a valid UUID")
	assert.Equal(t, capturedID, w.Header().Get("X-Request-ID"))
}

func TestRequestID_UsesExistingHeader(t *testing.T) {
	var capturedID string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = middleware.GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, "upstream-id", capturedID)
	assert.Equal(t, "upstream-id", w.Header().Get("X-Request-ID"))
}

func TestLogger_FallsBackToDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.NotNil(t, middleware.Logger(req.Context()))
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

// --- Recovery ---

func TestRecovery_HandlesPanic(t *testing.T) {
	handler := middleware.RequestID(middleware.Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-panic")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := parseEnvelope(t, w)
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "INTERNAL_ERROR", apiErr["code"])
	assert.Equal(t, "req-panic", env["meta"].(map[string]interface{})["requestId"])
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := middleware.Recovery(okHandler())
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Auth ---

func TestAuth(t *testing.T) {
	rawKey, hash, err := auth.GenerateKey(testBcryptCost)
	require.NoError(t, err)
	svc := auth.NewService(hash)

	var identity *auth.Identity
	handler := middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity = middleware.GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		key        string
		wantStatus int
		wantMsg    string
	}{
		{name: "missing key", key: "", wantStatus: http.StatusUnauthorized, wantMsg: "API key is required"},
		{name: "wrong key", key: "iaap_not-the-right-key-at-all", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid API key"},
		{name: "valid key", key: rawKey, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity = nil
			req := httptest.NewRequest(http.MethodGet, "/admin/slack/teams", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				env := parseEnvelope(t, w)
				apiErr := env["error"].(map[string]interface{})
				assert.Equal(t, "UNAUTHORIZED", apiErr["code"])
				assert.Equal(t, tt.wantMsg, apiErr["message"])
				assert.Nil(t, identity)
				return
			}
			require.NotNil(t, identity)
			assert.Equal(t, "admin", identity.Name)
		})
	}
}
