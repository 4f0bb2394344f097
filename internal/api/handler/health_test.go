package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/iaap/internal/api/handler"
	"github.com/daap14/iaap/internal/k8s"
)

// mockHealthChecker implements k8s.HealthChecker for testing.
type mockHealthChecker struct {
	status k8s.ConnectivityStatus
}

func (m *mockHealthChecker) CheckConnectivity(_ context.Context) k8s.ConnectivityStatus {
	return m.status
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

func getHealth(t *testing.T, h *handler.HealthHandler) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Nil(t, env["error"])
	assert.NotNil(t, env["meta"])
	return env["data"].(map[string]interface{})
}

func TestHealthHandler_Healthy(t *testing.T) {
	t.Parallel()

	checker := &mockHealthChecker{status: k8s.ConnectivityStatus{Connected: true, Version: "v1.31.0"}}
	h := handler.NewHealthHandler(&mockPinger{}, checker, "0.1.0")

	data := getHealth(t, h)

	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "0.1.0", data["version"])
	assert.Equal(t, true, data["database"].(map[string]interface{})["connected"])

	k8sStatus := data["kubernetes"].(map[string]interface{})
	assert.Equal(t, true, k8sStatus["connected"])
	assert.Equal(t, "v1.31.0", k8sStatus["version"])
}

func TestHealthHandler_WithoutKubernetes(t *testing.T) {
	t.Parallel()

	h := handler.NewHealthHandler(&mockPinger{}, nil, "0.1.0")

	data := getHealth(t, h)

	assert.Equal(t, "healthy", data["status"])
	assert.NotContains(t, data, "kubernetes")
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	t.Parallel()

	h := handler.NewHealthHandler(&mockPinger{err: errors.New("connection refused")}, nil, "0.1.0")

	data := getHealth(t, h)

	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, false, data["database"].(map[string]interface{})["connected"])
}

func TestHealthHandler_KubernetesDown(t *testing.T) {
	t.Parallel()

	checker := &mockHealthChecker{status: k8s.ConnectivityStatus{Connected: false}}
	h := handler.NewHealthHandler(&mockPinger{}, checker, "0.1.0")

	data := getHealth(t, h)

	assert.Equal(t, "degraded", data["status"])
	k8sStatus := data["kubernetes"].(map[string]interface{})
	assert.Equal(t, false, k8sStatus["connected"])
	assert.Nil(t, k8sStatus["version"])
}
