package handler

import (
	"context"
	"net/http"

	"github.com/daap14/iaap/internal/api/middleware"
	"github.com/daap14/iaap/internal/api/response"
	"github.com/daap14/iaap/internal/k8s"
)

// DBPinger checks database reachability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db         DBPinger
	k8sChecker k8s.HealthChecker
	version    string
}

// NewHealthHandler creates a new HealthHandler. checker is nil unless
// instances are discovered through Kubernetes.
func NewHealthHandler(db DBPinger, checker k8s.HealthChecker, version string) *HealthHandler {
	return &HealthHandler{
		db:         db,
		k8sChecker: checker,
		version:    version,
	}
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type kubernetesStatus struct {
	Connected bool    `json:"connected"`
	Version   *string `json:"version"`
}

type healthData struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Database   databaseStatus    `json:"database"`
	Kubernetes *kubernetesStatus `json:"kubernetes,omitempty"`
}

// ServeHTTP handles the health check request. Degraded dependencies are
// reported in the body; the status code stays 200.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := "healthy"

	dbConnected := true
	if err := h.db.Ping(r.Context()); err != nil {
		middleware.Logger(r.Context()).Warn("health: database ping failed", "error", err)
		dbConnected = false
		status = "degraded"
	}

	data := healthData{
		Status:   status,
		Version:  h.version,
		Database: databaseStatus{Connected: dbConnected},
	}

	if h.k8sChecker != nil {
		connectivity := h.k8sChecker.CheckConnectivity(r.Context())
		var k8sVersion *string
		if connectivity.Connected {
			k8sVersion = &connectivity.Version
		} else {
			data.Status = "degraded"
		}
		data.Kubernetes = &kubernetesStatus{
			Connected: connectivity.Connected,
			Version:   k8sVersion,
		}
	}

	response.Success(w, http.StatusOK, data, requestID)
}
