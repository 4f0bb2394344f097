package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/daap14/iaap/internal/api/middleware"
	"github.com/daap14/iaap/internal/api/response"
	"github.com/daap14/iaap/internal/api/validation"
	"github.com/daap14/iaap/internal/inventory"
)

// InstanceLister lists provisioned instances.
type InstanceLister interface {
	ListInstances(ctx context.Context) ([]inventory.Instance, error)
}

type createInstanceRequest struct {
	Name       string `json:"name"`
	Subdomain  string `json:"subdomain"`
	ServerType string `json:"serverType"`
	Image      string `json:"image"`
	Location   string `json:"location"`
}

type instanceResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Subdomain  string  `json:"subdomain"`
	Domain     string  `json:"domain"`
	Status     string  `json:"status"`
	PublicIPv4 *string `json:"publicIpv4"`
	CreatedAt  *string `json:"createdAt"`
}

func toInstanceResponse(inst *inventory.Instance) instanceResponse {
	resp := instanceResponse{
		ID:        inst.ID,
		Name:      inst.Name,
		Subdomain: inst.Subdomain,
		Domain:    inst.Domain,
		Status:    inst.Status,
	}
	if inst.PublicIPv4 != "" {
		ip := inst.PublicIPv4
		resp.PublicIPv4 = &ip
	}
	if !inst.CreatedAt.IsZero() {
		createdAt := inst.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.CreatedAt = &createdAt
	}
	return resp
}

// InstanceHandler handles the /instances endpoints.
type InstanceHandler struct {
	lister      InstanceLister
	provisioner inventory.Provisioner
}

// NewInstanceHandler creates a new InstanceHandler. provisioner may be nil
// when the inventory backend cannot create instances.
func NewInstanceHandler(lister InstanceLister, provisioner inventory.Provisioner) *InstanceHandler {
	return &InstanceHandler{lister: lister, provisioner: provisioner}
}

// List handles GET /instances.
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	instances, err := h.lister.ListInstances(r.Context())
	if err != nil {
		middleware.Logger(r.Context()).Error("failed to list instances", "error", err)
		response.Err(w, http.StatusBadGateway, "INVENTORY_UNAVAILABLE", "Failed to list instances", requestID)
		return
	}

	items := make([]instanceResponse, 0, len(instances))
	for i := range instances {
		items = append(items, toInstanceResponse(&instances[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Create handles POST /instances.
func (h *InstanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	logger := middleware.Logger(r.Context())

	if h.provisioner == nil {
		response.Err(w, http.StatusNotImplemented, "NOT_SUPPORTED", "The inventory backend cannot provision instances", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateInstanceRequest(validation.CreateInstanceRequest{
		Name:       req.Name,
		Subdomain:  req.Subdomain,
		ServerType: req.ServerType,
		Image:      req.Image,
		Location:   req.Location,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	inst, err := h.provisioner.CreateInstance(r.Context(), inventory.CreateParams{
		Name:       req.Name,
		Subdomain:  req.Subdomain,
		ServerType: req.ServerType,
		Image:      req.Image,
		Location:   req.Location,
	})
	if err != nil {
		if errors.Is(err, inventory.ErrProvisioningUnsupported) {
			response.Err(w, http.StatusNotImplemented, "NOT_SUPPORTED", "The inventory backend cannot provision instances", requestID)
			return
		}
		logger.Error("failed to create instance", "error", err, "name", req.Name)
		response.Err(w, http.StatusBadGateway, "PROVISIONING_FAILED", "Failed to create instance", requestID)
		return
	}

	logger.Info("instance created", "instance_id", inst.ID, "name", inst.Name, "domain", inst.Domain)
	response.Success(w, http.StatusCreated, toInstanceResponse(inst), requestID)
}
