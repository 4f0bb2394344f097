package handler

import (
	"context"
	"net/http"

	"github.com/daap14/iaap/internal/api/middleware"
	"github.com/daap14/iaap/internal/api/response"
	"github.com/daap14/iaap/internal/installation"
)

// TeamCache exposes the registry's in-process cache for diagnostics.
type TeamCache interface {
	ListCached() []installation.TeamMapping
	Preload(ctx context.Context) (int, error)
}

type teamMappingResponse struct {
	TeamID      string  `json:"teamId"`
	TeamName    string  `json:"teamName"`
	Domain      string  `json:"domain"`
	InstanceID  int64   `json:"instanceId"`
	InstalledAt *string `json:"installedAt"`
}

type teamCacheResponse struct {
	Teams  []teamMappingResponse `json:"teams"`
	Count  int                   `json:"count"`
	Loaded *int                  `json:"loaded,omitempty"`
}

func toTeamCacheResponse(mappings []installation.TeamMapping) teamCacheResponse {
	items := make([]teamMappingResponse, 0, len(mappings))
	for _, m := range mappings {
		item := teamMappingResponse{
			TeamID:     m.TeamID,
			TeamName:   m.TeamName,
			Domain:     m.Domain,
			InstanceID: m.InstanceID,
		}
		if !m.InstalledAt.IsZero() {
			installedAt := m.InstalledAt.UTC().Format("2006-01-02T15:04:05Z")
			item.InstalledAt = &installedAt
		}
		items = append(items, item)
	}
	return teamCacheResponse{Teams: items, Count: len(items)}
}

// SlackTeamsHandler handles the /admin/slack/teams diagnostic endpoints.
type SlackTeamsHandler struct {
	cache TeamCache
}

// NewSlackTeamsHandler creates a new SlackTeamsHandler.
func NewSlackTeamsHandler(cache TeamCache) *SlackTeamsHandler {
	return &SlackTeamsHandler{cache: cache}
}

// List handles GET /admin/slack/teams. It reads the cache only.
func (h *SlackTeamsHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	response.Success(w, http.StatusOK, toTeamCacheResponse(h.cache.ListCached()), requestID)
}

// Preload handles POST /admin/slack/teams by rebuilding the cache from
// the database and the instance inventory.
func (h *SlackTeamsHandler) Preload(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	loaded, err := h.cache.Preload(r.Context())
	if err != nil {
		middleware.Logger(r.Context()).Error("failed to preload team mappings", "error", err)
		response.Err(w, http.StatusBadGateway, "PRELOAD_FAILED", "Failed to preload team mappings", requestID)
		return
	}

	data := toTeamCacheResponse(h.cache.ListCached())
	data.Loaded = &loaded
	response.Success(w, http.StatusOK, data, requestID)
}
