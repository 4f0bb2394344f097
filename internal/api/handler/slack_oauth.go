package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/daap14/iaap/internal/api/middleware"
	"github.com/daap14/iaap/internal/api/response"
	"github.com/daap14/iaap/internal/installation"
	"github.com/daap14/iaap/internal/inventory"
	"github.com/daap14/iaap/internal/slack"
)

// InstallFlow is the Slack OAuth v2 flow used to install the app.
type InstallFlow interface {
	AuthorizeURL(instanceID int64) (string, error)
	ParseState(state string) (int64, error)
	Exchange(ctx context.Context, code string) (*slack.Installation, error)
}

// InstanceGetter looks up a single provisioned instance.
type InstanceGetter interface {
	GetInstance(ctx context.Context, id int64) (*inventory.Instance, error)
}

// TeamSaver persists a team mapping.
type TeamSaver interface {
	Save(ctx context.Context, m installation.TeamMapping) error
}

// SlackOAuthHandler handles the Slack app installation endpoints.
type SlackOAuthHandler struct {
	flow      InstallFlow
	instances InstanceGetter
	teams     TeamSaver
	now       func() time.Time
}

// NewSlackOAuthHandler creates a new SlackOAuthHandler.
func NewSlackOAuthHandler(flow InstallFlow, instances InstanceGetter, teams TeamSaver) *SlackOAuthHandler {
	return &SlackOAuthHandler{
		flow:      flow,
		instances: instances,
		teams:     teams,
		now:       time.Now,
	}
}

// Install handles GET /slack/install?instance={id} by redirecting to
// Slack's authorize page.
func (h *SlackOAuthHandler) Install(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	instanceID, err := strconv.ParseInt(r.URL.Query().Get("instance"), 10, 64)
	if err != nil || instanceID <= 0 {
		response.Err(w, http.StatusBadRequest, "INVALID_INSTANCE", "instance must be a positive integer", requestID)
		return
	}

	if _, ok := h.lookupInstance(w, r, instanceID); !ok {
		return
	}

	authURL, err := h.flow.AuthorizeURL(instanceID)
	if err != nil {
		middleware.Logger(r.Context()).Error("failed to build slack authorize url", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start installation", requestID)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /slack/oauth/callback. It exchanges the code for a
// bot token and routes the installing team to the instance named in state.
func (h *SlackOAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	logger := middleware.Logger(r.Context())
	query := r.URL.Query()

	if oauthErr := query.Get("error"); oauthErr != "" {
		logger.Info("slack installation cancelled", "error", oauthErr)
		response.Err(w, http.StatusBadRequest, "OAUTH_DENIED", "Slack installation was not authorized", requestID)
		return
	}

	code := query.Get("code")
	if code == "" {
		response.Err(w, http.StatusBadRequest, "MISSING_CODE", "code is required", requestID)
		return
	}

	instanceID, err := h.flow.ParseState(query.Get("state"))
	if err != nil {
		logger.Warn("slack oauth state rejected", "error", err)
		response.Err(w, http.StatusBadRequest, "INVALID_STATE", "Installation link is invalid or has expired", requestID)
		return
	}

	// Authorization codes are single-use, so check the instance before
	// spending the code.
	instance, ok := h.lookupInstance(w, r, instanceID)
	if !ok {
		return
	}
	if instance.Domain == "" {
		logger.Error("instance has no routable domain", "instance_id", instanceID)
		response.Err(w, http.StatusConflict, "INSTANCE_NOT_ROUTABLE", "Instance has no domain", requestID)
		return
	}

	inst, err := h.flow.Exchange(r.Context(), code)
	if err != nil {
		logger.Error("slack oauth exchange failed", "error", err)
		response.Err(w, http.StatusBadGateway, "OAUTH_EXCHANGE_FAILED", "Failed to complete Slack installation", requestID)
		return
	}

	mapping := installation.TeamMapping{
		TeamID:      inst.TeamID,
		TeamName:    inst.TeamName,
		Domain:      instance.Domain,
		InstanceID:  instance.ID,
		BotToken:    inst.BotToken,
		InstalledAt: h.now().UTC(),
	}
	if err := h.teams.Save(r.Context(), mapping); err != nil {
		logger.Error("failed to save team mapping", "error", err, "mapping", mapping)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save installation", requestID)
		return
	}

	logger.Info("slack app installed", "mapping", mapping, "bot_user_id", inst.BotUserID)
	response.Success(w, http.StatusOK, toTeamCacheResponse([]installation.TeamMapping{mapping}).Teams[0], requestID)
}

func (h *SlackOAuthHandler) lookupInstance(w http.ResponseWriter, r *http.Request, id int64) (*inventory.Instance, bool) {
	requestID := middleware.GetRequestID(r.Context())

	instance, err := h.instances.GetInstance(r.Context(), id)
	if err != nil {
		if errors.Is(err, inventory.ErrInstanceNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Instance not found", requestID)
			return nil, false
		}
		middleware.Logger(r.Context()).Error("failed to look up instance", "error", err, "instance_id", id)
		response.Err(w, http.StatusBadGateway, "INVENTORY_UNAVAILABLE", "Failed to look up instance", requestID)
		return nil, false
	}
	return instance, true
}
