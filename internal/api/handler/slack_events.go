package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/daap14/iaap/internal/api/middleware"
	"github.com/daap14/iaap/internal/api/response"
	"github.com/daap14/iaap/internal/forwarder"
	"github.com/daap14/iaap/internal/installation"
	"github.com/daap14/iaap/internal/slack"
)

// Warnings returned with a 200 so Slack does not retry events that can
// never be delivered.
const (
	WarningNoTeam      = "No team_id in payload"
	WarningUnknownTeam = "Team not registered"
)

const maxEventBodyBytes = 1 << 20

// SignatureVerifier authenticates a raw Slack request body.
type SignatureVerifier interface {
	Verify(body []byte, signature, timestamp string) error
}

// TeamResolver maps a Slack team to the instance serving it.
type TeamResolver interface {
	Resolve(ctx context.Context, teamID string) (*installation.TeamMapping, bool)
}

// EventRelay delivers an event to an instance. It reports failures as data.
type EventRelay interface {
	Forward(ctx context.Context, domain string, payload []byte, headers http.Header) forwarder.Result
}

type slackAck struct {
	OK      bool   `json:"ok"`
	Warning string `json:"warning,omitempty"`
}

type slackError struct {
	Error string `json:"error"`
}

type slackChallenge struct {
	Challenge string `json:"challenge"`
}

// SlackEventsHandler handles POST /slack/events.
type SlackEventsHandler struct {
	verifier SignatureVerifier
	teams    TeamResolver
	relay    EventRelay
}

// NewSlackEventsHandler creates a new SlackEventsHandler.
func NewSlackEventsHandler(verifier SignatureVerifier, teams TeamResolver, relay EventRelay) *SlackEventsHandler {
	return &SlackEventsHandler{
		verifier: verifier,
		teams:    teams,
		relay:    relay,
	}
}

// ServeHTTP acknowledges a Slack event and relays it to the team's instance
// in the background. Once the payload is valid JSON and authentic, the
// response is always a 200.
func (h *SlackEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := middleware.Logger(r.Context())

	// The signature covers the exact bytes Slack sent, so keep them as-is.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBodyBytes))
	if err != nil {
		logger.Warn("slack event: failed to read body", "error", err)
		response.Raw(w, http.StatusBadRequest, slackError{Error: "Invalid JSON"})
		return
	}

	env, err := slack.ParseEnvelope(body)
	if err != nil {
		response.Raw(w, http.StatusBadRequest, slackError{Error: "Invalid JSON"})
		return
	}

	if env.IsHandshake() {
		logger.Info("slack event: url verification handshake")
		response.Raw(w, http.StatusOK, slackChallenge{Challenge: env.Challenge})
		return
	}

	signature := r.Header.Get(slack.HeaderSignature)
	timestamp := r.Header.Get(slack.HeaderTimestamp)
	if err := h.verifier.Verify(body, signature, timestamp); err != nil {
		logger.Warn("slack event: signature rejected", "error", err)
		response.Raw(w, http.StatusUnauthorized, slackError{Error: "Invalid signature"})
		return
	}

	teamID, ok := env.TeamIdentifier()
	if !ok {
		logger.Warn("slack event: payload has no team id", "type", env.Type, "event_type", env.EventType)
		response.Raw(w, http.StatusOK, slackAck{OK: true, Warning: WarningNoTeam})
		return
	}

	mapping, ok := h.teams.Resolve(r.Context(), teamID)
	if !ok {
		logger.Warn("slack event: team not registered", "team_id", teamID)
		response.Raw(w, http.StatusOK, slackAck{OK: true, Warning: WarningUnknownTeam})
		return
	}

	headers := http.Header{}
	headers.Set(slack.HeaderSignature, signature)
	headers.Set(slack.HeaderTimestamp, timestamp)

	// Best effort: the relay outlives the request and is lost if the
	// process exits first.
	ctx := context.WithoutCancel(r.Context())
	logger = logger.With("team_id", teamID, "domain", mapping.Domain, "event_id", env.EventID, "retry", r.Header.Get("X-Slack-Retry-Num"))
	go func() {
		result := h.relay.Forward(ctx, mapping.Domain, body, headers)
		if !result.Success {
			logger.Warn("slack event: forward failed", "error", result.Error)
			return
		}
		logger.Debug("slack event: forwarded")
	}()

	response.Raw(w, http.StatusOK, slackAck{OK: true})
}
