package slack

import (
	"encoding/json"
	"strings"
)

// TypeURLVerification is the envelope type Slack sends once when an
// events URL is registered.
const TypeURLVerification = "url_verification"

// Envelope is the subset of a Slack Events API payload the control plane
// routes on. The rest of the payload is forwarded untouched.
type Envelope struct {
	Type      string
	Challenge string
	TeamID    string
	NestedID  string // team.id
	EventID   string
	EventType string
}

// ParseEnvelope decodes a raw event body. The body must be a JSON object;
// fields with an unexpected shape are left empty rather than failing the
// whole payload.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	env := &Envelope{
		Type:      stringField(fields, "type"),
		Challenge: stringField(fields, "challenge"),
		TeamID:    stringField(fields, "team_id"),
		EventID:   stringField(fields, "event_id"),
	}

	if nested := objectField(fields, "team"); nested != nil {
		env.NestedID = stringField(nested, "id")
	}
	if event := objectField(fields, "event"); event != nil {
		env.EventType = stringField(event, "type")
	}

	return env, nil
}

// IsHandshake reports whether the envelope is a URL verification challenge.
func (e *Envelope) IsHandshake() bool {
	return e.Type == TypeURLVerification
}

// TeamIdentifier returns the team the event belongs to. The top-level
// team_id wins over team.id; ok is false when neither is set.
func (e *Envelope) TeamIdentifier() (string, bool) {
	for _, candidate := range []string{e.TeamID, e.NestedID} {
		if id := strings.TrimSpace(candidate); id != "" {
			return id, true
		}
	}
	return "", false
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func objectField(fields map[string]json.RawMessage, key string) map[string]json.RawMessage {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}
