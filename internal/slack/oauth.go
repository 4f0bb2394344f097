package slack

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Default Slack OAuth v2 endpoints.
const (
	DefaultAuthURL  = "https://slack.com/oauth/v2/authorize"
	DefaultTokenURL = "https://slack.com/api/oauth.v2.access"
)

const stateTTL = 10 * time.Minute

var (
	// ErrInvalidState is returned when an OAuth state value is malformed,
	// forged or expired.
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrOAuthDenied is returned when Slack's token response is not usable.
	ErrOAuthDenied = errors.New("slack oauth exchange rejected")
)

// InstallerConfig configures an Installer.
type InstallerConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// StateSecret signs the state parameter that carries the target
	// instance through the authorize round-trip.
	StateSecret string

	// AuthURL and TokenURL override the Slack endpoints (tests).
	AuthURL  string
	TokenURL string
}

// Installation is the result of a completed OAuth exchange.
type Installation struct {
	TeamID    string
	TeamName  string
	BotToken  string
	BotUserID string
	AppID     string
	Scope     string
}

// Installer drives the Slack "Add to Slack" OAuth v2 flow.
type Installer struct {
	oauth    *oauth2.Config
	scopes   []string
	stateKey []byte
	now      func() time.Time
}

// NewInstaller creates an Installer from cfg.
func NewInstaller(cfg InstallerConfig) *Installer {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	return &Installer{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		scopes:   cfg.Scopes,
		stateKey: []byte(cfg.StateSecret),
		now:      time.Now,
	}
}

// AuthorizeURL returns the Slack authorize URL for installing the app on
// behalf of the given instance.
func (i *Installer) AuthorizeURL(instanceID int64) (string, error) {
	state, err := i.newState(instanceID)
	if err != nil {
		return "", err
	}
	// Slack expects a comma separated scope list, not oauth2's space separated one.
	return i.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("scope", strings.Join(i.scopes, ","))), nil
}

// Exchange trades an authorization code for a bot token.
func (i *Installer) Exchange(ctx context.Context, code string) (*Installation, error) {
	token, err := i.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: %s", ErrOAuthDenied, retrieveErr.ErrorCode)
		}
		return nil, fmt.Errorf("exchanging oauth code: %w", err)
	}

	if ok, _ := token.Extra("ok").(bool); !ok {
		errCode, _ := token.Extra("error").(string)
		return nil, fmt.Errorf("%w: %s", ErrOAuthDenied, errCode)
	}

	inst := &Installation{
		BotToken: token.AccessToken,
	}
	inst.BotUserID, _ = token.Extra("bot_user_id").(string)
	inst.AppID, _ = token.Extra("app_id").(string)
	inst.Scope, _ = token.Extra("scope").(string)

	if team, ok := token.Extra("team").(map[string]interface{}); ok {
		inst.TeamID, _ = team["id"].(string)
		inst.TeamName, _ = team["name"].(string)
	}
	if inst.TeamID == "" {
		return nil, fmt.Errorf("%w: response has no team", ErrOAuthDenied)
	}

	return inst, nil
}

// ParseState validates a state value produced by AuthorizeURL and returns
// the instance it was issued for.
func (i *Installer) ParseState(state string) (int64, error) {
	parts := strings.Split(state, ".")
	if len(parts) != 4 {
		return 0, ErrInvalidState
	}

	payload := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(i.stateMAC(payload)), []byte(parts[3])) {
		return 0, ErrInvalidState
	}

	instanceID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, ErrInvalidState
	}
	issued, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, ErrInvalidState
	}
	if i.now().Sub(time.Unix(issued, 0)) > stateTTL {
		return 0, ErrInvalidState
	}

	return instanceID, nil
}

func (i *Installer) newState(instanceID int64) (string, error) {
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating state nonce: %w", err)
	}
	payload := fmt.Sprintf("%d.%d.%s", instanceID, i.now().Unix(), hex.EncodeToString(nonce))
	return payload + "." + i.stateMAC(payload), nil
}

func (i *Installer) stateMAC(payload string) string {
	mac := hmac.New(sha256.New, i.stateKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
