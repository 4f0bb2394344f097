package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Inventory backends.
const (
	InventoryCloud      = "cloud"
	InventoryKubernetes = "kubernetes"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"VERSION" default:"dev"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// SlackSigningSecret has no default on purpose: events cannot be
	// verified without it.
	SlackSigningSecret string   `envconfig:"SLACK_SIGNING_SECRET" required:"true"`
	SlackClientID      string   `envconfig:"SLACK_CLIENT_ID" default:""`
	SlackClientSecret  string   `envconfig:"SLACK_CLIENT_SECRET" default:""`
	SlackRedirectURL   string   `envconfig:"SLACK_REDIRECT_URL" default:""`
	SlackScopes        []string `envconfig:"SLACK_SCOPES" default:"app_mentions:read,chat:write,channels:history,im:history"`

	ForwardTimeout time.Duration `envconfig:"FORWARD_TIMEOUT" default:"5s"`

	InventoryBackend      string `envconfig:"INVENTORY_BACKEND" default:"cloud"`
	CloudAPIURL           string `envconfig:"CLOUD_API_URL" default:"https://api.hetzner.cloud/v1"`
	CloudAPIToken         string `envconfig:"CLOUD_API_TOKEN" default:""`
	InstanceDomainSuffix  string `envconfig:"INSTANCE_DOMAIN_SUFFIX" required:"true"`
	InstanceLabelSelector string `envconfig:"INSTANCE_LABEL_SELECTOR" default:"app=iaap-instance"`
	KubeconfigPath        string `envconfig:"KUBECONFIG_PATH" default:""`
	Namespace             string `envconfig:"NAMESPACE" default:"default"`

	PreloadInterval int `envconfig:"PRELOAD_INTERVAL" default:"0"`

	AdminAPIKeyHash string `envconfig:"ADMIN_API_KEY_HASH" default:""`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	switch cfg.InventoryBackend {
	case InventoryCloud, InventoryKubernetes:
	default:
		return nil, fmt.Errorf("INVENTORY_BACKEND must be %q or %q, got %q", InventoryCloud, InventoryKubernetes, cfg.InventoryBackend)
	}

	if cfg.ForwardTimeout <= 0 {
		return nil, fmt.Errorf("FORWARD_TIMEOUT must be positive, got %s", cfg.ForwardTimeout)
	}

	return &cfg, nil
}

// OAuthEnabled reports whether the Slack OAuth install flow is configured.
func (c *Config) OAuthEnabled() bool {
	return c.SlackClientID != "" && c.SlackClientSecret != ""
}

// AdminEnabled reports whether admin routes can be authenticated.
func (c *Config) AdminEnabled() bool {
	return c.AdminAPIKeyHash != ""
}
