package inventory

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Labels read from provisioned instances.
const (
	LabelSubdomain  = "iaap.io/subdomain"
	LabelInstanceID = "iaap.io/instance-id"
)

// ErrInstanceNotFound is returned when an instance does not exist in the inventory.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrProvisioningUnsupported is returned by backends that can only list instances.
var ErrProvisioningUnsupported = errors.New("backend does not support provisioning")

// Instance is a provisioned compute node running the agent software.
type Instance struct {
	ID         int64
	Name       string
	Subdomain  string
	Domain     string
	Status     string
	PublicIPv4 string
	CreatedAt  time.Time
}

// Lister reads the current set of provisioned instances.
type Lister interface {
	ListInstances(ctx context.Context) ([]Instance, error)
	GetInstance(ctx context.Context, id int64) (*Instance, error)
}

// CreateParams holds the fields of a provisioning request.
type CreateParams struct {
	Name       string
	Subdomain  string
	ServerType string
	Image      string
	Location   string
}

// Provisioner creates new instances.
type Provisioner interface {
	CreateInstance(ctx context.Context, params CreateParams) (*Instance, error)
}

// DomainFor derives the public hostname of an instance from its subdomain
// label (or name, when the label is absent) and the configured suffix.
func DomainFor(subdomain, name, suffix string) string {
	host := strings.TrimSpace(subdomain)
	if host == "" {
		host = strings.TrimSpace(name)
	}
	if host == "" {
		return ""
	}
	suffix = strings.Trim(strings.TrimSpace(suffix), ".")
	if suffix == "" {
		return strings.ToLower(host)
	}
	return strings.ToLower(host + "." + suffix)
}
