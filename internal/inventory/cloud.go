package inventory

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	k8slabels "k8s.io/apimachinery/pkg/labels"
)

// CloudLister lists and provisions instances through the Hetzner Cloud API.
type CloudLister struct {
	client        *hcloud.Client
	labelSelector string
	domainSuffix  string
}

// CloudOption configures a CloudLister.
type CloudOption func(*cloudOptions)

type cloudOptions struct {
	endpoint string
	version  string
}

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) CloudOption {
	return func(o *cloudOptions) {
		o.endpoint = endpoint
	}
}

// WithVersion sets the application version reported in the User-Agent.
func WithVersion(version string) CloudOption {
	return func(o *cloudOptions) {
		o.version = version
	}
}

// NewCloudLister creates a CloudLister authenticated with token. Only
// servers matching labelSelector are considered part of the fleet.
func NewCloudLister(token, labelSelector, domainSuffix string, opts ...CloudOption) *CloudLister {
	o := &cloudOptions{version: "dev"}
	for _, opt := range opts {
		opt(o)
	}

	clientOpts := []hcloud.ClientOption{
		hcloud.WithToken(token),
		hcloud.WithApplication("iaap", o.version),
	}
	if o.endpoint != "" {
		clientOpts = append(clientOpts, hcloud.WithEndpoint(o.endpoint))
	}

	return &CloudLister{
		client:        hcloud.NewClient(clientOpts...),
		labelSelector: labelSelector,
		domainSuffix:  domainSuffix,
	}
}

// ListInstances returns every server matching the label selector.
func (c *CloudLister) ListInstances(ctx context.Context) ([]Instance, error) {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: c.labelSelector},
	})
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}

	instances := make([]Instance, 0, len(servers))
	for _, s := range servers {
		instances = append(instances, c.toInstance(s))
	}
	return instances, nil
}

// GetInstance returns a single server by id.
func (c *CloudLister) GetInstance(ctx context.Context, id int64) (*Instance, error) {
	server, _, err := c.client.Server.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting server %d: %w", id, err)
	}
	if server == nil {
		return nil, ErrInstanceNotFound
	}

	inst := c.toInstance(server)
	return &inst, nil
}

// CreateInstance provisions a new server. It returns as soon as the API
// accepts the request; the server boots asynchronously.
func (c *CloudLister) CreateInstance(ctx context.Context, params CreateParams) (*Instance, error) {
	// New servers carry the fleet selector so they show up in ListInstances.
	labels, err := k8slabels.ConvertSelectorToLabelsMap(c.labelSelector)
	if err != nil {
		return nil, fmt.Errorf("label selector %q is not an equality selector: %w", c.labelSelector, err)
	}
	if params.Subdomain != "" {
		labels[LabelSubdomain] = params.Subdomain
	}

	opts := hcloud.ServerCreateOpts{
		Name:       params.Name,
		ServerType: &hcloud.ServerType{Name: params.ServerType},
		Image:      &hcloud.Image{Name: params.Image},
		Labels:     map[string]string(labels),
	}
	if params.Location != "" {
		opts.Location = &hcloud.Location{Name: params.Location}
	}

	result, _, err := c.client.Server.Create(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating server %s: %w", params.Name, err)
	}

	inst := c.toInstance(result.Server)
	return &inst, nil
}

func (c *CloudLister) toInstance(s *hcloud.Server) Instance {
	subdomain := s.Labels[LabelSubdomain]
	inst := Instance{
		ID:        s.ID,
		Name:      s.Name,
		Subdomain: subdomain,
		Domain:    DomainFor(subdomain, s.Name, c.domainSuffix),
		Status:    string(s.Status),
		CreatedAt: s.Created,
	}
	if s.PublicNet.IPv4.IP != nil {
		inst.PublicIPv4 = s.PublicNet.IPv4.IP.String()
	}
	return inst
}
