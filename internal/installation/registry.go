package installation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/daap14/iaap/internal/inventory"
)

// InstanceSource lists the instances that are currently provisioned.
type InstanceSource interface {
	ListInstances(ctx context.Context) ([]inventory.Instance, error)
}

// DefaultLookupTimeout bounds the repository read on a cache miss. Slack
// expects an acknowledgement within three seconds.
const DefaultLookupTimeout = 1500 * time.Millisecond

// Registry resolves Slack team ids to the instance that serves them. It
// fronts the Repository with an in-process cache that lives as long as
// the Registry; entries never expire.
type Registry struct {
	repo          Repository
	instances     InstanceSource
	lookupTimeout time.Duration

	mu    sync.RWMutex
	cache map[string]TeamMapping
	// retired holds teams whose instance was missing at the last Preload.
	// They resolve as unknown until saved again.
	retired map[string]struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLookupTimeout overrides DefaultLookupTimeout.
func WithLookupTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.lookupTimeout = d
	}
}

// NewRegistry creates a Registry with an empty cache.
func NewRegistry(repo Repository, instances InstanceSource, opts ...RegistryOption) *Registry {
	r := &Registry{
		repo:          repo,
		instances:     instances,
		lookupTimeout: DefaultLookupTimeout,
		cache:         make(map[string]TeamMapping),
		retired:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the mapping for teamID, consulting the cache first.
// Repository failures and slow reads (past the lookup timeout) are logged
// and reported as a miss so that event acknowledgement never depends on
// the database being reachable. Teams pruned by Preload stay unknown.
func (r *Registry) Resolve(ctx context.Context, teamID string) (*TeamMapping, bool) {
	r.mu.RLock()
	cached, ok := r.cache[teamID]
	_, retired := r.retired[teamID]
	r.mu.RUnlock()
	if ok {
		return &cached, true
	}
	if retired {
		return nil, false
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	m, err := r.repo.GetByTeamID(lookupCtx, teamID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("registry: team lookup failed, treating as unknown", "team_id", teamID, "error", err)
		}
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A Preload that ran while the read was in flight wins.
	if _, pruned := r.retired[m.TeamID]; pruned {
		return nil, false
	}
	r.cache[m.TeamID] = *m

	return m, true
}

// Save persists m and caches it, replacing any previous mapping for the
// same team. Nothing is cached when persisting fails.
func (r *Registry) Save(ctx context.Context, m TeamMapping) error {
	if m.TeamID == "" {
		return errors.New("team mapping has no team id")
	}

	if err := r.repo.Upsert(ctx, &m); err != nil {
		return fmt.Errorf("saving team mapping: %w", err)
	}

	r.mu.Lock()
	r.cache[m.TeamID] = m
	delete(r.retired, m.TeamID)
	r.mu.Unlock()

	slog.Info("registry: team mapping saved", "mapping", m)
	return nil
}

// Preload rebuilds the cache from persisted mappings whose instance is
// still provisioned and returns the number of cached entries. Domains are
// taken from the inventory when it reports one, so a renamed instance is
// picked up without a reinstall. The previous cache contents are replaced.
// Teams whose instance is gone resolve as unknown until saved again.
func (r *Registry) Preload(ctx context.Context) (int, error) {
	instances, err := r.instances.ListInstances(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing instances: %w", err)
	}

	mappings, err := r.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing team mappings: %w", err)
	}

	byID := make(map[int64]inventory.Instance, len(instances))
	for _, inst := range instances {
		byID[inst.ID] = inst
	}

	fresh := make(map[string]TeamMapping, len(mappings))
	retired := make(map[string]struct{})
	for _, m := range mappings {
		inst, ok := byID[m.InstanceID]
		if !ok {
			slog.Debug("registry: skipping mapping for missing instance", "mapping", m)
			retired[m.TeamID] = struct{}{}
			continue
		}
		if inst.Domain != "" && inst.Domain != m.Domain {
			slog.Info("registry: instance domain changed", "team_id", m.TeamID, "from", m.Domain, "to", inst.Domain)
			m.Domain = inst.Domain
		}
		fresh[m.TeamID] = m
	}

	r.mu.Lock()
	r.cache = fresh
	r.retired = retired
	r.mu.Unlock()

	slog.Info("registry: preloaded team mappings", "count", len(fresh), "instances", len(instances))
	return len(fresh), nil
}

// ListCached returns a snapshot of the cache ordered by team id.
func (r *Registry) ListCached() []TeamMapping {
	r.mu.RLock()
	mappings := make([]TeamMapping, 0, len(r.cache))
	for _, m := range r.cache {
		mappings = append(mappings, m)
	}
	r.mu.RUnlock()

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].TeamID < mappings[j].TeamID
	})
	return mappings
}
