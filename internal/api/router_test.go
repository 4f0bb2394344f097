package api_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"sigs.k8s.io/yaml"

	specpkg "github.com/daap14/iaap/api"
	"github.com/daap14/iaap/internal/api"
	"github.com/daap14/iaap/internal/auth"
	"github.com/daap14/iaap/internal/forwarder"
	"github.com/daap14/iaap/internal/installation"
	"github.com/daap14/iaap/internal/inventory"
	"github.com/daap14/iaap/internal/k8s"
	"github.com/daap14/iaap/internal/slack"
)

// openAPISpec is the minimal structure needed to extract paths from the OpenAPI document.
type openAPISpec struct {
	Paths map[string]map[string]interface{} `json:"paths"`
}

// --- Noop implementations to satisfy RouterDeps interfaces ---

type noopHealthChecker struct{}

func (n *noopHealthChecker) CheckConnectivity(_ context.Context) k8s.ConnectivityStatus {
	return k8s.ConnectivityStatus{Connected: false}
}

type noopPinger struct{}

func (n *noopPinger) Ping(_ context.Context) error { return nil }

type noopRegistry struct{}

func (n *noopRegistry) Resolve(_ context.Context, _ string) (*installation.TeamMapping, bool) {
	return nil, false
}
func (n *noopRegistry) ListCached() []installation.TeamMapping { return nil }
func (n *noopRegistry) Preload(_ context.Context) (int, error)  { return 0, nil }
func (n *noopRegistry) Save(_ context.Context, _ installation.TeamMapping) error {
	return nil
}

type noopRelay struct{}

func (n *noopRelay) Forward(_ context.Context, _ string, _ []byte, _ http.Header) forwarder.Result {
	return forwarder.Result{Success: true}
}

type noopInventory struct{}

func (n *noopInventory) ListInstances(_ context.Context) ([]inventory.Instance, error) {
	return nil, nil
}
func (n *noopInventory) GetInstance(_ context.Context, _ int64) (*inventory.Instance, error) {
	return nil, inventory.ErrInstanceNotFound
}

// --- Helpers ---

func newAdminService(t *testing.T) (*auth.Service, string) {
	t.Helper()
	rawKey, hash, err := auth.GenerateKey(bcrypt.MinCost)
	require.NoError(t, err)
	return auth.NewService(hash), rawKey
}

func fullDeps(t *testing.T) (api.RouterDeps, string) {
	t.Helper()
	authService, rawKey := newAdminService(t)
	return api.RouterDeps{
		K8sChecker:  &noopHealthChecker{},
		DBPinger:    &noopPinger{},
		Version:     "test",
		OpenAPISpec: specpkg.OpenAPISpec,
		Verifier:    slack.NewVerifier("router-secret"),
		Registry:    &noopRegistry{},
		Relay:       &noopRelay{},
		Installer: slack.NewInstaller(slack.InstallerConfig{
			ClientID:     "id",
			ClientSecret: "secret",
			StateSecret:  "router-secret",
		}),
		Inventory:   &noopInventory{},
		AuthService: authService,
	}, rawKey
}

// --- Tests ---

func TestOpenAPISpec_RoutesCoverAllPaths(t *testing.T) {
	t.Parallel()

	specJSON, err := yaml.YAMLToJSON(specpkg.OpenAPISpec)
	require.NoError(t, err, "embedded document must convert to JSON")

	var spec openAPISpec
	require.NoError(t, yaml.Unmarshal(specJSON, &spec), "document JSON must unmarshal")

	specRoutes := extractSpecRoutes(t, spec)
	require.NotEmpty(t, specRoutes, "OpenAPI document should define at least one route")

	deps, _ := fullDeps(t)
	chiRoutes := extractChiRoutes(t, api.NewRouter(deps))
	require.NotEmpty(t, chiRoutes, "Chi router should have at least one route")

	for _, sr := range specRoutes {
		t.Run(fmt.Sprintf("documented_%s_%s_has_Chi_route", sr.method, sr.path), func(t *testing.T) {
			assert.Contains(t, chiRoutes, sr, "documented route %s %s not found in Chi router", sr.method, sr.path)
		})
	}

	for _, cr := range chiRoutes {
		t.Run(fmt.Sprintf("Chi_%s_%s_is_documented", cr.method, cr.path), func(t *testing.T) {
			assert.Contains(t, specRoutes, cr, "Chi route %s %s not found in OpenAPI document", cr.method, cr.path)
		})
	}
}

func TestRouter_OptionalRoutes(t *testing.T) {
	t.Parallel()

	deps, _ := fullDeps(t)
	deps.Installer = nil
	deps.AuthService = nil

	routes := extractChiRoutes(t, api.NewRouter(deps))

	assert.Contains(t, routes, route{method: "POST", path: "/slack/events"})
	assert.Contains(t, routes, route{method: "GET", path: "/health"})
	assert.NotContains(t, routes, route{method: "GET", path: "/slack/install"})
	assert.NotContains(t, routes, route{method: "GET", path: "/admin/slack/teams"})
	assert.NotContains(t, routes, route{method: "GET", path: "/instances"})
}

func TestRouter_AdminRequiresAPIKey(t *testing.T) {
	t.Parallel()

	deps, rawKey := fullDeps(t)
	router := api.NewRouter(deps)

	for _, path := range []string{"/admin/slack/teams", "/instances"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("X-API-Key", "iaap_wrong")
			w = httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			req = httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("X-API-Key", rawKey)
			w = httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestRouter_SlackEventsIsPublic(t *testing.T) {
	t.Parallel()

	deps, _ := fullDeps(t)
	router := api.NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/slack/events",
		bytes.NewBufferString(`{"type":"url_verification","challenge":"c"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"challenge":"c"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

type route struct {
	method string
	path   string
}

func extractSpecRoutes(t *testing.T, spec openAPISpec) []route {
	t.Helper()
	var routes []route
	for path, methods := range spec.Paths {
		for method := range methods {
			routes = append(routes, route{
				method: strings.ToUpper(method),
				path:   path,
			})
		}
	}
	sortRoutes(routes)
	return routes
}

func extractChiRoutes(t *testing.T, r *chi.Mux) []route {
	t.Helper()
	var routes []route
	walkFunc := func(method, routePath string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		// Chi subroutes produce trailing slashes (e.g. /instances/).
		normalized := strings.TrimRight(routePath, "/")
		if normalized == "" {
			normalized = "/"
		}
		routes = append(routes, route{method: method, path: normalized})
		return nil
	}
	require.NoError(t, chi.Walk(r, walkFunc), "chi.Walk should not error")
	sortRoutes(routes)
	return routes
}

func sortRoutes(routes []route) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].path == routes[j].path {
			return routes[i].method < routes[j].method
		}
		return routes[i].path < routes[j].path
	})
}
