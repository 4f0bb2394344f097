package api

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/iaap/internal/api/handler"
	"github.com/daap14/iaap/internal/api/middleware"
	"github.com/daap14/iaap/internal/auth"
	"github.com/daap14/iaap/internal/inventory"
	"github.com/daap14/iaap/internal/k8s"
)

// TeamRegistry is the registry surface used by the HTTP layer.
type TeamRegistry interface {
	handler.TeamResolver
	handler.TeamCache
	handler.TeamSaver
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	K8sChecker  k8s.HealthChecker
	DBPinger    handler.DBPinger
	Version     string
	OpenAPISpec []byte

	Verifier handler.SignatureVerifier
	Registry TeamRegistry
	Relay    handler.EventRelay

	// Installer is nil when Slack OAuth is not configured.
	Installer handler.InstallFlow

	Inventory   inventory.Lister
	Provisioner inventory.Provisioner

	// AuthService is nil when no admin key is configured; admin routes are
	// then not mounted.
	AuthService *auth.Service
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.K8sChecker, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	eventsHandler := handler.NewSlackEventsHandler(deps.Verifier, deps.Registry, deps.Relay)
	r.Post("/slack/events", eventsHandler.ServeHTTP)

	if deps.Installer != nil && deps.Inventory != nil {
		oauthHandler := handler.NewSlackOAuthHandler(deps.Installer, deps.Inventory, deps.Registry)
		r.Get("/slack/install", oauthHandler.Install)
		r.Get("/slack/oauth/callback", oauthHandler.Callback)
	}

	if deps.AuthService != nil {
		teamsHandler := handler.NewSlackTeamsHandler(deps.Registry)
		r.Route("/admin/slack/teams", func(r chi.Router) {
			r.Use(middleware.Auth(deps.AuthService))
			r.Get("/", teamsHandler.List)
			r.Post("/", teamsHandler.Preload)
		})

		if deps.Inventory != nil {
			instanceHandler := handler.NewInstanceHandler(deps.Inventory, deps.Provisioner)
			r.Route("/instances", func(r chi.Router) {
				r.Use(middleware.Auth(deps.AuthService))
				r.Get("/", instanceHandler.List)
				r.Post("/", instanceHandler.Create)
			})
		}
	}

	return r
}
