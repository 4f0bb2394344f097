package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	specpkg "github.com/daap14/iaap/api"
	"github.com/daap14/iaap/internal/api"
	"github.com/daap14/iaap/internal/auth"
	"github.com/daap14/iaap/internal/config"
	"github.com/daap14/iaap/internal/database"
	"github.com/daap14/iaap/internal/forwarder"
	"github.com/daap14/iaap/internal/installation"
	"github.com/daap14/iaap/internal/inventory"
	"github.com/daap14/iaap/internal/k8s"
	"github.com/daap14/iaap/internal/reconciler"
	"github.com/daap14/iaap/internal/slack"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to apply database schema", "error", err)
		os.Exit(1)
	}

	instances, provisioner, checker, err := initInventory(cfg)
	if err != nil {
		slog.Error("failed to initialize instance inventory", "error", err, "backend", cfg.InventoryBackend)
		os.Exit(1)
	}

	registry := installation.NewRegistry(installation.NewRepository(db.Pool()), instances)

	deps := api.RouterDeps{
		K8sChecker:  checker,
		DBPinger:    db,
		Version:     cfg.Version,
		OpenAPISpec: specpkg.OpenAPISpec,
		Verifier:    slack.NewVerifier(cfg.SlackSigningSecret),
		Registry:    registry,
		Relay:       forwarder.New(forwarder.WithTimeout(cfg.ForwardTimeout)),
		Inventory:   instances,
		Provisioner: provisioner,
	}

	if cfg.OAuthEnabled() {
		deps.Installer = slack.NewInstaller(slack.InstallerConfig{
			ClientID:     cfg.SlackClientID,
			ClientSecret: cfg.SlackClientSecret,
			RedirectURL:  cfg.SlackRedirectURL,
			Scopes:       cfg.SlackScopes,
			StateSecret:  cfg.SlackSigningSecret,
		})
	} else {
		slog.Info("slack oauth not configured; install routes disabled")
	}

	if cfg.AdminEnabled() {
		deps.AuthService = auth.NewService(cfg.AdminAPIKeyHash)
	} else {
		slog.Warn("ADMIN_API_KEY_HASH not set; admin routes disabled")
	}

	router := api.NewRouter(deps)

	rec := reconciler.New(registry, time.Duration(cfg.PreloadInterval)*time.Second)
	go rec.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting IAAP server", "port", cfg.Port, "version", cfg.Version, "inventory", cfg.InventoryBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// initInventory builds the instance inventory for the configured backend.
// The provisioner and health checker are nil when the backend has none.
func initInventory(cfg *config.Config) (inventory.Lister, inventory.Provisioner, k8s.HealthChecker, error) {
	switch cfg.InventoryBackend {
	case config.InventoryKubernetes:
		var opts []k8s.ClientOption
		if cfg.KubeconfigPath != "" {
			opts = append(opts, k8s.WithKubeconfig(cfg.KubeconfigPath))
		}
		client, err := k8s.NewClient(opts...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating kubernetes client: %w", err)
		}
		lister := inventory.NewKubernetesLister(client.DynamicClient(), cfg.Namespace, cfg.InstanceLabelSelector, cfg.InstanceDomainSuffix)
		return lister, nil, client, nil
	default:
		if cfg.CloudAPIToken == "" {
			slog.Warn("CLOUD_API_TOKEN not set; inventory requests will be rejected by the cloud API")
		}
		cloud := inventory.NewCloudLister(cfg.CloudAPIToken, cfg.InstanceLabelSelector, cfg.InstanceDomainSuffix,
			inventory.WithEndpoint(cfg.CloudAPIURL),
			inventory.WithVersion(cfg.Version),
		)
		return cloud, cloud, nil, nil
	}
}
