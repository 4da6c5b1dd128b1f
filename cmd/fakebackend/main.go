// Package main runs the fake identity backend used to exercise the client
// over real HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/authrpc/internal/adapters/clients"
	"github.com/jsamuelsen/authrpc/internal/adapters/http"
	"github.com/jsamuelsen/authrpc/internal/adapters/http/handlers"
	"github.com/jsamuelsen/authrpc/internal/app"
	"github.com/jsamuelsen/authrpc/internal/platform/config"
	"github.com/jsamuelsen/authrpc/internal/platform/logging"
	"github.com/jsamuelsen/authrpc/internal/platform/telemetry"
	"github.com/jsamuelsen/authrpc/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

const healthCheckTimeout = 2 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting fake backend",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.Int("scenarios", len(cfg.Scenarios)),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Load scenarios
	store, err := handlers.LoadScenarios(cfg.Scenarios)
	if err != nil {
		return fmt.Errorf("loading scenarios: %w", err)
	}

	// 6. Create health registry
	healthRegistry := ports.NewHealthRegistry(healthCheckTimeout)
	if err := healthRegistry.Register(store); err != nil {
		return fmt.Errorf("registering scenario health check: %w", err)
	}

	// 7. Create handlers
	scenarioHandler, err := handlers.NewScenarioHandler(handlers.ScenarioHandlerConfig{
		Store:      store,
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating scenario handler: %w", err)
	}

	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo, prometheus.DefaultGatherer)

	// 8. Create HTTP server and routes
	server := http.New(&cfg.Server, logger)
	http.SetupRouter(server.Engine(), http.NewDefaultRouterConfig(logger, cfg, healthHandler, scenarioHandler))

	// 9. Start server (non-blocking)
	serverErr, err := server.Start()
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	// 10. Call ourselves once through the real client so misconfigured
	// scenarios show up in the startup log.
	if err := selfCheck(ctx, cfg, logger); err != nil {
		logger.Warn("self check failed", slog.Any("error", err))
	}

	// 11. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

// selfCheck sends a passkey enrollment start through the client stack to the
// configured identity toolkit URL and logs the decoded result.
func selfCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	transport, err := clients.New(clients.ConfigFrom(cfg, logger))
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}

	backend, err := app.NewAuthBackend(app.AuthBackendConfig{
		Transport: transport,
		Request:   app.RequestConfigFrom(cfg),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating backend: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Client.Timeout)
	defer cancel()

	enrollment, err := backend.StartPasskeyEnrollment(ctx, "self-check")
	if err != nil {
		return err
	}

	logger.Info("self check passed",
		slog.String("rp_id", enrollment.RPID),
		slog.String("user_id", enrollment.UserID),
	)

	return nil
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then performs graceful shutdown of the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-serverErr:
		if !ok {
			return nil
		}

		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
