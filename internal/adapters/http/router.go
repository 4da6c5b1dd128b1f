package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/authrpc/internal/adapters/http/handlers"
	"github.com/jsamuelsen/authrpc/internal/adapters/http/middleware"
	"github.com/jsamuelsen/authrpc/internal/platform/config"
	"github.com/jsamuelsen/authrpc/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds how long a delayed scenario may hold a call.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains the collaborators of the fake backend router.
type RouterConfig struct {
	Logger *slog.Logger

	// AppConfig names the service in traces.
	AppConfig *config.AppConfig

	// APIKey is required on every backend call; empty disables the check.
	APIKey string

	HealthHandler   *handlers.HealthHandler
	ScenarioHandler *handlers.ScenarioHandler

	// Timeout is the deadline of backend calls; zero disables it.
	Timeout time.Duration
}

// SetupRouter configures middleware and routes on engine.
// Middleware order (first to last):
//  1. Recovery
//  2. Request ID
//  3. OpenTelemetry tracing and server metrics
//  4. Logging (skips /-/ paths)
//
// Routes:
//   - /-/live, /-/ready, /-/build, /-/metrics: probes, no API key
//   - /-/scenarios: scenario admin, no API key
//   - anything else: backend calls, answered from the active scenario
//
// Backend paths contain ':' (e.g. /v2/accounts/passkeyEnrollment:start),
// which gin reads as a parameter, so they are served through NoRoute.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	name := "authrpc-fakebackend"
	if cfg.AppConfig != nil {
		name = cfg.AppConfig.Name
	}

	engine.Use(middleware.Recovery(cfg.Logger), middleware.RequestID())
	engine.Use(telemetry.Middleware(name)...)
	engine.Use(middleware.Logging(cfg.Logger))

	internal := engine.Group("/-")
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutes(internal)
	}

	if cfg.ScenarioHandler == nil {
		engine.NoRoute(notFound)
		return
	}

	cfg.ScenarioHandler.RegisterAdminRoutes(internal)

	engine.NoRoute(
		middleware.Timeout(cfg.Timeout),
		middleware.RequireAPIKey(cfg.APIKey),
		cfg.ScenarioHandler.Serve,
	)
}

// NewDefaultRouterConfig creates a RouterConfig from application config.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	cfg *config.Config,
	health *handlers.HealthHandler,
	scenarios *handlers.ScenarioHandler,
) RouterConfig {
	return RouterConfig{
		Logger:          logger,
		AppConfig:       &cfg.App,
		APIKey:          cfg.Backend.APIKey,
		HealthHandler:   health,
		ScenarioHandler: scenarios,
		Timeout:         DefaultRequestTimeout,
	}
}
