//go:build integration

package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/authrpc/internal/adapters/clients"
	"github.com/jsamuelsen/authrpc/internal/adapters/clients/acl"
	fakehttp "github.com/jsamuelsen/authrpc/internal/adapters/http"
	"github.com/jsamuelsen/authrpc/internal/adapters/http/handlers"
	"github.com/jsamuelsen/authrpc/internal/app"
	"github.com/jsamuelsen/authrpc/internal/domain"
	"github.com/jsamuelsen/authrpc/internal/platform/config"
	"github.com/jsamuelsen/authrpc/internal/ports"
)

// configDir holds the scenarios shipped with the fake backend binary.
const configDir = "../../configs"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loadConfig reads the shipped configuration with the test profile.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configDir, "test")
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// startFakeBackend serves cfg's scenarios from an in-process server.
func startFakeBackend(cfg *config.Config) (*httptest.Server, error) {
	store, err := handlers.LoadScenarios(cfg.Scenarios)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()

	scenarios, err := handlers.NewScenarioHandler(handlers.ScenarioHandlerConfig{
		Store:      store,
		Registerer: reg,
		Logger:     discardLogger(),
	})
	if err != nil {
		return nil, err
	}

	health := ports.NewHealthRegistry(time.Second)
	if err := health.Register(store); err != nil {
		return nil, err
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	fakehttp.SetupRouter(engine, fakehttp.RouterConfig{
		Logger:          discardLogger(),
		AppConfig:       &cfg.App,
		APIKey:          cfg.Backend.APIKey,
		HealthHandler:   handlers.NewHealthHandler(health, handlers.NewBuildInfo("test", "", ""), reg),
		ScenarioHandler: scenarios,
		Timeout:         time.Second,
	})

	return httptest.NewServer(engine), nil
}

// newClientBackend builds the real client stack against baseURL. tune, when
// set, adjusts the transport config before it is built.
func newClientBackend(
	cfg *config.Config,
	baseURL string,
	request acl.RequestConfig,
	clock acl.Clock,
	tune func(*clients.Config),
) (*app.AuthBackend, *clients.Transport, error) {
	transportCfg := clients.ConfigFrom(cfg, discardLogger())
	transportCfg.BaseURLs = map[ports.Service]string{
		ports.ServiceIdentityToolkit: baseURL,
		ports.ServiceSecureToken:     baseURL,
	}
	transportCfg.Timeout = 2 * time.Second

	if tune != nil {
		tune(transportCfg)
	}

	transport, err := clients.New(transportCfg)
	if err != nil {
		return nil, nil, err
	}

	backend, err := app.NewAuthBackend(app.AuthBackendConfig{
		Transport: transport,
		Request:   request,
		Clock:     clock,
		Logger:    discardLogger(),
	})
	if err != nil {
		return nil, nil, err
	}

	return backend, transport, nil
}

// activateScenario switches the active scenario through the admin endpoint.
func activateScenario(client *http.Client, baseURL, name string) error {
	body := fmt.Sprintf(`{"name":%q}`, name)

	req, err := http.NewRequest(http.MethodPut, baseURL+"/-/scenarios/active", bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("activating scenario %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("activating scenario %q: status %d: %s", name, resp.StatusCode, msg)
	}

	return nil
}

// testContext holds state shared across step definitions within a scenario.
type testContext struct {
	cfg    *config.Config
	server *httptest.Server
	admin  *http.Client

	apiKey string
	now    time.Time

	enrollment *domain.PasskeyEnrollment
	grant      *domain.TokenGrant
	err        error
}

func newTestContext(cfg *config.Config) *testContext {
	return &testContext{
		cfg:   cfg,
		admin: &http.Client{Timeout: 5 * time.Second},
	}
}

// reset clears state between scenarios.
func (tc *testContext) reset() {
	if tc.server != nil {
		tc.server.Close()
	}

	tc.server = nil
	tc.apiKey = tc.cfg.Backend.APIKey
	tc.now = time.Time{}
	tc.enrollment = nil
	tc.grant = nil
	tc.err = nil
}

// backend builds a client pointed at the fake backend.
func (tc *testContext) backend() (*app.AuthBackend, error) {
	request := app.RequestConfigFrom(tc.cfg)
	request.APIKey = tc.apiKey

	var clock acl.Clock
	if !tc.now.IsZero() {
		now := tc.now
		clock = func() time.Time { return now }
	}

	backend, _, err := newClientBackend(tc.cfg, tc.server.URL, request, clock, nil)

	return backend, err
}

// InitializeScenario registers step definitions for each scenario.
func InitializeScenario(cfg *config.Config) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		tc := newTestContext(cfg)

		ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
			tc.reset()
			return ctx, nil
		})

		ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
			tc.reset()
			return ctx, nil
		})

		ctx.Step(`^the fake backend is running$`, tc.theFakeBackendIsRunning)
		ctx.Step(`^the fake backend is stopped$`, tc.theFakeBackendIsStopped)
		ctx.Step(`^the fake backend serves scenario "([^"]*)"$`, tc.theFakeBackendServesScenario)
		ctx.Step(`^the client uses the API key "([^"]*)"$`, tc.theClientUsesTheAPIKey)
		ctx.Step(`^the validation time is "([^"]*)"$`, tc.theValidationTimeIs)

		ctx.Step(`^I start a passkey enrollment$`, tc.iStartAPasskeyEnrollment)
		ctx.Step(`^I sign in with email "([^"]*)" and password "([^"]*)"$`, tc.iSignInWithEmailAndPassword)
		ctx.Step(`^I refresh the token "([^"]*)"$`, tc.iRefreshTheToken)

		ctx.Step(`^the call succeeds$`, tc.theCallSucceeds)
		ctx.Step(`^the enrollment challenge is "([^"]*)"$`, tc.theEnrollmentChallengeIs)
		ctx.Step(`^the enrollment relying party id is "([^"]*)"$`, tc.theEnrollmentRelyingPartyIDIs)
		ctx.Step(`^the enrollment user id is "([^"]*)"$`, tc.theEnrollmentUserIDIs)
		ctx.Step(`^the id token is "([^"]*)"$`, tc.theIDTokenIs)
		ctx.Step(`^the refresh token is "([^"]*)"$`, tc.theRefreshTokenIs)
		ctx.Step(`^the grant expires at "([^"]*)"$`, tc.theGrantExpiresAt)

		ctx.Step(`^the call fails with an internal error$`, tc.theCallFailsWithKind(domain.KindInternal))
		ctx.Step(`^the call fails with a network error$`, tc.theCallFailsWithKind(domain.KindNetwork))
		ctx.Step(`^the call fails with a backend error "([^"]*)" and status (\d+)$`, tc.theCallFailsWithABackendError)
		ctx.Step(`^the missing field is "([^"]*)"$`, tc.theMissingFieldIs)
		ctx.Step(`^the response is reported as malformed$`, tc.theResponseIsReportedAsMalformed)
	}
}

// theFakeBackendIsRunning starts a fresh fake backend and checks liveness.
func (tc *testContext) theFakeBackendIsRunning() error {
	server, err := startFakeBackend(tc.cfg)
	if err != nil {
		return fmt.Errorf("starting fake backend: %w", err)
	}

	tc.server = server

	resp, err := tc.admin.Get(server.URL + "/-/live")
	if err != nil {
		return fmt.Errorf("fake backend is not running at %s: %w", server.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fake backend health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// theFakeBackendIsStopped closes the server while keeping its address.
func (tc *testContext) theFakeBackendIsStopped() error {
	tc.server.Close()
	return nil
}

// theFakeBackendServesScenario activates a scenario through the admin endpoint.
func (tc *testContext) theFakeBackendServesScenario(name string) error {
	return activateScenario(tc.admin, tc.server.URL, name)
}

func (tc *testContext) theClientUsesTheAPIKey(key string) error {
	tc.apiKey = key
	return nil
}

func (tc *testContext) theValidationTimeIs(value string) error {
	now, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return err
	}

	tc.now = now

	return nil
}

func (tc *testContext) iStartAPasskeyEnrollment() error {
	backend, err := tc.backend()
	if err != nil {
		return err
	}

	tc.enrollment, tc.err = backend.StartPasskeyEnrollment(context.Background(), "id-token")

	return nil
}

func (tc *testContext) iSignInWithEmailAndPassword(email, password string) error {
	backend, err := tc.backend()
	if err != nil {
		return err
	}

	tc.grant, tc.err = backend.VerifyPassword(context.Background(), email, password)

	return nil
}

func (tc *testContext) iRefreshTheToken(refreshToken string) error {
	backend, err := tc.backend()
	if err != nil {
		return err
	}

	tc.grant, tc.err = backend.RefreshToken(context.Background(), refreshToken)

	return nil
}

func (tc *testContext) theCallSucceeds() error {
	if tc.err != nil {
		return fmt.Errorf("expected success, got %w", tc.err)
	}

	return nil
}

func (tc *testContext) enrollmentField(name, got, want string) error {
	if tc.err != nil {
		return fmt.Errorf("expected an enrollment, got %w", tc.err)
	}

	if got != want {
		return fmt.Errorf("expected enrollment %s %q, got %q", name, want, got)
	}

	return nil
}

func (tc *testContext) theEnrollmentChallengeIs(want string) error {
	if tc.enrollment == nil {
		return tc.enrollmentField("challenge", "", want)
	}

	return tc.enrollmentField("challenge", tc.enrollment.Challenge, want)
}

func (tc *testContext) theEnrollmentRelyingPartyIDIs(want string) error {
	if tc.enrollment == nil {
		return tc.enrollmentField("relying party id", "", want)
	}

	return tc.enrollmentField("relying party id", tc.enrollment.RPID, want)
}

func (tc *testContext) theEnrollmentUserIDIs(want string) error {
	if tc.enrollment == nil {
		return tc.enrollmentField("user id", "", want)
	}

	return tc.enrollmentField("user id", tc.enrollment.UserID, want)
}

func (tc *testContext) requireGrant() error {
	if tc.grant == nil {
		return fmt.Errorf("expected a token grant, got error %v", tc.err)
	}

	return nil
}

func (tc *testContext) theIDTokenIs(want string) error {
	if err := tc.requireGrant(); err != nil {
		return err
	}

	if tc.grant.IDToken != want {
		return fmt.Errorf("expected id token %q, got %q", want, tc.grant.IDToken)
	}

	return nil
}

func (tc *testContext) theRefreshTokenIs(want string) error {
	if err := tc.requireGrant(); err != nil {
		return err
	}

	if tc.grant.RefreshToken != want {
		return fmt.Errorf("expected refresh token %q, got %q", want, tc.grant.RefreshToken)
	}

	return nil
}

func (tc *testContext) theGrantExpiresAt(value string) error {
	if err := tc.requireGrant(); err != nil {
		return err
	}

	want, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return err
	}

	if !tc.grant.ApproximateExpirationDate.Equal(want) {
		return fmt.Errorf("expected expiration %s, got %s", want, tc.grant.ApproximateExpirationDate)
	}

	return nil
}

func (tc *testContext) theCallFailsWithKind(kind domain.Kind) func() error {
	return func() error {
		if tc.err == nil {
			return fmt.Errorf("expected %s error, call succeeded", kind)
		}

		if got := domain.KindOf(tc.err); got != kind {
			return fmt.Errorf("expected %s error, got %s: %w", kind, got, tc.err)
		}

		return nil
	}
}

func (tc *testContext) theCallFailsWithABackendError(code string, status int) error {
	var backendErr *domain.BackendError
	if !errors.As(tc.err, &backendErr) {
		return fmt.Errorf("expected backend error, got %v", tc.err)
	}

	if backendErr.Code != code || backendErr.StatusCode != status {
		return fmt.Errorf("expected %s with status %d, got %s with status %d",
			code, status, backendErr.Code, backendErr.StatusCode)
	}

	return nil
}

func (tc *testContext) theMissingFieldIs(want string) error {
	got, ok := domain.MissingField(tc.err)
	if !ok {
		return fmt.Errorf("expected a missing field, got %v", tc.err)
	}

	if got != want {
		return fmt.Errorf("expected missing field %q, got %q", want, got)
	}

	return nil
}

func (tc *testContext) theResponseIsReportedAsMalformed() error {
	if !domain.IsMalformedResponse(tc.err) {
		return fmt.Errorf("expected malformed response, got %v", tc.err)
	}

	diag, ok := domain.DiagnosticOf(tc.err)
	if !ok || len(diag.Raw) == 0 {
		return fmt.Errorf("expected the raw body in the diagnostic, got %+v", diag)
	}

	return nil
}

// TestFeatures runs the GoDog BDD test suite.
func TestFeatures(t *testing.T) {
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario(cfg),
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../features"},
			TestingT: t,
			Tags:     os.Getenv("GODOG_TAGS"),
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
