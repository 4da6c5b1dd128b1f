package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/authrpc/internal/platform/config"
	"github.com/jsamuelsen/authrpc/internal/platform/logging"
	"github.com/jsamuelsen/authrpc/internal/ports"
)

const (
	// instrumentationName is used for OpenTelemetry tracer and meter.
	instrumentationName = "github.com/jsamuelsen/authrpc/internal/adapters/clients"

	// httpStatusCategoryDivisor divides status code to get category (2xx, 4xx, 5xx).
	httpStatusCategoryDivisor = 100

	// defaultTimeout is the default request timeout if not configured.
	defaultTimeout = 30 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 10 << 20
)

// Request headers understood by the identity backend.
const (
	HeaderAPIKey    = "X-Goog-Api-Key"
	HeaderAppID     = "X-Firebase-GMPID"
	HeaderRequestID = "X-Request-ID"
)

// Config configures an HTTPS transport.
type Config struct {
	// BaseURLs maps each backend service to its base URL.
	BaseURLs map[ports.Service]string

	// Timeout bounds a single call, including reading the body.
	Timeout time.Duration

	// Circuit configures the breaker kept per service.
	Circuit config.CircuitBreakerConfig

	// Pool configures the connection pool.
	Pool config.TransportConfig

	// HTTPClient replaces the pooled client when set.
	HTTPClient *http.Client

	// Logger is an optional logger. If nil, slog.Default is used.
	Logger *slog.Logger
}

// ConfigFrom builds a transport Config from application configuration.
func ConfigFrom(cfg *config.Config, logger *slog.Logger) *Config {
	return &Config{
		BaseURLs: map[ports.Service]string{
			ports.ServiceIdentityToolkit: cfg.Backend.IdentityToolkitURL,
			ports.ServiceSecureToken:     cfg.Backend.SecureTokenURL,
		},
		Timeout: cfg.Client.Timeout,
		Circuit: cfg.Client.CircuitBreaker,
		Pool:    cfg.Client.Transport,
		Logger:  logger,
	}
}

// Transport sends encoded requests to the identity backend over HTTPS.
// It makes exactly one attempt per call and never retries.
type Transport struct {
	http     *http.Client
	baseURLs map[ports.Service]string
	breakers map[ports.Service]*CircuitBreaker
	logger   *slog.Logger

	tracer          trace.Tracer
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

var _ ports.Transport = (*Transport)(nil)

// New creates an HTTPS transport.
func New(cfg *Config) (*Transport, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if len(cfg.BaseURLs) == 0 {
		return nil, errors.New("at least one base URL is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "clients.Transport"))

	baseURLs := make(map[ports.Service]string, len(cfg.BaseURLs))
	breakers := make(map[ports.Service]*CircuitBreaker, len(cfg.BaseURLs))

	for service, raw := range cfg.BaseURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid base URL %q for %s", raw, service)
		}

		baseURLs[service] = strings.TrimSuffix(raw, "/")

		cb := NewCircuitBreaker(cfg.Circuit)
		serviceLogger := logger.With(slog.String("downstream", string(service)))
		cb.OnStateChange(func(from, to State) {
			serviceLogger.Warn("circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
		breakers[service] = cb
	}

	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of HTTP client requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration metric: %w", err)
	}

	requestTotal, err := meter.Int64Counter(
		"http.client.request.total",
		metric.WithDescription("Total number of HTTP client requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}

	return &Transport{
		http:            httpClient(cfg),
		baseURLs:        baseURLs,
		breakers:        breakers,
		logger:          logger,
		tracer:          otel.Tracer(instrumentationName),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

func httpClient(cfg *Config) *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	pool := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Pool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Pool.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Pool.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{Timeout: timeout, Transport: pool}
}

// Send posts call.Body to the endpoint and returns the response body.
// Non-2xx answers are returned as *ports.StatusError carrying the body.
func (t *Transport) Send(ctx context.Context, call ports.Call) ([]byte, error) {
	startTime := time.Now()
	service := call.Endpoint.Service

	logger := logging.FromContext(ctx).With(
		slog.String("downstream", string(service)),
		slog.String("path", call.Endpoint.Path),
	)

	base, ok := t.baseURLs[service]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	cb := t.breakers[service]

	adm, ok := cb.admit()
	if !ok {
		t.recordMetrics(ctx, service, 0, time.Since(startTime), "circuit_open")
		logger.Warn("request blocked by circuit breaker")

		return nil, ErrCircuitOpen
	}

	target := base + "/" + strings.TrimPrefix(call.Endpoint.Path, "/")

	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("HTTP POST %s", service),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodPost,
			semconv.URLFull(target),
			attribute.String("peer.service", string(service)),
			attribute.String("rpc.method", call.Endpoint.Name),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(call.Body))
	if err != nil {
		cb.done(adm, outcomeIgnored)
		return nil, fmt.Errorf("creating request: %w", err)
	}

	setHeaders(req, call.Headers)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	logger.Log(ctx, logging.LevelTrace, "sending request", slog.Int("body_bytes", len(call.Body)))

	body, status, err := t.do(req)
	duration := time.Since(startTime)

	if err != nil {
		if ctx.Err() != nil {
			cb.done(adm, outcomeIgnored)
		} else {
			cb.done(adm, outcomeFailure)
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.recordMetrics(ctx, service, status, duration, "error")
		logger.Warn("request failed",
			slog.Duration("duration", duration),
			slog.Any("error", err),
		)

		return nil, err
	}

	if status >= http.StatusInternalServerError {
		cb.done(adm, outcomeFailure)
	} else {
		cb.done(adm, outcomeSuccess)
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	t.recordMetrics(ctx, service, status, duration, fmt.Sprintf("%dxx", status/httpStatusCategoryDivisor))

	logger.Debug("request completed",
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.Int("body_bytes", len(body)),
	)

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		return nil, &ports.StatusError{StatusCode: status, Body: body}
	}

	return body, nil
}

// do executes the request and reads the whole body.
func (t *Transport) do(req *http.Request) ([]byte, int, error) {
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, 0, err
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Debug("failed to close response body", slog.Any("error", closeErr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}

	if len(body) > maxResponseBytes {
		return nil, resp.StatusCode, ErrResponseTooLarge
	}

	return body, resp.StatusCode, nil
}

func setHeaders(req *http.Request, h ports.Headers) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if h.APIKey != "" {
		req.Header.Set(HeaderAPIKey, h.APIKey)
	}

	if h.AppID != "" {
		req.Header.Set(HeaderAppID, h.AppID)
	}

	if h.RequestID != "" {
		req.Header.Set(HeaderRequestID, h.RequestID)
	}
}

// CircuitState returns the breaker state of a service.
func (t *Transport) CircuitState(service ports.Service) State {
	cb, ok := t.breakers[service]
	if !ok {
		return StateClosed
	}

	return cb.State()
}

// Breakers returns a snapshot of every breaker keyed by service.
func (t *Transport) Breakers() map[ports.Service]Snapshot {
	out := make(map[ports.Service]Snapshot, len(t.breakers))
	for service, cb := range t.breakers {
		out[service] = cb.Snapshot()
	}

	return out
}

// Name implements ports.HealthChecker.
func (t *Transport) Name() string {
	return "backend-circuits"
}

// Check implements ports.HealthChecker. It fails while any breaker is open.
func (t *Transport) Check(context.Context) error {
	var open []string

	for service, snap := range t.Breakers() {
		if snap.State == StateOpen {
			open = append(open, string(service))
		}
	}

	if len(open) == 0 {
		return nil
	}

	slices.Sort(open)

	return fmt.Errorf("%w: %s", ErrCircuitOpen, strings.Join(open, ", "))
}

// recordMetrics records request metrics.
func (t *Transport) recordMetrics(ctx context.Context, service ports.Service, statusCode int, duration time.Duration, result string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", http.MethodPost),
		attribute.String("peer.service", string(service)),
		attribute.String("result", result),
	}

	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	t.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	t.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
