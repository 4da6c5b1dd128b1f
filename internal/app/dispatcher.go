// Package app sends endpoint requests to the identity backend and turns the
// answers into domain values or classified errors.
//
// Every call runs the same steps:
//  1. ENCODE   - marshal the request payload
//  2. SEND     - one transport round trip, the only blocking step
//  3. DECODE   - parse the body into a RawResponse
//  4. VALIDATE - build the typed value with the endpoint's validator
//
// Each call yields exactly one outcome: a value or an error classified by
// domain.KindOf.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/authrpc/internal/adapters/clients/acl"
	"github.com/jsamuelsen/authrpc/internal/adapters/clients/wire"
	"github.com/jsamuelsen/authrpc/internal/domain"
	"github.com/jsamuelsen/authrpc/internal/platform/logging"
	"github.com/jsamuelsen/authrpc/internal/ports"
)

const instrumentationName = "github.com/jsamuelsen/authrpc/internal/app"

// Step names a stage of a dispatch.
type Step string

const (
	StepEncode   Step = "encode"
	StepSend     Step = "send"
	StepDecode   Step = "decode"
	StepValidate Step = "validate"
)

// outcomeSuccess labels successful dispatches in metrics.
const outcomeSuccess = "success"

// Request is an endpoint request the dispatcher can send.
type Request interface {
	wire.Request
	Headers() ports.Headers
}

// Validator builds the typed response of one endpoint.
type Validator[T any] func(wire.RawResponse) (*T, error)

// DispatcherConfig holds the dispatcher's collaborators.
type DispatcherConfig struct {
	// Transport delivers encoded requests. Required.
	Transport ports.Transport

	// Logger is used when the context carries none. Optional.
	Logger *slog.Logger
}

// Dispatcher runs calls against the backend. It holds no per-call state and
// is safe for concurrent use.
type Dispatcher struct {
	transport ports.Transport
	logger    *slog.Logger

	tracer           trace.Tracer
	dispatchTotal    metric.Int64Counter
	dispatchDuration metric.Float64Histogram
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter(instrumentationName)

	dispatchTotal, err := meter.Int64Counter(
		"authrpc.dispatch.total",
		metric.WithDescription("Total number of backend calls by endpoint and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispatch counter: %w", err)
	}

	dispatchDuration, err := meter.Float64Histogram(
		"authrpc.dispatch.duration",
		metric.WithDescription("Duration of backend calls including decode and validation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispatch duration metric: %w", err)
	}

	return &Dispatcher{
		transport:        cfg.Transport,
		logger:           logger.With(slog.String("component", "app.Dispatcher")),
		tracer:           otel.Tracer(instrumentationName),
		dispatchTotal:    dispatchTotal,
		dispatchDuration: dispatchDuration,
	}, nil
}

// Dispatch sends req and validates the answer. Exactly one of the returned
// value and error is non-nil.
func Dispatch[T any](ctx context.Context, d *Dispatcher, req Request, validate Validator[T]) (*T, error) {
	start := time.Now()
	endpoint := req.Endpoint()

	ctx = logging.WithContext(ctx, logging.FromContextOr(ctx, d.logger))

	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, requestID)
	}

	ctx = logging.WithEndpoint(ctx, endpoint.Name)
	logger := logging.FromContext(ctx)

	ctx, span := d.tracer.Start(ctx, "authrpc "+endpoint.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.method", endpoint.Name),
			attribute.String("peer.service", string(endpoint.Service)),
			attribute.String("request_id", requestID),
		),
	)
	defer span.End()

	value, step, err := run(ctx, d, req, requestID, validate)

	outcome := outcomeSuccess
	if err != nil {
		outcome = domain.KindOf(err).String()

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("authrpc.step", string(step)))

		logger.WarnContext(ctx, "backend call failed",
			slog.String("step", string(step)),
			slog.String("kind", outcome),
			slog.Any("error", err),
		)
	} else {
		logger.DebugContext(ctx, "backend call succeeded", slog.Duration("duration", time.Since(start)))
	}

	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint.Name),
		attribute.String("outcome", outcome),
	)
	d.dispatchTotal.Add(ctx, 1, attrs)
	d.dispatchDuration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		return nil, err
	}

	return value, nil
}

// run performs the four steps and reports the step that failed.
func run[T any](ctx context.Context, d *Dispatcher, req Request, requestID string, validate Validator[T]) (*T, Step, error) {
	endpoint := req.Endpoint()

	body, err := wire.Encode(req)
	if err != nil {
		if !domain.IsInvalidRequest(err) {
			err = domain.NewInvalidRequestError("", err.Error())
		}

		return nil, StepEncode, err
	}

	headers := req.Headers()
	headers.RequestID = requestID

	respBody, err := d.transport.Send(ctx, ports.Call{Endpoint: endpoint, Headers: headers, Body: body})
	if err != nil {
		var statusErr *ports.StatusError
		if errors.As(err, &statusErr) {
			return nil, StepSend, classifyStatus(endpoint, statusErr)
		}

		return nil, StepSend, domain.NewNetworkError(endpoint.Name, err)
	}

	raw, err := wire.Decode(respBody)
	if err != nil {
		return nil, StepDecode, domain.NewInternalError(endpoint.Name, err, domain.Diagnostic{Raw: nonNil(respBody)})
	}

	value, err := validate(raw)
	if err == nil && value == nil {
		err = domain.NewValidationError("", "validator returned no value")
	}

	if err != nil {
		return nil, StepValidate, domain.NewInternalError(endpoint.Name, err, domain.Diagnostic{Response: raw.Map()})
	}

	return value, "", nil
}

// classifyStatus turns an HTTP error answer into a BackendError when it
// carries the backend's error envelope, and into an InternalError otherwise.
func classifyStatus(endpoint ports.Endpoint, statusErr *ports.StatusError) error {
	if err := acl.BackendError(endpoint.Name, statusErr.StatusCode, statusErr.Body); err != nil {
		return err
	}

	raw, decodeErr := wire.Decode(statusErr.Body)
	if decodeErr != nil {
		return domain.NewInternalError(endpoint.Name,
			domain.NewDecodeError(fmt.Sprintf("status %d without error envelope", statusErr.StatusCode), decodeErr),
			domain.Diagnostic{Raw: nonNil(statusErr.Body)},
		)
	}

	return domain.NewInternalError(endpoint.Name,
		domain.NewValidationError("error", fmt.Sprintf("is missing from status %d response", statusErr.StatusCode)),
		domain.Diagnostic{Response: raw.Map()},
	)
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}

	return b
}
