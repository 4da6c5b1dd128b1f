// Package clients implements ports.Transport over HTTPS for the identity
// backend.
package clients

import "errors"

// Transport errors. Callers classify them as network failures.
var (
	// ErrCircuitOpen is returned when the breaker for a service rejects the call.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrUnknownService is returned for an endpoint whose service has no base URL.
	ErrUnknownService = errors.New("unknown backend service")

	// ErrResponseTooLarge is returned when a body exceeds the read limit.
	ErrResponseTooLarge = errors.New("response body too large")
)
