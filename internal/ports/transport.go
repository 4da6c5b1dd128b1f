// Package ports defines the contracts between the dispatcher and the
// adapters it drives. Adapters implement them; the application layer only
// depends on these types.
package ports

import (
	"context"
	"fmt"
)

// Service identifies which backend host an endpoint lives on.
type Service string

const (
	// ServiceIdentityToolkit hosts the account and passkey endpoints.
	ServiceIdentityToolkit Service = "identitytoolkit"

	// ServiceSecureToken hosts the token refresh endpoint.
	ServiceSecureToken Service = "securetoken"
)

// Endpoint describes one backend RPC.
type Endpoint struct {
	// Name is the stable identifier used in logs, spans and metrics.
	Name string

	// Service selects the base URL.
	Service Service

	// Path is appended to the service base URL, e.g. "v2/accounts/passkeyEnrollment:start".
	Path string
}

// String returns the endpoint name.
func (e Endpoint) String() string {
	return e.Name
}

// Headers are the ambient values sent with every call.
type Headers struct {
	APIKey    string
	AppID     string
	RequestID string
}

// Call is a single encoded request ready for the transport.
type Call struct {
	Endpoint Endpoint
	Headers  Headers
	Body     []byte
}

// Transport delivers one request body and returns the raw response body.
// Implementations perform exactly one attempt and never retry.
//
// A non-2xx answer that still carried a body is reported as *StatusError so
// the caller can read the backend error envelope. Every other failure
// (connectivity, TLS, timeout, cancellation) is returned as-is.
type Transport interface {
	Send(ctx context.Context, call Call) ([]byte, error)
}

// StatusError is returned by a Transport when the backend answered with an
// HTTP error status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}
