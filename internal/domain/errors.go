// Package domain contains the identity values returned to callers and the
// error taxonomy every failed backend call is classified into.
// Domain errors describe what went wrong with a call, NOT how the transport
// reported it; adapters map transport and wire failures onto them.
package domain

import (
	"errors"
	"fmt"
	"slices"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNetwork indicates the transport failed before a response body was received.
	ErrNetwork = errors.New("network error")

	// ErrInternal indicates the backend answered with a body this client could not use.
	ErrInternal = errors.New("internal error")

	// ErrBackend indicates the backend rejected the request with an error envelope.
	ErrBackend = errors.New("backend error")

	// ErrInvalidRequest indicates a request could not be built or encoded.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMalformedResponse indicates the response bytes were not a JSON object.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrValidation indicates a well-formed response lacked a required field.
	ErrValidation = errors.New("response validation failed")
)

// Kind is the stable outward classification of a failed call.
type Kind int

const (
	// KindNone is returned for nil or unclassified errors.
	KindNone Kind = iota
	// KindNetwork covers connectivity, TLS, timeouts and cancellation.
	KindNetwork
	// KindInternal covers undecodable or invalid response bodies.
	KindInternal
	// KindBackend covers error envelopes returned by the backend.
	KindBackend
	// KindInvalidRequest covers requests rejected before they were sent.
	KindInvalidRequest
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindInternal:
		return "internal"
	case KindBackend:
		return "backend"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "none"
	}
}

// KindOf classifies err into the outward taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrBackend):
		return KindBackend
	case errors.Is(err, ErrInternal):
		return KindInternal
	default:
		return KindNone
	}
}

// Diagnostic is the copy of a rejected response attached to an InternalError.
// Response is set when the body decoded into a JSON object; Raw holds the
// undecoded bytes otherwise.
type Diagnostic struct {
	Response map[string]any
	Raw      []byte
}

// Present reports whether the diagnostic carries any payload.
func (d Diagnostic) Present() bool {
	return d.Response != nil || d.Raw != nil
}

// clone returns a copy that shares no map, slice or byte slice with d.
func (d Diagnostic) clone() Diagnostic {
	out := Diagnostic{}
	if d.Response != nil {
		out.Response = cloneObject(d.Response)
	}

	if d.Raw != nil {
		out.Raw = slices.Clone(d.Raw)
	}

	return out
}

func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneObject(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}

		return out
	default:
		return v
	}
}

// NetworkError provides context for transport failures.
type NetworkError struct {
	Endpoint string
	Cause    error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: network error: %v", e.Endpoint, e.Cause)
	}

	return e.Endpoint + ": network error"
}

// Unwrap exposes both the sentinel and the transport cause.
func (e *NetworkError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrNetwork}
	}

	return []error{ErrNetwork, e.Cause}
}

// NewNetworkError creates a network error for an endpoint.
func NewNetworkError(endpoint string, cause error) error {
	return &NetworkError{Endpoint: endpoint, Cause: cause}
}

// InternalError is the single outward shape for unusable response bodies.
// Cause is a *DecodeError or a *ValidationError.
type InternalError struct {
	Endpoint   string
	Cause      error
	Diagnostic Diagnostic
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: internal error: %v", e.Endpoint, e.Cause)
}

// Unwrap exposes both the sentinel and the inner cause.
func (e *InternalError) Unwrap() []error {
	return []error{ErrInternal, e.Cause}
}

// DeserializedResponse returns a copy of the decoded response, or nil when
// decoding itself failed.
func (e *InternalError) DeserializedResponse() map[string]any {
	return e.Diagnostic.clone().Response
}

// NewInternalError creates an internal error wrapping cause with its payload.
func NewInternalError(endpoint string, cause error, diag Diagnostic) error {
	return &InternalError{Endpoint: endpoint, Cause: cause, Diagnostic: diag.clone()}
}

// BackendError provides context for error envelopes returned by the backend.
type BackendError struct {
	Endpoint   string
	StatusCode int
	// Code is the backend message code, e.g. "INVALID_ID_TOKEN".
	Code string
	// Detail is the free text the backend appended after the code, if any.
	Detail string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: backend rejected request (%d %s): %s", e.Endpoint, e.StatusCode, e.Code, e.Detail)
	}

	return fmt.Sprintf("%s: backend rejected request (%d %s)", e.Endpoint, e.StatusCode, e.Code)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *BackendError) Unwrap() error {
	return ErrBackend
}

// NewBackendError creates a backend error.
func NewBackendError(endpoint string, status int, code, detail string) error {
	return &BackendError{Endpoint: endpoint, StatusCode: status, Code: code, Detail: detail}
}

// InvalidRequestError provides context for requests rejected before sending.
type InvalidRequestError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *InvalidRequestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid request: %s %s", e.Field, e.Message)
	}

	return "invalid request: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *InvalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(field, message string) error {
	return &InvalidRequestError{Field: field, Message: message}
}

// DecodeError reports response bytes that are not a JSON object.
type DecodeError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Cause)
	}

	return "malformed response: " + e.Reason
}

// Unwrap exposes both the sentinel and the parser cause.
func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMalformedResponse}
	}

	return []error{ErrMalformedResponse, e.Cause}
}

// NewDecodeError creates a decode error.
func NewDecodeError(reason string, cause error) error {
	return &DecodeError{Reason: reason, Cause: cause}
}

// ValidationError reports the first missing or mistyped required field.
// Field is the dotted path of the offending key.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("response validation failed for %s: %s", e.Field, e.Message)
	}

	return "response validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a response validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// DiagnosticOf returns the payload attached to an InternalError in err's chain.
func DiagnosticOf(err error) (Diagnostic, bool) {
	var internal *InternalError
	if errors.As(err, &internal) {
		return internal.Diagnostic.clone(), true
	}

	return Diagnostic{}, false
}

// MissingField returns the offending path of a ValidationError in err's chain.
func MissingField(err error) (string, bool) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Field, true
	}

	return "", false
}

// IsNetwork checks if an error is a network error.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsInternal checks if an error is an internal error.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// IsBackend checks if an error is a backend error.
func IsBackend(err error) bool {
	return errors.Is(err, ErrBackend)
}

// IsInvalidRequest checks if an error is an invalid request error.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsMalformedResponse checks if an error was caused by undecodable bytes.
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// IsValidation checks if an error was caused by a missing required field.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
