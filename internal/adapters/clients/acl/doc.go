// Package acl is the boundary between the identity backend's wire format and
// the domain. It owns one request type and one response validator per
// endpoint.
//
// # Requests
//
// Requests are built through New…Request constructors, which check required
// parameters and return a *domain.InvalidRequestError when one is missing.
// Fields are unexported, so a built request cannot change before it is sent.
// Every request carries the ambient [RequestConfig] (API key, app id,
// default tenant).
//
// # Validators
//
// A validator turns a [wire.RawResponse] into a typed domain value:
//
//	enrollment, err := acl.ValidateStartPasskeyEnrollment(raw)
//
// Validators are pure: they read nothing but the response (and, for token
// endpoints, an injected [Clock]), so calling one twice on the same response
// yields equal results. Required fields are declared as a [wire.Schema] and
// checked in order; the first missing field fails with a
// *domain.ValidationError naming its dotted path.
//
// # Backend errors
//
// [ParseErrorEnvelope] reads the backend's error body
// ({"error":{"code":…,"message":…}}) so the dispatcher can report it as a
// *domain.BackendError.
package acl
