// Package dto provides the JSON bodies written by the fake identity backend.
package dto

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// ErrorResponse is the error envelope the identity backend sends with every
// error status: {"error":{"code":400,"message":"CODE : detail","errors":[…]}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`

	// TraceID is an addition of the fake backend; clients ignore it.
	TraceID string `json:"traceId,omitempty"`
}

// ErrorBody is the content of the "error" key.
type ErrorBody struct {
	// Code repeats the HTTP status.
	Code int `json:"code"`

	// Message is a message code, optionally followed by " : " and detail text.
	Message string `json:"message"`

	Errors []ErrorItem `json:"errors,omitempty"`

	// Status is the canonical status name, e.g. "INVALID_ARGUMENT".
	Status string `json:"status,omitempty"`
}

// ErrorItem is one entry of error.errors.
type ErrorItem struct {
	Message string `json:"message"`
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
}

// Message codes sent by the fake backend.
const (
	MessageAPIKeyInvalid    = "API_KEY_INVALID"
	MessageInvalidJSON      = "INVALID_JSON_PAYLOAD"
	MessageNotFound         = "NOT_FOUND"
	MessageScenarioNotFound = "SCENARIO_NOT_FOUND"
	MessageUnavailable      = "UNAVAILABLE"
	MessageInternal         = "INTERNAL_ERROR"
	MessageInvalidArgument  = "INVALID_ARGUMENT"
)

// NewErrorResponse creates an envelope for status with a single error item.
func NewErrorResponse(status int, message string) *ErrorResponse {
	code, _, _ := cutCode(message)

	return &ErrorResponse{
		Error: ErrorBody{
			Code:    status,
			Message: message,
			Errors:  []ErrorItem{{Message: message, Domain: "global", Reason: reasonFor(status, code)}},
			Status:  StatusName(status),
		},
	}
}

// WithItems replaces the error items.
func (e *ErrorResponse) WithItems(items ...ErrorItem) *ErrorResponse {
	e.Error.Errors = items
	return e
}

// StatusName maps an HTTP status to its canonical status name.
func StatusName(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "ALREADY_EXISTS"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	default:
		if status >= http.StatusInternalServerError {
			return "INTERNAL"
		}

		return ""
	}
}

// TraceID returns the trace id of the request span, if any.
func TraceID(c *gin.Context) string {
	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	return ""
}

// Write sends an error envelope.
func Write(c *gin.Context, status int, resp *ErrorResponse) {
	resp.TraceID = TraceID(c)
	c.JSON(status, resp)
}

// Abort stops the handler chain and sends an error envelope.
func Abort(c *gin.Context, status int, message string) {
	resp := NewErrorResponse(status, message)
	resp.TraceID = TraceID(c)
	c.AbortWithStatusJSON(status, resp)
}

func reasonFor(status int, code string) string {
	switch {
	case code == MessageAPIKeyInvalid:
		return "keyInvalid"
	case status == http.StatusNotFound:
		return "notFound"
	case status >= http.StatusInternalServerError:
		return "backendError"
	default:
		return "invalid"
	}
}

func cutCode(message string) (code, detail string, found bool) {
	code, detail, found = strings.Cut(message, " : ")
	return strings.TrimSpace(code), strings.TrimSpace(detail), found
}
