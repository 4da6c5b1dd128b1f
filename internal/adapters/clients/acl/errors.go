package acl

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jsamuelsen/authrpc/internal/domain"
)

// codeSeparator splits the message code from the detail text, as in
// "WEAK_PASSWORD : Password should be at least 6 characters".
const codeSeparator = " : "

// ErrorEnvelope is the body the backend sends with an HTTP error status.
type ErrorEnvelope struct {
	// Status is the numeric code inside the envelope, usually the HTTP status.
	Status int

	// Code is the message code, e.g. "INVALID_ID_TOKEN".
	Code string

	// Detail is the text after the code, if any.
	Detail string

	// Reasons lists the reason of each entry in error.errors.
	Reasons []string
}

// ParseErrorEnvelope reads {"error":{"code":…,"message":…,"errors":[…]}}.
// It returns false when body is not an envelope with a non-empty message.
func ParseErrorEnvelope(body []byte) (ErrorEnvelope, bool) {
	if !gjson.ValidBytes(body) {
		return ErrorEnvelope{}, false
	}

	errObj := gjson.GetBytes(body, "error")
	if !errObj.IsObject() {
		return ErrorEnvelope{}, false
	}

	message := errObj.Get("message")
	if message.Type != gjson.String || strings.TrimSpace(message.String()) == "" {
		return ErrorEnvelope{}, false
	}

	env := ErrorEnvelope{Status: int(errObj.Get("code").Int())}

	code, detail, _ := strings.Cut(message.String(), codeSeparator)
	env.Code = strings.TrimSpace(code)
	env.Detail = strings.TrimSpace(detail)

	errObj.Get("errors").ForEach(func(_, item gjson.Result) bool {
		if reason := item.Get("reason").String(); reason != "" {
			env.Reasons = append(env.Reasons, reason)
		}

		return true
	})

	return env, true
}

// BackendError converts an HTTP error answer into a *domain.BackendError.
// It returns nil when body is not an error envelope.
func BackendError(endpoint string, httpStatus int, body []byte) error {
	env, ok := ParseErrorEnvelope(body)
	if !ok {
		return nil
	}

	status := httpStatus
	if status == 0 {
		status = env.Status
	}

	return domain.NewBackendError(endpoint, status, env.Code, env.Detail)
}
