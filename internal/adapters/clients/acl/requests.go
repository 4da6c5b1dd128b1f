package acl

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/authrpc/internal/domain"
	"github.com/jsamuelsen/authrpc/internal/ports"
)

// jsonTagParts is the number of parts when splitting a JSON tag by comma.
const jsonTagParts = 2

// RequestConfig holds the ambient values attached to every request.
type RequestConfig struct {
	// APIKey identifies the calling project to the backend.
	APIKey string `json:"apiKey" validate:"required"`

	// AppID is sent as X-Firebase-GMPID when set.
	AppID string `json:"appId"`

	// TenantID is the default tenant for endpoints that accept one.
	TenantID string `json:"tenantId"`
}

// Headers returns the transport headers derived from the config.
func (c RequestConfig) Headers() ports.Headers {
	return ports.Headers{APIKey: c.APIKey, AppID: c.AppID}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// requestValidator returns the singleton validator, reporting fields by their
// wire names.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", jsonTagParts)[0]
			if name == "-" {
				return ""
			}

			return name
		})
	})

	return validate
}

// checkRequest validates v and reports the first failure as a
// *domain.InvalidRequestError.
func checkRequest(v any) error {
	err := requestValidator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewInvalidRequestError("", err.Error())
	}

	first := fieldErrs[0]

	return domain.NewInvalidRequestError(fieldPath(first), fieldMessage(first))
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}

	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// request is the common, immutable part of every endpoint request.
type request[P any] struct {
	endpoint ports.Endpoint
	cfg      RequestConfig
	payload  P
}

func newRequest[P any](endpoint ports.Endpoint, cfg RequestConfig, payload P) (request[P], error) {
	if err := checkRequest(cfg); err != nil {
		return request[P]{}, err
	}

	if err := checkRequest(payload); err != nil {
		return request[P]{}, err
	}

	return request[P]{endpoint: endpoint, cfg: cfg, payload: payload}, nil
}

// Endpoint returns the endpoint the request is sent to.
func (r request[P]) Endpoint() ports.Endpoint {
	return r.endpoint
}

// Payload returns the wire DTO.
func (r request[P]) Payload() any {
	return r.payload
}

// Headers returns the ambient transport headers.
func (r request[P]) Headers() ports.Headers {
	return r.cfg.Headers()
}

// tenant returns the explicit tenant or falls back to the config default.
func (c RequestConfig) tenant(explicit string) string {
	if explicit != "" {
		return explicit
	}

	return c.TenantID
}
