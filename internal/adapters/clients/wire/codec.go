// Package wire converts endpoint requests to JSON bodies and backend bodies
// to RawResponse values. It knows nothing about individual endpoints; field
// requirements are declared by callers as a Schema.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jsamuelsen/authrpc/internal/domain"
	"github.com/jsamuelsen/authrpc/internal/ports"
)

// Request is an endpoint request ready for encoding.
//
// Payload returns the wire DTO. Optional fields must be tagged omitempty so
// an absent value is left out of the body instead of being sent as null.
type Request interface {
	Endpoint() ports.Endpoint
	Payload() any
}

// Encode marshals the request payload into a JSON object.
func Encode(req Request) ([]byte, error) {
	payload := req.Payload()
	if payload == nil {
		return nil, domain.NewInvalidRequestError("", "request has no payload")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", req.Endpoint().Name, err)
	}

	if len(body) == 0 || body[0] != '{' {
		return nil, domain.NewInvalidRequestError("", "payload must encode to a JSON object")
	}

	return body, nil
}

// RawResponse is a decoded backend body whose top level is a JSON object.
// The zero value is an empty object. RawResponse is immutable and safe to
// share between goroutines.
type RawResponse struct {
	body []byte
	root gjson.Result
}

// Decode parses body. Empty bodies, invalid JSON and top-level values other
// than an object fail with a *domain.DecodeError.
func Decode(body []byte) (RawResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return RawResponse{}, domain.NewDecodeError("empty body", nil)
	}

	if !gjson.ValidBytes(trimmed) {
		return RawResponse{}, domain.NewDecodeError("invalid JSON", nil)
	}

	root := gjson.ParseBytes(trimmed)
	if !root.IsObject() {
		return RawResponse{}, domain.NewDecodeError(
			fmt.Sprintf("top-level value is %s, want object", typeName(root)), nil)
	}

	return RawResponse{body: slices.Clone(trimmed), root: root}, nil
}

// FromMap builds a RawResponse from an in-memory mapping.
func FromMap(m map[string]any) (RawResponse, error) {
	if m == nil {
		m = map[string]any{}
	}

	body, err := json.Marshal(m)
	if err != nil {
		return RawResponse{}, domain.NewDecodeError("mapping is not JSON encodable", err)
	}

	return Decode(body)
}

// Get returns the value at the given key path. Keys are matched literally;
// gjson path syntax in keys is escaped.
func (r RawResponse) Get(keys ...string) gjson.Result {
	if len(keys) == 0 {
		return r.root
	}

	return r.root.Get(escapePath(keys))
}

// Has reports whether a non-null value exists at the key path.
func (r RawResponse) Has(keys ...string) bool {
	v := r.Get(keys...)
	return v.Exists() && v.Type != gjson.Null
}

// Map returns a fresh deep copy of the response as a string-keyed mapping.
// Numbers are float64, nested objects map[string]any and arrays []any.
func (r RawResponse) Map() map[string]any {
	if !r.root.IsObject() {
		return map[string]any{}
	}

	m, ok := r.root.Value().(map[string]any)
	if !ok {
		return map[string]any{}
	}

	return m
}

// Bytes returns a copy of the body as received, without surrounding whitespace.
func (r RawResponse) Bytes() []byte {
	if r.body == nil {
		return []byte("{}")
	}

	return slices.Clone(r.body)
}

// Keys returns the top-level keys in document order.
func (r RawResponse) Keys() []string {
	var keys []string

	r.root.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})

	return keys
}

func escapePath(keys []string) string {
	escaped := make([]string, len(keys))
	for i, k := range keys {
		escaped[i] = gjson.Escape(k)
	}

	return strings.Join(escaped, ".")
}
