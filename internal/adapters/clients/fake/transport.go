// Package fake provides an in-memory ports.Transport for tests.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/jsamuelsen/authrpc/internal/ports"
)

// Response is a canned answer for one endpoint path.
type Response struct {
	// Status is the HTTP status; 0 means 200.
	Status int

	// Body is returned as-is.
	Body []byte

	// Err, when set, is returned instead of a body.
	Err error

	// Block makes Send wait for the context to end before answering.
	Block bool
}

// JSON returns a 200 response whose body is v encoded as JSON. It panics if
// v cannot be encoded.
func JSON(v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("fake: encoding canned body: %v", err))
	}

	return Response{Body: body}
}

// Raw returns a 200 response with a verbatim body.
func Raw(body string) Response {
	return Response{Body: []byte(body)}
}

// Status returns a response with an error status and body.
func Status(code int, body string) Response {
	return Response{Status: code, Body: []byte(body)}
}

// Fail returns a response that fails with err before any body is received.
func Fail(err error) Response {
	return Response{Err: err}
}

// Hang returns a response that only ends when the caller's context does.
func Hang() Response {
	return Response{Block: true}
}

// Transport answers calls from canned responses keyed by endpoint path and
// records every call. It is safe for concurrent use.
type Transport struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []ports.Call
}

var _ ports.Transport = (*Transport)(nil)

// New creates an empty fake transport.
func New() *Transport {
	return &Transport{responses: make(map[string]Response)}
}

// Respond sets the canned response for an endpoint.
func (t *Transport) Respond(endpoint ports.Endpoint, r Response) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.responses[endpoint.Path] = r

	return t
}

// Send records the call and replays the canned response for its path.
// Paths without a response fail with ErrNoResponse.
func (t *Transport) Send(ctx context.Context, call ports.Call) ([]byte, error) {
	t.mu.Lock()
	t.calls = append(t.calls, ports.Call{
		Endpoint: call.Endpoint,
		Headers:  call.Headers,
		Body:     slices.Clone(call.Body),
	})
	r, ok := t.responses[call.Endpoint.Path]
	t.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, call.Endpoint.Path)
	}

	if r.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.Err != nil {
		return nil, r.Err
	}

	body := slices.Clone(r.Body)

	if r.Status != 0 && (r.Status < 200 || r.Status > 299) {
		return nil, &ports.StatusError{StatusCode: r.Status, Body: body}
	}

	return body, nil
}

// Calls returns a copy of every recorded call in arrival order.
func (t *Transport) Calls() []ports.Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.calls)
}

// CallsTo returns the recorded calls for one endpoint.
func (t *Transport) CallsTo(endpoint ports.Endpoint) []ports.Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []ports.Call

	for _, c := range t.calls {
		if c.Endpoint.Path == endpoint.Path {
			out = append(out, c)
		}
	}

	return out
}

// Reset forgets recorded calls but keeps canned responses.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = nil
}
