package fake

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/authrpc/internal/ports"
)

var (
	start = ports.Endpoint{Name: "start", Service: ports.ServiceIdentityToolkit, Path: "v2/start"}
	other = ports.Endpoint{Name: "other", Service: ports.ServiceIdentityToolkit, Path: "v2/other"}
)

func TestTransport_CannedResponses(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name     string
		response Response
		wantBody string
		wantErr  func(t *testing.T, err error)
	}{
		{
			name:     "json",
			response: JSON(map[string]any{"a": 1}),
			wantBody: `{"a":1}`,
		},
		{
			name:     "raw",
			response: Raw(`not json`),
			wantBody: `not json`,
		},
		{
			name:     "status",
			response: Status(http.StatusBadRequest, `{"error":{}}`),
			wantErr: func(t *testing.T, err error) {
				var statusErr *ports.StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
				assert.Equal(t, `{"error":{}}`, string(statusErr.Body))
			},
		},
		{
			name:     "explicit 200 status",
			response: Response{Status: http.StatusOK, Body: []byte(`{}`)},
			wantBody: `{}`,
		},
		{
			name:     "transport failure",
			response: Fail(boom),
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, boom)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New().Respond(start, tt.response)

			body, err := tr.Send(context.Background(), ports.Call{Endpoint: start})

			if tt.wantErr != nil {
				assert.Nil(t, body)
				tt.wantErr(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestTransport_NoResponse(t *testing.T) {
	_, err := New().Send(context.Background(), ports.Call{Endpoint: start})

	require.ErrorIs(t, err, ErrNoResponse)
}

func TestTransport_Hang(t *testing.T) {
	tr := New().Respond(start, Hang())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Send(ctx, ports.Call{Endpoint: start})

	require.ErrorIs(t, err, context.Canceled)
}

func TestTransport_RecordsCalls(t *testing.T) {
	tr := New().
		Respond(start, Raw(`{}`)).
		Respond(other, Raw(`{}`))

	body := []byte(`{"idToken":"t"}`)
	headers := ports.Headers{APIKey: "key", RequestID: "r1"}

	_, err := tr.Send(context.Background(), ports.Call{Endpoint: start, Headers: headers, Body: body})
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), ports.Call{Endpoint: other})
	require.NoError(t, err)

	body[0] = 'X'

	calls := tr.CallsTo(start)
	require.Len(t, calls, 1)
	assert.Equal(t, headers, calls[0].Headers)
	assert.Equal(t, `{"idToken":"t"}`, string(calls[0].Body), "recorded body is a copy")
	assert.Len(t, tr.Calls(), 2)

	tr.Reset()
	assert.Empty(t, tr.Calls())
}

func TestTransport_Concurrent(t *testing.T) {
	tr := New().Respond(start, Raw(`{}`))

	var g errgroup.Group

	for range 50 {
		g.Go(func() error {
			_, err := tr.Send(context.Background(), ports.Call{Endpoint: start})
			return err
		})
	}

	require.NoError(t, g.Wait())
	assert.Len(t, tr.Calls(), 50)
}
