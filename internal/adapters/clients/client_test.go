package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/authrpc/internal/platform/config"
	"github.com/jsamuelsen/authrpc/internal/ports"
)

var testEndpoint = ports.Endpoint{
	Name:    "passkeyEnrollment:start",
	Service: ports.ServiceIdentityToolkit,
	Path:    "v2/accounts/passkeyEnrollment:start",
}

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURLs: map[ports.Service]string{
			ports.ServiceIdentityToolkit: baseURL,
			ports.ServiceSecureToken:     baseURL + "/securetoken",
		},
		Timeout: 5 * time.Second,
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   2,
			Timeout:       time.Minute,
			HalfOpenLimit: 1,
		},
		Pool: config.TransportConfig{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     time.Minute,
		},
	}
}

func newTestTransport(t *testing.T, handler http.HandlerFunc) (*Transport, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	transport, err := New(testConfig(server.URL))
	require.NoError(t, err)

	return transport, server
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")

	_, err = New(&Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")

	_, err = New(&Config{BaseURLs: map[ports.Service]string{ports.ServiceIdentityToolkit: "not a url"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid base URL")
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{
		Backend: config.BackendConfig{
			IdentityToolkitURL: "https://id.example.com",
			SecureTokenURL:     "https://token.example.com",
		},
		Client: config.ClientConfig{Timeout: 3 * time.Second},
	}

	got := ConfigFrom(cfg, nil)

	assert.Equal(t, "https://id.example.com", got.BaseURLs[ports.ServiceIdentityToolkit])
	assert.Equal(t, "https://token.example.com", got.BaseURLs[ports.ServiceSecureToken])
	assert.Equal(t, 3*time.Second, got.Timeout)
}

func TestTransport_Send_RequestShape(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotHeader http.Header
		gotBody   []byte
	)

	transport, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	body, err := transport.Send(context.Background(), ports.Call{
		Endpoint: testEndpoint,
		Headers:  ports.Headers{APIKey: "key", AppID: "app", RequestID: "req-1"},
		Body:     []byte(`{"idToken":"t"}`),
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v2/accounts/passkeyEnrollment:start", gotPath)
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "key", gotHeader.Get(HeaderAPIKey))
	assert.Equal(t, "app", gotHeader.Get(HeaderAppID))
	assert.Equal(t, "req-1", gotHeader.Get(HeaderRequestID))
	assert.JSONEq(t, `{"idToken":"t"}`, string(gotBody))
}

func TestTransport_Send_OmitsEmptyHeaders(t *testing.T) {
	var gotHeader http.Header

	transport, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := transport.Send(context.Background(), ports.Call{Endpoint: testEndpoint, Body: []byte(`{}`)})

	require.NoError(t, err)
	assert.Empty(t, gotHeader.Get(HeaderAppID))
	assert.Empty(t, gotHeader.Get(HeaderRequestID))
}

func TestTransport_Send_SelectsServiceBaseURL(t *testing.T) {
	var gotPath string

	transport, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := transport.Send(context.Background(), ports.Call{
		Endpoint: ports.Endpoint{Name: "token", Service: ports.ServiceSecureToken, Path: "v1/token"},
		Body:     []byte(`{}`),
	})

	require.NoError(t, err)
	assert.Equal(t, "/securetoken/v1/token", gotPath)
}

func TestTransport_Send_StatusError(t *testing.T) {
	envelope := `{"error":{"code":400,"message":"INVALID_ID_TOKEN"}}`

	transport, _ := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(envelope))
	})

	body, err := transport.Send(context.Background(), ports.Call{Endpoint: testEndpoint, Body: []byte(`{}`)})

	assert.Nil(t, body)

	var statusErr *ports.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.JSONEq(t, envelope, string(statusErr.Body))

	assert.Equal(t, StateClosed, transport.CircuitState(ports.ServiceIdentityToolkit),
		"an error envelope is an answer, not an outage")
}

func TestTransport_Send_NoRetry(t *testing.T) {
	var attempts atomic.Int32

	transport, _ := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := transport.Send(context.Background(), ports.Call{Endpoint: testEndpoint, Body: []byte(`{}`)})

	var statusErr *ports.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestTransport_Send_CircuitOpens(t *testing.T) {
	var attempts atomic.Int32

	transport, _ := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	call := ports.Call{Endpoint: testEndpoint, Body: []byte(`{}`)}

	for range 2 {
		_, err := transport.Send(context.Background(), call)
		require.Error(t, err)
	}

	_, err := transport.Send(context.Background(), call)

	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, StateOpen, transport.CircuitState(ports.ServiceIdentityToolkit))
	assert.Equal(t, StateClosed, transport.Breakers()[ports.ServiceSecureToken].State,
		"breakers are kept per service")

	err = transport.Check(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "identitytoolkit")
	assert.NotContains(t, err.Error(), "securetoken")
}

func TestTransport_Check_Healthy(t *testing.T) {
	transport, _ := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, "backend-circuits", transport.Name())
	assert.NoError(t, transport.Check(context.Background()))
}

func TestTransport_Send_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	transport, err := New(testConfig(url))
	require.NoError(t, err)

	_, err = transport.Send(context.Background(), ports.Call{Endpoint: testEndpoint, Body: []byte(`{}`)})

	require.Error(t, err)

	var statusErr *ports.StatusError
	assert.NotErrorAs(t, err, &statusErr)
}

func TestTransport_Send_ContextCanceled(t *testing.T) {
	release := make(chan struct{})

	transport, _ := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{}`))
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		_, err := transport.Send(ctx, ports.Call{Endpoint: testEndpoint, Body: []byte(`{}`)})
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after cancellation")
	}

	assert.Zero(t, transport.Breakers()[ports.ServiceIdentityToolkit].ConsecutiveFailures,
		"cancellation is not counted against the backend")
}

func TestTransport_Send_UnknownService(t *testing.T) {
	transport, _ := newTestTransport(t, func(http.ResponseWriter, *http.Request) {})

	_, err := transport.Send(context.Background(), ports.Call{
		Endpoint: ports.Endpoint{Name: "x", Service: "elsewhere", Path: "x"},
	})

	require.ErrorIs(t, err, ErrUnknownService)
}
