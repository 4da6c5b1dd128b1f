package dto

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/authrpc/internal/adapters/clients/acl"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(http.StatusBadRequest, MessageAPIKeyInvalid+" : API key not valid")

	assert.Equal(t, http.StatusBadRequest, resp.Error.Code)
	assert.Equal(t, "API_KEY_INVALID : API key not valid", resp.Error.Message)
	assert.Equal(t, "INVALID_ARGUMENT", resp.Error.Status)
	require.Len(t, resp.Error.Errors, 1)
	assert.Equal(t, "keyInvalid", resp.Error.Errors[0].Reason)
}

func TestStatusName(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "INVALID_ARGUMENT"},
		{http.StatusUnauthorized, "UNAUTHENTICATED"},
		{http.StatusForbidden, "PERMISSION_DENIED"},
		{http.StatusNotFound, "NOT_FOUND"},
		{http.StatusTooManyRequests, "RESOURCE_EXHAUSTED"},
		{http.StatusServiceUnavailable, "UNAVAILABLE"},
		{http.StatusBadGateway, "INTERNAL"},
		{http.StatusTeapot, ""},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusName(tt.status))
		})
	}
}

func TestAbort_ClientReadsEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/accounts:lookup", nil)

	Abort(c, http.StatusBadRequest, "INVALID_ID_TOKEN : token expired")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env, ok := acl.ParseErrorEnvelope(w.Body.Bytes())
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.Equal(t, "INVALID_ID_TOKEN", env.Code)
	assert.Equal(t, "token expired", env.Detail)
	assert.Equal(t, []string{"invalid"}, env.Reasons)
}

func TestBindAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "valid", body: `{"name":"enrollment-ok"}`},
		{name: "blank name", body: `{"name":"  "}`, wantErr: ErrValidation, wantMsg: "name: must not be empty"},
		{name: "not json", body: `name=x`, wantErr: ErrBinding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPut, "/-/scenarios/active", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req ActivateScenarioRequest
			err := BindAndValidate(c, &req)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "enrollment-ok", req.Name)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)

			items := ValidationItems(err)
			require.NotEmpty(t, items)

			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, items[0].Message)
			}
		})
	}
}

func TestValidationItems_PlainError(t *testing.T) {
	items := ValidationItems(errors.New("unexpected EOF"))

	require.Len(t, items, 1)
	assert.Equal(t, "parseError", items[0].Reason)
}
