package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/authrpc/internal/adapters/http/dto"
)

const (
	// HeaderAPIKey carries the project API key.
	HeaderAPIKey = "X-Goog-Api-Key"

	// QueryAPIKey is the query parameter the backend also accepts.
	QueryAPIKey = "key"

	// ContextKeyScenario is the gin context key of the served scenario name.
	ContextKeyScenario = "scenario"
)

// RequireAPIKey rejects requests whose API key differs from apiKey with the
// API_KEY_INVALID envelope. An empty apiKey accepts every request.
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	want := []byte(apiKey)

	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		got := c.GetHeader(HeaderAPIKey)
		if got == "" {
			got = c.Query(QueryAPIKey)
		}

		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			dto.Abort(c, http.StatusBadRequest, dto.MessageAPIKeyInvalid+" : API key not valid. Please pass a valid API key.")
			return
		}

		c.Next()
	}
}
