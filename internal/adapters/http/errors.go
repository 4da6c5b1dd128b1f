package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/authrpc/internal/adapters/http/dto"
)

// notFound answers unknown paths when no scenarios are served.
func notFound(c *gin.Context) {
	dto.Abort(c, http.StatusNotFound, dto.MessageNotFound)
}

// maxBodySize limits request bodies to maxBytes.
func maxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
