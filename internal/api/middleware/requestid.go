package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/sheenhq/workspace-gateway/internal/shared/id"
)

// RequestIDHeader carries the correlation ID; inbound values are trusted
// only for correlation, never identity.
const RequestIDHeader = "X-Request-Id"

// RequestID assigns each request a ULID correlation ID unless the caller
// already supplied one, and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = string(id.NewRequestID())
		}
		c.Set("request_id", rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}
