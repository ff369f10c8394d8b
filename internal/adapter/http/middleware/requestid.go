package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID echoes the correlation ID back to the caller.
const HeaderRequestID = "X-Request-ID"

// RequestID attaches a correlation ID to every request. An inbound
// X-Request-ID is honored so callers can trace retries end to end.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}
