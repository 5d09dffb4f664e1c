package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
)

// Header carries the request id across service boundaries. Inbound values are
// trusted and propagated so a request keeps one id through the platform.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware propagates the inbound request id or assigns a fresh one.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(Header)
		if reqID == "" {
			reqID = ksuid.New().String()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(Header, reqID)

		c.Next()
	}
}

// Value returns the request id stored in the gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
