package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/clubgate/clubgate/pkg/tool"
)

// TraceMiddleware assigns a trace ID to every request. A client-supplied
// X-Request-ID is honored so gateway redeliveries correlate across retries;
// otherwise a fresh UUIDv7 is generated.
// The trace ID is stored in both gin.Context (key: "traceID") and the request's context.Context.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Request-ID")
		if traceID == "" {
			traceID = tool.GenerateUUIDV7()
		}

		c.Set("traceID", traceID)
		ctx := context.WithValue(c.Request.Context(), "traceID", traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
