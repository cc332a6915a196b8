package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderClientID  = "X-Client-Id"

	ContextRequestID = "request_id"
	ContextStartTime = "request_start"
	ContextIdentity  = "identity"
	ContextClient    = "client"
	ContextAppError  = "app_error"
)

// CorrelationID stamps every inbound request with a correlation ID and start
// time before any other logic runs, and echoes the ID on the response. A
// caller-supplied X-Request-ID is honored so callers can trace across hops.
// Runs first so even routing failures are traceable. Cannot fail.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ContextRequestID, reqID)
		c.Set(ContextStartTime, time.Now())
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// RequestID returns the correlation ID stamped on the context, or "" when
// the tagger never ran.
func RequestID(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}
