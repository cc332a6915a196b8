package middleware

import (
	"github.com/authgate/authgate/internal/pkg/apperrors"
	"github.com/authgate/authgate/internal/service"
	"github.com/gin-gonic/gin"
)

// RateLimit enforces the per-client token bucket. Must run after AuthGuard;
// public routes carry no client and pass through untouched.
func RateLimit(clients *service.ClientRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := Client(c)
		if !ok {
			c.Next()
			return
		}

		limiter := clients.LimiterFor(client.ClientUUID)
		if !limiter.Allow() {
			appErr := apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded", nil)
			_ = c.Error(appErr)
			c.Abort()
			return
		}

		c.Next()
	}
}
