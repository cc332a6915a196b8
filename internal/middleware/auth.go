package middleware

import (
	"strings"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/pkg/apperrors"
	"github.com/authgate/authgate/internal/pkg/metrics"
	"github.com/authgate/authgate/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthGuard sequences client -> token -> role validation against the
// route's registered policy. Public routes bypass all three checks.
// Unmatched routes (empty FullPath) are left to the NoRoute handler.
func AuthGuard(table *auth.PolicyTable, tokens *auth.TokenService, clients *service.ClientRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}

		policy := table.Lookup(c.Request.Method, route)
		if policy.Kind == auth.PolicyPublic {
			c.Next()
			return
		}

		// 1. Client check
		clientUUID := c.GetHeader(HeaderClientID)
		if clientUUID == "" {
			deny(c, apperrors.New(apperrors.ErrMissingClientID, "client identifier header is required", nil))
			return
		}
		client, err := clients.Validate(c.Request.Context(), clientUUID, c.ClientIP())
		if err != nil {
			deny(c, err)
			return
		}
		c.Set(ContextClient, client)

		// 2. Token check
		expectedType := auth.TokenTypeAccess
		if policy.RefreshToken {
			expectedType = auth.TokenTypeRefresh
		}
		identity, err := tokens.Validate(bearerToken(c), expectedType)
		if err != nil {
			deny(c, err)
			return
		}

		// 3. Role check
		if !policy.Allows(identity.Role) {
			deny(c, apperrors.NewInsufficientRole(policy.RequiredRoles(), string(identity.Role)))
			return
		}

		c.Set(ContextIdentity, identity)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return ""
}

func deny(c *gin.Context, err error) {
	appErr := apperrors.Classify(err)
	metrics.AuthFailures.WithLabelValues(string(appErr.Type)).Inc()
	_ = c.Error(appErr)
	c.Abort()
}

// Identity returns the caller attached by a successful token check.
func Identity(c *gin.Context) (*model.Identity, bool) {
	val, ok := c.Get(ContextIdentity)
	if !ok {
		return nil, false
	}
	identity, ok := val.(*model.Identity)
	return identity, ok
}

// Client returns the validated client registration, if any.
func Client(c *gin.Context) (*model.ClientRegistration, bool) {
	val, ok := c.Get(ContextClient)
	if !ok {
		return nil, false
	}
	client, ok := val.(*model.ClientRegistration)
	return client, ok
}
