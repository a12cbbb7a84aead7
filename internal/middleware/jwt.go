package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thutoworks/thuto-api/internal/models"
	"github.com/thutoworks/thuto-api/internal/service"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// ContextActorKey is the gin context key storing the resolved actor context.
const ContextActorKey = "currentActor"

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// ActorContext resolves the authenticated claims into a full actor context.
// Must run after JWT. A token whose account or role no longer exists is
// treated as unauthorized.
func ActorContext(resolver *service.ResolverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		actor, err := resolver.Resolve(c.Request.Context(), claims.AccountID, claims.Role)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account can no longer be resolved"))
			c.Abort()
			return
		}

		c.Set(ContextActorKey, *actor)
		c.Next()
	}
}
