package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/thutoworks/thuto-api/internal/middleware"
	"github.com/thutoworks/thuto-api/internal/models"
)

// currentClaims extracts validated JWT claims from the gin context.
func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

// currentActor extracts the resolved actor context from the gin context.
func currentActor(c *gin.Context) (models.AccountContext, bool) {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return models.AccountContext{}, false
	}
	actor, ok := value.(models.AccountContext)
	return actor, ok
}
