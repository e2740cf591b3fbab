package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rackbook-api/internal/middleware"
	"github.com/noah-isme/rackbook-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext returns the requesting actor; ok is false when no valid
// claims were attached by the JWT middleware.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}
