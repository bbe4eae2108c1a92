package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fixitnow/fixitnow-api/internal/authz"
	"github.com/fixitnow/fixitnow-api/internal/middleware"
	"github.com/fixitnow/fixitnow-api/internal/models"
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

func actorFromContext(c *gin.Context) (authz.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return authz.Actor{}, false
	}
	return authz.Actor{ID: claims.UserID, Role: claims.Role}, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
