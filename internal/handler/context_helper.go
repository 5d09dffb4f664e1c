package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wavechat-auth-api/internal/middleware"
	"github.com/noah-isme/wavechat-auth-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.TokenClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

func sessionFromContext(c *gin.Context) *models.SessionKey {
	value, exists := c.Get(middleware.ContextSessionKey)
	if !exists {
		return nil
	}
	record, ok := value.(*models.SessionKey)
	if !ok {
		return nil
	}
	return record
}
