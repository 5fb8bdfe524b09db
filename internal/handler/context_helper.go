package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-points-api/internal/middleware"
	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
	"github.com/noah-isme/lms-points-api/pkg/response"
)

// actorFromContext resolves the caller, answering 401 itself when there is none.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}
