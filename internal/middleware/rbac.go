package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
	"github.com/noah-isme/lms-points-api/pkg/response"
)

// RBAC admits the listed roles. When selfParam is set, a caller whose user id
// equals that path parameter is admitted regardless of role.
func RBAC(selfParam string, allowed ...models.UserRole) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if selfParam != "" {
			if targetID := c.Param(selfParam); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles admits only the given roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return RBAC("", roles...)
}

// RequireRolesOrSelf admits the given roles or the user named by the :id parameter.
func RequireRolesOrSelf(roles ...models.UserRole) gin.HandlerFunc {
	return RBAC("id", roles...)
}
