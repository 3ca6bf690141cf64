package middleware

import (
	"net/http"

	"ledgerpay/utils"

	"github.com/gin-gonic/gin"
)

// RoleAdmin is the role claim allowed on administrative payment endpoints.
const RoleAdmin = "admin"

// RequireRole must run after JWTAuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		if actor == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{Message: "Authentication required"})
			return
		}
		if actor.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, utils.ErrorResponse{Message: "Insufficient permissions"})
			return
		}
		c.Next()
	}
}
