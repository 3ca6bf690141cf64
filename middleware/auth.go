package middleware

import (
	"net/http"
	"strings"

	"ledgerpay/utils"

	"github.com/gin-gonic/gin"
)

// ActorKey is the gin context key holding the authenticated *utils.Actor.
const ActorKey = "actor"

func JWTAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{Message: "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		// Validate the token signature and expiration.
		actor, err := utils.ExtractActor(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{Message: "Invalid token"})
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// GetActor returns the actor set by JWTAuthMiddleware, or nil.
func GetActor(c *gin.Context) *utils.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if actor, ok := v.(*utils.Actor); ok {
			return actor
		}
	}
	return nil
}
