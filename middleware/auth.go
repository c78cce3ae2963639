package middleware

import (
	"net/http"
	"strings"

	"fitbook/models"
	"fitbook/services/booking"
	"fitbook/utils"

	"github.com/gin-gonic/gin"
)

// actorKey is the context key under which the authenticated actor is stored.
const actorKey = "actor"

// JWTAuthMiddleware validates the bearer token and stores the resulting
// actor in the request context for handlers to pick up.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		principal, err := utils.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		switch principal.Role {
		case models.RoleClient, models.RoleTrainer, models.RoleAdmin:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown role in token"})
			return
		}

		c.Set(actorKey, booking.Actor{
			ID:        principal.Subject,
			Role:      principal.Role,
			AdminRank: models.AdminRank(principal.AdminRank),
		})
		c.Next()
	}
}

// GetActor returns the authenticated actor set by JWTAuthMiddleware.
func GetActor(c *gin.Context) (booking.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return booking.Actor{}, false
	}
	actor, ok := v.(booking.Actor)
	return actor, ok
}
