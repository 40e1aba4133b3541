package auth

import (
	"net/http"
	"strings"

	"gamesfinder/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// bearerClaims extracts and validates the bearer token of the request.
func bearerClaims(c *gin.Context) (jwt.Claims, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return jwt.Claims{}, false
	}
	claims, err := jwt.ParseToken(parts[1])
	if err != nil {
		return jwt.Claims{}, false
	}
	return claims, true
}

// AuthMiddleware rejects requests without a valid token and sets userID and userRole.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing token"})
			return
		}
		c.Set("userID", claims.UserID)
		c.Set("userRole", claims.Role)
		c.Next()
	}
}
