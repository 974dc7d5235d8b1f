package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/crestrock/storefront/internal/service"
)

const staffKey = "staff"

// TokenVerifier turns a bearer token into a staff session.
type TokenVerifier interface {
	ParseToken(token string) (*service.StaffClaims, error)
}

// AuthMiddleware rejects requests without a valid staff session and
// stores the session on the context for Staff.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := verifier.ParseToken(strings.TrimSpace(token))
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(staffKey, claims)
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := Staff(c); claims == nil || !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// Staff returns the session stored by AuthMiddleware, or nil.
func Staff(c *gin.Context) *service.StaffClaims {
	v, ok := c.Get(staffKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*service.StaffClaims)
	return claims
}
