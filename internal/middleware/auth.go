// Package middleware provides Gin HTTP middleware for admin authentication,
// tenant resolution, rate limiting, security headers, and request metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RequestID → Metrics → RateLimit → ResolveTenant → Auth → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before tenant resolution to block floods before any DB
// work. ResolveTenant populates tenant identity for tenant-facing routes;
// RequireAdmin gates the control-plane API and is independent of tenant
// context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/staybase/staybase-backend/internal/auth"
)

// Context keys set by RequireAdmin.
const (
	CtxUserID     = "user_id"
	CtxUserEmail  = "user_email"
	CtxUserRole   = "user_role"
	CtxAuthMethod = "auth_method"
)

// RequireAdmin validates the Bearer JWT and rejects callers whose token does
// not carry the admin role. The admin API is operator-facing, so there is no
// weaker tier: a valid non-admin token is authenticated but forbidden.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin role required",
			})
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserEmail, claims.Email)
		c.Set(CtxUserRole, claims.Role)
		c.Set(CtxAuthMethod, "jwt")

		c.Next()
	}
}
