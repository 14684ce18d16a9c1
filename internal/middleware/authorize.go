package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alumnihub/api/internal/rbac"
)

// RequirePermissions gates a route on the caller's resolved permission set.
// Every listed permission must be present (AND semantics); an empty list
// allows everyone. Role names are never consulted here.
func RequirePermissions(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(permissions) == 0 {
			c.Next()
			return
		}

		identity, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "authentication_required"})
			return
		}

		if !rbac.HasAll(identity.Permissions, permissions) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient_permissions"})
			return
		}

		c.Next()
	}
}
