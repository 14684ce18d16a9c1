package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"alumnihub/api/internal/security"
	"alumnihub/api/internal/service"
)

const identityKey = "identity"

// Identity is the authenticated caller, attached to the request context by
// Auth or RefreshCookie and read back explicitly by handlers and the
// permission guard.
type Identity struct {
	UserID      string
	Email       string
	Permissions []string
}

// CurrentIdentity returns the identity attached by an auth middleware.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	val, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := val.(Identity)
	return identity, ok
}

// Auth validates a Bearer access token and re-checks the subject against the
// store on every request, so a deleted or suspended account is cut off at
// its next call, not at its next login.
func Auth(issuer *security.TokenIssuer, users service.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		claims, err := issuer.ParseAccess(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_not_found"})
			return
		}
		if user.IsSuspended {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_suspended"})
			return
		}

		c.Set(identityKey, Identity{
			UserID:      claims.Subject,
			Email:       claims.Email,
			Permissions: claims.Permissions,
		})

		c.Next()
	}
}
