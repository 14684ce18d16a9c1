package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alumnihub/api/internal/security"
)

// RefreshCookieName is the HttpOnly cookie carrying the raw refresh token.
// Refresh tokens are never accepted from headers.
const RefreshCookieName = "refresh_token"

const refreshTokenKey = "refresh_token_raw"

// RefreshCookie validates the signature and expiry of the refresh token in
// the cookie. The stateful hash-match against stored records happens in the
// service, which also performs the rotation.
func RefreshCookie(issuer *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(RefreshCookieName)
		if err != nil || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_refresh_token"})
			return
		}

		claims, err := issuer.ParseRefresh(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_refresh_token"})
			return
		}

		c.Set(identityKey, Identity{
			UserID:      claims.Subject,
			Email:       claims.Email,
			Permissions: claims.Permissions,
		})
		c.Set(refreshTokenKey, raw)

		c.Next()
	}
}

// RawRefreshToken returns the cookie value RefreshCookie validated.
func RawRefreshToken(c *gin.Context) string {
	return c.GetString(refreshTokenKey)
}
