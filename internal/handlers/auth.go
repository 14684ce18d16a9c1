package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alumnihub/api/internal/middleware"
	"alumnihub/api/internal/service"
)

const refreshCookiePath = "/api/v1/auth"

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

// validPassword requires at least one uppercase letter, lowercase letter,
// digit, and symbol. Length is enforced by the binding tag.
func validPassword(password string) bool {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

type authResponse struct {
	AccessToken string              `json:"accessToken"`
	User        service.UserSummary `json:"user"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validPassword(req.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
		return
	}

	err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.sendAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Please verify your email address.",
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.GetHeader("User-Agent"),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		h.sendAuthError(c, err)
		return
	}

	h.sendTokenPair(c, result)
}

func (h HandlerSet) Refresh(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_refresh_token"})
		return
	}

	result, err := h.authService.RefreshTokens(
		c.Request.Context(),
		identity.UserID,
		middleware.RawRefreshToken(c),
		c.GetHeader("User-Agent"),
		c.ClientIP(),
	)
	if err != nil {
		h.sendAuthError(c, err)
		return
	}

	h.sendTokenPair(c, result)
}

func (h HandlerSet) Logout(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	raw, _ := c.Cookie(middleware.RefreshCookieName)
	if err := h.authService.Logout(c.Request.Context(), identity.UserID, raw); err != nil {
		h.sendAuthError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) LogoutAll(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.LogoutAll(c.Request.Context(), identity.UserID); err != nil {
		h.sendAuthError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) VerifyEmail(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), identity.UserID); err != nil {
		h.sendAuthError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Me returns the token's identity snapshot; no store round-trip beyond the
// one the auth middleware already performed.
func (h HandlerSet) Me(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          identity.UserID,
		"email":       identity.Email,
		"permissions": identity.Permissions,
	})
}

type sessionResponse struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"userAgent"`
	IPAddress string    `json:"ipAddress"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessions, err := h.authService.ListSessions(c.Request.Context(), identity.UserID)
	if err != nil {
		h.sendAuthError(c, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:        session.ID,
			UserAgent: session.UserAgent,
			IPAddress: session.IPAddress,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.RevokeSession(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		h.sendAuthError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GoogleLogin redirects to the Google consent screen.
func (h HandlerSet) GoogleLogin(c *gin.Context) {
	url, err := h.google.AuthURL(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("google auth url failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback completes the OIDC flow, resolves or creates the local
// account, and hands the browser back to the frontend with an access token.
func (h HandlerSet) GoogleCallback(c *gin.Context) {
	profile, err := h.google.Exchange(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		h.log.Warn().Err(err).Msg("google callback exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "oauth_failed"})
		return
	}

	user, err := h.authService.FindOrCreateFromGoogle(c.Request.Context(), service.GoogleProfile{
		GoogleID:  profile.Sub,
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		AvatarURL: profile.AvatarURL,
	})
	if err != nil {
		h.sendAuthError(c, err)
		return
	}

	result, err := h.authService.LoginWithGoogle(
		c.Request.Context(),
		user.ID,
		c.GetHeader("User-Agent"),
		c.ClientIP(),
	)
	if err != nil {
		h.sendAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)

	// The frontend strips the token from the URL immediately after loading.
	c.Redirect(http.StatusFound, fmt.Sprintf("%s/auth/callback?access_token=%s", h.cfg.FrontendURL, result.AccessToken))
}

func (h HandlerSet) sendTokenPair(c *gin.Context, result service.AuthResult) {
	h.setRefreshCookie(c, result.RefreshToken)
	c.JSON(http.StatusOK, authResponse{
		AccessToken: result.AccessToken,
		User:        result.User,
	})
}

func (h HandlerSet) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		middleware.RefreshCookieName,
		token,
		int(h.cfg.Security.JWTRefreshTTL.Seconds()),
		refreshCookiePath,
		"",
		h.cfg.IsProduction(),
		true,
	)
}

func (h HandlerSet) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.RefreshCookieName, "", -1, refreshCookiePath, "", h.cfg.IsProduction(), true)
}

// sendAuthError maps service sentinels to client-facing statuses. Anything
// unclassified is logged and surfaced generically.
func (h HandlerSet) sendAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, service.ErrInvalidRefreshToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_refresh_token"})
	case errors.Is(err, service.ErrUserSuspended):
		c.JSON(http.StatusForbidden, gin.H{"error": "account_suspended"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("auth operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
	}
}
