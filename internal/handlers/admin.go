package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) SuspendUser(c *gin.Context) {
	h.setSuspended(c, true)
}

func (h HandlerSet) UnsuspendUser(c *gin.Context) {
	h.setSuspended(c, false)
}

func (h HandlerSet) setSuspended(c *gin.Context, suspended bool) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id_required"})
		return
	}

	if err := h.authService.SetSuspended(c.Request.Context(), userID, suspended); err != nil {
		h.sendAuthError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
