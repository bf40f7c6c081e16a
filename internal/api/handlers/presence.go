package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PresenceReader is the read side of the presence store.
// *services.PresenceService is the production implementation.
type PresenceReader interface {
	IsUserOnline(ctx context.Context, userID string) (bool, error)
	GetOnlineUsers(ctx context.Context) ([]string, error)
}

type PresenceHandler struct {
	presence PresenceReader
}

func NewPresenceHandler(presence PresenceReader) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// OnlineUsers lists the users that currently hold at least one connection.
func (h *PresenceHandler) OnlineUsers(c *gin.Context) {
	users, err := h.presence.GetOnlineUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"online_users": users,
		"count":        len(users),
	})
}

// UserOnline reports whether one user is currently online.
func (h *PresenceHandler) UserOnline(c *gin.Context) {
	userID := c.Param("userId")

	online, err := h.presence.IsUserOnline(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"online":  online,
	})
}
