package handlers

import (
	"net/http"
	"time"

	"realtime-service/internal/realtime"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	hub *realtime.Hub
}

func NewHealthHandler(hub *realtime.Hub) *HealthHandler {
	return &HealthHandler{hub: hub}
}

// Health reports registry sizes. It stays available regardless of bus state.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"connections": h.hub.ClientCount(),
		"rooms":       h.hub.RoomCount(),
		"timestamp":   time.Now().UTC(),
	})
}

// Stats reports per-connection authentication and subscription summaries.
func (h *HealthHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}
