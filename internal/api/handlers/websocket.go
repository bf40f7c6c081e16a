package handlers

import (
	"realtime-service/internal/realtime"

	"github.com/gin-gonic/gin"
)

type WSHandler struct {
	hub *realtime.Hub
}

func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// HandleWebSocket upgrades the request and hands the connection to the hub.
// The connection starts unauthenticated; clients authenticate with a frame
// after connecting, so no credential is required at upgrade time.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	realtime.ServeWS(h.hub, c.Writer, c.Request)
}
