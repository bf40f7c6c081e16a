package routes

import (
	"realtime-service/internal/api/handlers"
	"realtime-service/internal/api/middleware"
	"realtime-service/internal/realtime"

	"github.com/gin-gonic/gin"
)

type Router struct {
	engine          *gin.Engine
	wsHandler       *handlers.WSHandler
	healthHandler   *handlers.HealthHandler
	presenceHandler *handlers.PresenceHandler
}

// NewRouter builds the HTTP surface. presence may be nil; the presence
// endpoints are then not registered.
func NewRouter(hub *realtime.Hub, presence handlers.PresenceReader) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.LogApi())

	router := &Router{
		engine:        engine,
		wsHandler:     handlers.NewWSHandler(hub),
		healthHandler: handlers.NewHealthHandler(hub),
	}
	if presence != nil {
		router.presenceHandler = handlers.NewPresenceHandler(presence)
	}
	return router
}

func (r *Router) SetupRoutes() {
	// Operational endpoints; read-only, available even when the bus is down.
	r.engine.GET("/health", r.healthHandler.Health)
	r.engine.GET("/stats", r.healthHandler.Stats)

	api := r.engine.Group("/api/v1")

	// Realtime endpoint; authentication happens in-protocol.
	api.GET("/ws", r.wsHandler.HandleWebSocket)

	if r.presenceHandler != nil {
		api.GET("/users/online", r.presenceHandler.OnlineUsers)
		api.GET("/users/:userId/online", r.presenceHandler.UserOnline)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
