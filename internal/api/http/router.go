package http

import (
	"gpt-generals/internal/api/ws"
	"gpt-generals/internal/room"

	"github.com/gin-gonic/gin"
)

func SetupRouter(rm *room.Manager, hub *ws.Hub) *gin.Engine {
	r := gin.Default()

	// WebSocket endpoint for game clients
	r.GET("/ws", hub.HandleWS)

	// --- REST ENDPOINTS ---
	r.GET("/healthz", HealthHandler())
	r.GET("/api/rooms", RoomsHandler(rm))
	r.GET("/api/protocol/schema", ProtocolSchemaHandler())

	return r
}
