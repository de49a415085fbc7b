package http

import (
	"net/http"

	"gpt-generals/internal/room"

	"github.com/gin-gonic/gin"
)

// @Summary Health check
// @Tags Ops
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /healthz [get]
func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// @Summary List visible rooms
// @Description Returns the rooms discoverable from the lobby
// @Tags Room
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/rooms [get]
func RoomsHandler(rm *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rm.LobbySummaries("")})
	}
}
