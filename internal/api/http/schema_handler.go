package http

import (
	"net/http"

	"gpt-generals/internal/room"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"
)

// @Summary Wire protocol schema
// @Description Returns JSON schemas for the server push messages
// @Tags Ops
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/protocol/schema [get]
func ProtocolSchemaHandler() gin.HandlerFunc {
	schemas := gin.H{
		"game_state":   jsonschema.Reflect(&room.GameStateMessage{}),
		"lobby_state":  jsonschema.Reflect(&room.LobbyStateMessage{}),
		"chat_message": jsonschema.Reflect(&room.ChatBroadcast{}),
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, schemas)
	}
}
