package ws

import (
	"gpt-generals/internal/room"
)

// Command is the client-to-server envelope. The "command" field selects
// the action; the remaining fields are flat and optional, matching the
// wire format.
type Command struct {
	Command string `json:"command"`

	// move
	UnitName  string `json:"unit_name,omitempty"`
	Direction string `json:"direction,omitempty"`

	// chat
	Sender     string `json:"sender,omitempty"`
	Content    string `json:"content,omitempty"`
	SenderType string `json:"sender_type,omitempty"`

	// room lifecycle
	RoomID   string             `json:"room_id,omitempty"`
	RoomName string             `json:"room_name,omitempty"`
	Private  bool               `json:"private,omitempty"`
	Config   *room.ConfigUpdate `json:"config,omitempty"`
	PlayerID string             `json:"player_id,omitempty"`
	Policy   string             `json:"policy,omitempty"`

	// player info
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// Direct replies to the issuing client. Broadcast payloads
// (game_state, lobby_state, chat_message) live in the room package.

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

func errorMessage(msg string) ErrorMessage {
	return ErrorMessage{Type: "error", Message: msg}
}

type MoveResult struct {
	Type      string `json:"type"` // "move_result"
	Success   bool   `json:"success"`
	UnitName  string `json:"unit_name"`
	Direction string `json:"direction"`
	Message   string `json:"message,omitempty"`
}

type ChatResult struct {
	Type    string `json:"type"` // "chat_result"
	Success bool   `json:"success"`
}

type RoomJoined struct {
	Type     string           `json:"type"` // "room_joined"
	RoomID   string           `json:"room_id"`
	PlayerID string           `json:"player_id"`
	Room     room.RoomSummary `json:"room"`
}

type ConfigUpdated struct {
	Type   string      `json:"type"` // "config_updated"
	RoomID string      `json:"room_id"`
	Config interface{} `json:"config"`
}

type PlayerInfo struct {
	Type   string          `json:"type"` // "player_info"
	Player room.PlayerView `json:"player"`
}

type BotAdded struct {
	Type   string          `json:"type"` // "bot_added"
	RoomID string          `json:"room_id"`
	Player room.PlayerView `json:"player"`
}
