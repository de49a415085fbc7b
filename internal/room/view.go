package room

import (
	"time"

	"gpt-generals/internal/game"
)

// Wire payloads pushed to clients. Each carries its own "type"
// discriminator so the hub can fan them out without wrapping.

type PlayerView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	IsHost bool   `json:"is_host"`
	IsBot  bool   `json:"is_bot"`
}

type RoomSummary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Visible   bool        `json:"visible"`
	Status    Status      `json:"status"`
	Players   []PlayerView `json:"players"`
	Config    game.Config `json:"config"`
	CreatedAt time.Time   `json:"created_at"`
}

type LobbyStateMessage struct {
	Type  string        `json:"type"` // "lobby_state"
	Rooms []RoomSummary `json:"rooms"`
}

type GameStateMessage struct {
	Type          string                `json:"type"` // "game_state"
	RoomID        string                `json:"room_id"`
	MapGrid       []string              `json:"map_grid"`
	Units         map[string]game.Unit  `json:"units"`
	Players       map[string]PlayerView `json:"players"`
	CoinPositions []game.Position       `json:"coin_positions"`
	CurrentTurn   int                   `json:"current_turn"`
	Width         int                   `json:"width"`
	Height        int                   `json:"height"`
}

type ChatBroadcast struct {
	Type   string `json:"type"` // "chat_message"
	RoomID string `json:"room_id"`
	ChatMessage
}

func playerView(p *Player) PlayerView {
	return PlayerView{ID: p.ID, Name: p.Name, Color: p.Color, IsHost: p.IsHost, IsBot: p.IsBot}
}

// PlayerViewByID returns a copy of the roster entry's visible fields,
// built under the room lock. The hub reads player state through this
// instead of the shared Player struct, which other goroutines mutate
// under the same lock (host succession, renames).
func (r *Room) PlayerViewByID(id string) (PlayerView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playerLocked(id)
	if !ok {
		return PlayerView{}, false
	}
	return playerView(p), true
}

// Summary returns the lobby view of the room.
func (r *Room) Summary() RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

func (r *Room) summaryLocked() RoomSummary {
	players := make([]PlayerView, len(r.Players))
	for i, p := range r.Players {
		players[i] = playerView(p)
	}
	return RoomSummary{
		ID:        r.ID,
		Name:      r.Name,
		Visible:   r.Visible,
		Status:    r.Status,
		Players:   players,
		Config:    r.Config,
		CreatedAt: r.CreatedAt,
	}
}

// StateMessage builds a game_state push from the current state.
func (r *Room) StateMessage() (GameStateMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State == nil {
		return GameStateMessage{}, ErrNotPlaying
	}
	return r.stateMessageLocked(), nil
}

func (r *Room) stateMessageLocked() GameStateMessage {
	snap := r.State.Snapshot()
	units := make(map[string]game.Unit, len(snap.Units))
	for name, u := range snap.Units {
		units[name] = *u
	}
	players := make(map[string]PlayerView, len(r.Players))
	for _, p := range r.Players {
		players[p.ID] = playerView(p)
	}
	return GameStateMessage{
		Type:          "game_state",
		RoomID:        r.ID,
		MapGrid:       snap.Grid.Rows(),
		Units:         units,
		Players:       players,
		CoinPositions: snap.CoinPositions(),
		CurrentTurn:   snap.Turn,
		Width:         snap.Grid.Width,
		Height:        snap.Grid.Height,
	}
}

// ChatPayload wraps a chat message for room fan-out.
func (r *Room) ChatPayload(msg ChatMessage) ChatBroadcast {
	return ChatBroadcast{Type: "chat_message", RoomID: r.ID, ChatMessage: msg}
}

func lobbyMessage(rooms []RoomSummary) LobbyStateMessage {
	if rooms == nil {
		rooms = []RoomSummary{}
	}
	return LobbyStateMessage{Type: "lobby_state", Rooms: rooms}
}
