package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"gpt-generals/internal/bot"
	"gpt-generals/internal/config"
	"gpt-generals/internal/game"
	"gpt-generals/internal/room"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // clients connect from arbitrary origins
	},
}

// client is one websocket connection and its bound player identity.
// The write mutex serializes concurrent WriteJSON calls from fan-out;
// the player binding has its own lock because the read loop rebinds it
// on join_room while broadcast goroutines read it. roomID is guarded
// by the hub mutex. Roster entries are mutated under the room lock
// (host succession, renames), so current player state is read through
// the room's views rather than off this pointer.
type client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	pmu    sync.Mutex
	player *room.Player
	roomID string
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) bound() *room.Player {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	return c.player
}

func (c *client) bind(p *room.Player) {
	c.pmu.Lock()
	c.player = p
	c.pmu.Unlock()
}

// Hub is the protocol gateway: it owns connection registration, routes
// commands to the room manager or the owning room, and fans broadcasts
// out to lobby and room subscriber sets. It performs no game logic.
type Hub struct {
	mu      sync.Mutex
	lobby   map[*client]struct{}
	rooms   map[string]map[*client]struct{}
	manager *room.Manager
	cfg     *config.Config
	model   bot.Policy // nil without an API key
	nextID  atomic.Uint64

	// runCtx is the parent of every room's decision runner; Shutdown
	// cancels it so runners do not outlive the server.
	runCtx context.Context
	cancel context.CancelFunc
}

func NewHub(m *room.Manager, cfg *config.Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		lobby:   make(map[*client]struct{}),
		rooms:   make(map[string]map[*client]struct{}),
		manager: m,
		cfg:     cfg,
		runCtx:  ctx,
		cancel:  cancel,
	}
	if cfg.Model.APIKey != "" {
		h.model = bot.NewModelPolicy(cfg.Model)
	}
	return h
}

// Shutdown stops the decision runners of all started rooms.
func (h *Hub) Shutdown() {
	h.cancel()
}

// HandleWS upgrades the connection, mints a player identity for it and
// runs the read loop. Malformed input produces an error reply to this
// connection only; the loop exits on read failure.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	seq := h.nextID.Add(1)
	cl := &client{
		conn: conn,
		player: &room.Player{
			ID:   uuid.NewString(),
			Name: fmt.Sprintf("Player %d", seq),
		},
	}
	log.Printf("client %s connected", cl.player.ID)
	defer h.drop(cl)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("client %s disconnected: %v", cl.player.ID, err)
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = cl.send(errorMessage("invalid JSON format"))
			continue
		}
		h.dispatch(cl, cmd)
	}
}

func (h *Hub) dispatch(cl *client, cmd Command) {
	switch cmd.Command {
	case "":
		_ = cl.send(errorMessage("missing command"))
	case "get_state":
		h.handleGetState(cl)
	case "move":
		h.handleMove(cl, cmd)
	case "chat":
		h.handleChat(cl, cmd)
	case "create_room":
		h.handleCreateRoom(cl, cmd)
	case "join_room":
		h.handleJoinRoom(cl, cmd)
	case "leave_room":
		h.handleLeaveRoom(cl)
	case "start_game":
		h.handleStartGame(cl)
	case "update_game_config":
		h.handleUpdateConfig(cl, cmd)
	case "update_player_info":
		h.handleUpdatePlayerInfo(cl, cmd)
	case "add_bot":
		h.handleAddBot(cl, cmd)
	case "get_lobby_state":
		h.handleGetLobbyState(cl)
	default:
		_ = cl.send(errorMessage("unknown command: " + cmd.Command))
	}
}

func (h *Hub) handleGetState(cl *client) {
	r, ok := h.manager.RoomOf(cl.player.ID)
	if !ok {
		_ = cl.send(errorMessage("not in a room"))
		return
	}
	msg, err := r.StateMessage()
	if err != nil {
		_ = cl.send(errorMessage(err.Error()))
		return
	}
	_ = cl.send(msg)
}

func (h *Hub) handleMove(cl *client, cmd Command) {
	if cmd.UnitName == "" || cmd.Direction == "" {
		_ = cl.send(errorMessage("missing unit_name or direction for move command"))
		return
	}
	r, ok := h.manager.RoomOf(cl.player.ID)
	if !ok {
		_ = cl.send(errorMessage("not in a room"))
		return
	}
	if _, _, err := r.MoveAndBroadcast(cmd.UnitName, game.Direction(cmd.Direction), cl.player.ID, h); err != nil {
		_ = cl.send(MoveResult{
			Type:      "move_result",
			UnitName:  cmd.UnitName,
			Direction: cmd.Direction,
			Message:   fmt.Sprintf("invalid move: %s cannot move %s: %v", cmd.UnitName, cmd.Direction, err),
		})
		return
	}
	_ = cl.send(MoveResult{Type: "move_result", Success: true, UnitName: cmd.UnitName, Direction: cmd.Direction})
}

func (h *Hub) handleChat(cl *client, cmd Command) {
	if cmd.Content == "" {
		_ = cl.send(errorMessage("missing content for chat command"))
		return
	}
	r, ok := h.manager.RoomOf(cl.player.ID)
	if !ok {
		_ = cl.send(errorMessage("not in a room"))
		return
	}
	sender := cmd.Sender
	if sender == "" {
		if view, ok := r.PlayerViewByID(cl.player.ID); ok {
			sender = view.Name
		} else {
			sender = cl.player.Name
		}
	}
	senderType := cmd.SenderType
	if senderType == "" {
		senderType = room.SenderPlayer
	}
	msg := r.AppendChat(sender, cmd.Content, senderType)
	h.ToRoom(r.ID, r.ChatPayload(msg))
	_ = cl.send(ChatResult{Type: "chat_result", Success: true})
}

func (h *Hub) handleCreateRoom(cl *client, cmd Command) {
	r, err := h.manager.CreateRoom(cmd.RoomName, cl.player, nil, !cmd.Private)
	if err != nil {
		_ = cl.send(errorMessage(err.Error()))
		return
	}
	if cmd.Config != nil {
		if _, err := h.manager.UpdateConfig(r.ID, cl.player.ID, *cmd.Config); err != nil {
			_ = cl.send(errorMessage(err.Error()))
		}
	}
	h.subscribe(cl, r.ID)
	_ = cl.send(RoomJoined{Type: "room_joined", RoomID: r.ID, PlayerID: cl.player.ID, Room: r.Summary()})
}

func (h *Hub) handleJoinRoom(cl *client, cmd Command) {
	if cmd.RoomID == "" {
		_ = cl.send(errorMessage("missing room_id for join_room command"))
		return
	}
	p := cl.player
	if cmd.PlayerID != "" {
		// Reconnecting client reclaiming its roster seat.
		p = &room.Player{ID: cmd.PlayerID, Name: cl.player.Name}
	}
	r, joined, err := h.manager.JoinRoom(cmd.RoomID, p)
	if err != nil {
		_ = cl.send(errorMessage(err.Error()))
		return
	}
	cl.bind(joined)
	h.subscribe(cl, r.ID)
	_ = cl.send(RoomJoined{Type: "room_joined", RoomID: r.ID, PlayerID: joined.ID, Room: r.Summary()})
}

func (h *Hub) handleLeaveRoom(cl *client) {
	if err := h.manager.LeaveRoom(cl.player.ID); err != nil {
		_ = cl.send(errorMessage(err.Error()))
		return
	}
	h.unsubscribe(cl)
	_ = cl.send(h.manager.LobbyMessage(cl.player.ID))
}

func (h *Hub) handleStartGame(cl *client) {
	r, ok := h.manager.RoomOf(cl.player.ID)
	if !ok {
		_ = cl.send(errorMessage("not in a room"))
		return
	}
	started, _, err := h.manager.StartGame(r.ID, cl.player.ID)
	if err != nil {
		_ = cl.send(errorMessage(err.Error()))
		return
	}
	runner := bot.NewRunner(started, h.model, h, h.cfg.Model.Timeout)
	go runner.Run(h.runCtx)
}

func (h *Hub) handleUpdateConfig(cl *client, cmd Command) {
	if cmd.Config == nil {
		_ = cl.send(errorMessage("missing config for update_game_config command"))
		return
	}
	r, ok := h.manager.RoomOf(cl.player.ID)
	if !ok {
		_ = cl.send(errorMessage("not in a room"))
		return
	}
	cfg, err := h.manager.UpdateConfig(r.ID, cl.player.ID, *cmd.Config)
	if err != nil {
		_ = cl.send(errorMessage(err.Error()))
		return
	}
	_ = cl.send(ConfigUpdated{Type: "config_updated", RoomID: r.ID, Config: cfg})
}

func (h *Hub) handleUpdatePlayerInfo(cl *client, cmd Command) {
	if cmd.Name == "" && cmd.Color == "" {
		_ = cl.send(errorMessage("missing name or color for update_player_info command"))
		return
	}
	view := h.manager.UpdatePlayerInfo(cl.player, cmd.Name, cmd.Color)
	_ = cl.send(PlayerInfo{Type: "player_info", Player: view})
}

func (h *Hub) handleAddBot(cl *client, cmd Command) {
	r, ok := h.manager.RoomOf(cl.player.ID)
	if !ok {
		_ = cl.send(errorMessage("not in a room"))
		return
	}
	p, err := h.manager.AddBot(r.ID, cl.player.ID, cmd.Policy)
	if err != nil {
		_ = cl.send(errorMessage(err.Error()))
		return
	}
	_ = cl.send(BotAdded{Type: "bot_added", RoomID: r.ID, Player: room.PlayerView{
		ID: p.ID, Name: p.Name, Color: p.Color, IsBot: true,
	}})
}

func (h *Hub) handleGetLobbyState(cl *client) {
	h.subscribeLobby(cl)
	_ = cl.send(h.manager.LobbyMessage(cl.player.ID))
}

// subscribe moves the connection from the lobby set to a room set.
func (h *Hub) subscribe(cl *client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lobby, cl)
	if cl.roomID != "" {
		delete(h.rooms[cl.roomID], cl)
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*client]struct{})
	}
	h.rooms[roomID][cl] = struct{}{}
	cl.roomID = roomID
}

// unsubscribe returns the connection to the lobby set.
func (h *Hub) unsubscribe(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl.roomID != "" {
		delete(h.rooms[cl.roomID], cl)
		cl.roomID = ""
	}
	h.lobby[cl] = struct{}{}
}

func (h *Hub) subscribeLobby(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl.roomID == "" {
		h.lobby[cl] = struct{}{}
	}
}

// drop tears the subscription down and closes the connection. The
// player stays in their room's roster; a reconnecting client reclaims
// the seat with join_room {player_id}.
func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	delete(h.lobby, cl)
	if cl.roomID != "" {
		delete(h.rooms[cl.roomID], cl)
	}
	h.mu.Unlock()
	_ = cl.conn.Close()
}

// ToRoom implements room.Broadcaster. Rooms hold their send lock
// across building a state message and handing it here, so per-room
// delivery follows mutation order.
func (h *Hub) ToRoom(roomID string, message any) {
	h.fanOut(h.roomClients(roomID), message)
}

// ToLobby implements room.Broadcaster.
func (h *Hub) ToLobby(message any) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.lobby))
	for cl := range h.lobby {
		targets = append(targets, cl)
	}
	h.mu.Unlock()
	h.fanOut(targets, message)
}

func (h *Hub) roomClients(roomID string) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.rooms[roomID]
	targets := make([]*client, 0, len(set))
	for cl := range set {
		targets = append(targets, cl)
	}
	return targets
}

func (h *Hub) fanOut(targets []*client, message any) {
	for _, cl := range targets {
		if err := cl.send(message); err != nil {
			log.Printf("dropping client %s: write failed: %v", cl.bound().ID, err)
			h.drop(cl)
		}
	}
}
