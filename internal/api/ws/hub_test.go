package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gpt-generals/internal/config"
	"gpt-generals/internal/game"
	"gpt-generals/internal/room"
	"gpt-generals/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Game: game.Config{
			Width: 10, Height: 10, WaterProbability: 0, CoinCount: 3, UnitsPerPlayer: 1,
		},
		TickInterval: 50 * time.Millisecond,
	}
	rm := room.NewManager(store.NewMemoryStore(), cfg)
	hub := NewHub(rm, cfg)
	rm.SetBroadcaster(hub)

	router := gin.New()
	router.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCmd(t *testing.T, conn *websocket.Conn, cmd any) {
	t.Helper()
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil discards messages until one with the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", msgType, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		if m["type"] == msgType {
			return m
		}
	}
}

func TestInvalidJSONGetsErrorReply(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readUntil(t, conn, "error")
	if msg["message"] != "invalid JSON format" {
		t.Fatalf("unexpected error message %v", msg["message"])
	}

	// The connection survives the bad frame.
	sendCmd(t, conn, Command{Command: "get_lobby_state"})
	readUntil(t, conn, "lobby_state")
}

func TestUnknownCommand(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	sendCmd(t, conn, Command{Command: "fly"})
	msg := readUntil(t, conn, "error")
	if got := msg["message"]; got != "unknown command: fly" {
		t.Fatalf("unexpected error message %v", got)
	}
}

func TestCommandOutsideRoom(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	sendCmd(t, conn, Command{Command: "move", UnitName: "A", Direction: "up"})
	msg := readUntil(t, conn, "error")
	if msg["message"] != "not in a room" {
		t.Fatalf("unexpected error message %v", msg["message"])
	}
}

func TestLobbyState(t *testing.T) {
	srv := newTestServer(t)
	host := dial(t, srv)
	sendCmd(t, host, Command{Command: "create_room", RoomName: "open game"})
	readUntil(t, host, "room_joined")

	watcher := dial(t, srv)
	sendCmd(t, watcher, Command{Command: "get_lobby_state"})
	msg := readUntil(t, watcher, "lobby_state")
	rooms, ok := msg["rooms"].([]any)
	if !ok || len(rooms) != 1 {
		t.Fatalf("expected one visible room, got %v", msg["rooms"])
	}
	summary := rooms[0].(map[string]any)
	if summary["name"] != "open game" {
		t.Fatalf("unexpected room summary %v", summary)
	}
}

func TestPrivateRoomHiddenFromLobby(t *testing.T) {
	srv := newTestServer(t)
	host := dial(t, srv)
	sendCmd(t, host, Command{Command: "create_room", Private: true})
	readUntil(t, host, "room_joined")

	watcher := dial(t, srv)
	sendCmd(t, watcher, Command{Command: "get_lobby_state"})
	msg := readUntil(t, watcher, "lobby_state")
	if rooms, ok := msg["rooms"].([]any); ok && len(rooms) != 0 {
		t.Fatalf("private room leaked into the lobby: %v", rooms)
	}
}

// gameView is the subset of game_state a test client needs to plan a
// legal move.
type gameView struct {
	roomID string
	width  int
	height int
	units  map[string][2]int // name -> position
	owner  map[string]string // name -> player id
	turn   int
}

func parseGameState(t *testing.T, msg map[string]any) gameView {
	t.Helper()
	v := gameView{
		roomID: msg["room_id"].(string),
		width:  int(msg["width"].(float64)),
		height: int(msg["height"].(float64)),
		units:  map[string][2]int{},
		owner:  map[string]string{},
		turn:   int(msg["current_turn"].(float64)),
	}
	for name, raw := range msg["units"].(map[string]any) {
		u := raw.(map[string]any)
		pos := u["position"].([]any)
		v.units[name] = [2]int{int(pos[0].(float64)), int(pos[1].(float64))}
		v.owner[name] = u["player_id"].(string)
	}
	return v
}

// freeMove picks a direction that keeps the unit in bounds and off
// other units. The test maps are all land so terrain never blocks.
func freeMove(t *testing.T, v gameView, unit string) string {
	t.Helper()
	pos, ok := v.units[unit]
	if !ok {
		t.Fatalf("unit %s not in state", unit)
	}
	occupied := map[[2]int]bool{}
	for _, p := range v.units {
		occupied[p] = true
	}
	candidates := map[string][2]int{
		"up":    {pos[0], pos[1] + 1},
		"down":  {pos[0], pos[1] - 1},
		"left":  {pos[0] - 1, pos[1]},
		"right": {pos[0] + 1, pos[1]},
	}
	for dir, target := range candidates {
		if target[0] < 0 || target[0] >= v.width || target[1] < 0 || target[1] >= v.height {
			continue
		}
		if occupied[target] {
			continue
		}
		return dir
	}
	t.Fatal("unit is boxed in")
	return ""
}

func unitOf(t *testing.T, v gameView, playerID string) string {
	t.Helper()
	for name, owner := range v.owner {
		if owner == playerID {
			return name
		}
	}
	t.Fatalf("no unit for player %s", playerID)
	return ""
}

func TestCreateJoinStartMoveFlow(t *testing.T) {
	srv := newTestServer(t)

	host := dial(t, srv)
	sendCmd(t, host, Command{Command: "create_room", RoomName: "flow"})
	joined := readUntil(t, host, "room_joined")
	roomID := joined["room_id"].(string)
	hostID := joined["player_id"].(string)

	guest := dial(t, srv)
	sendCmd(t, guest, Command{Command: "join_room", RoomID: roomID})
	readUntil(t, guest, "room_joined")

	sendCmd(t, host, Command{Command: "start_game"})
	state := parseGameState(t, readUntil(t, host, "game_state"))
	if len(state.units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(state.units))
	}
	// Both subscribers get the initial broadcast.
	readUntil(t, guest, "game_state")

	unit := unitOf(t, state, hostID)
	dir := freeMove(t, state, unit)
	sendCmd(t, host, Command{Command: "move", UnitName: unit, Direction: dir})
	result := readUntil(t, host, "move_result")
	if result["success"] != true {
		t.Fatalf("move rejected: %v", result["message"])
	}
	after := parseGameState(t, readUntil(t, guest, "game_state"))
	if after.turn != state.turn+1 {
		t.Fatalf("turn went %d -> %d, expected one accepted move", state.turn, after.turn)
	}

	// Moving someone else's unit fails without changing state.
	sendCmd(t, guest, Command{Command: "move", UnitName: unit, Direction: dir})
	rejected := readUntil(t, guest, "move_result")
	if rejected["success"] == true {
		t.Fatal("guest moved the host's unit")
	}
}

func TestChatBroadcast(t *testing.T) {
	srv := newTestServer(t)

	host := dial(t, srv)
	sendCmd(t, host, Command{Command: "create_room"})
	joined := readUntil(t, host, "room_joined")
	roomID := joined["room_id"].(string)

	guest := dial(t, srv)
	sendCmd(t, guest, Command{Command: "join_room", RoomID: roomID})
	readUntil(t, guest, "room_joined")

	sendCmd(t, host, Command{Command: "chat", Content: "good luck"})
	readUntil(t, host, "chat_result")

	msg := readUntil(t, guest, "chat_message")
	if msg["content"] != "good luck" {
		t.Fatalf("unexpected chat content %v", msg["content"])
	}
	if msg["sender_type"] != "player" {
		t.Fatalf("unexpected sender type %v", msg["sender_type"])
	}
}

func TestReconnectReclaimsSeat(t *testing.T) {
	srv := newTestServer(t)

	host := dial(t, srv)
	sendCmd(t, host, Command{Command: "create_room"})
	joined := readUntil(t, host, "room_joined")
	roomID := joined["room_id"].(string)
	hostID := joined["player_id"].(string)

	host.Close()

	again := dial(t, srv)
	sendCmd(t, again, Command{Command: "join_room", RoomID: roomID, PlayerID: hostID})
	rejoined := readUntil(t, again, "room_joined")
	if rejoined["player_id"] != hostID {
		t.Fatalf("rebind returned %v, want %v", rejoined["player_id"], hostID)
	}
}

func TestAddBotAndStart(t *testing.T) {
	srv := newTestServer(t)

	host := dial(t, srv)
	sendCmd(t, host, Command{Command: "create_room"})
	readUntil(t, host, "room_joined")

	sendCmd(t, host, Command{Command: "add_bot", Policy: "random"})
	added := readUntil(t, host, "bot_added")
	player := added["player"].(map[string]any)
	if player["is_bot"] != true {
		t.Fatalf("bot_added player is not a bot: %v", player)
	}

	sendCmd(t, host, Command{Command: "start_game"})
	state := parseGameState(t, readUntil(t, host, "game_state"))
	if len(state.units) != 2 {
		t.Fatalf("expected host and bot units, got %d", len(state.units))
	}

	// The runner drives the bot; a broadcast with a higher turn arrives
	// within a few ticks.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("bot never moved")
		}
		next := parseGameState(t, readUntil(t, host, "game_state"))
		if next.turn > state.turn {
			return
		}
	}
}

func TestUpdateConfigAndPlayerInfo(t *testing.T) {
	srv := newTestServer(t)

	host := dial(t, srv)
	sendCmd(t, host, Command{Command: "create_room"})
	readUntil(t, host, "room_joined")

	width, coins := 6, 2
	sendCmd(t, host, Command{Command: "update_game_config", Config: &room.ConfigUpdate{Width: &width, CoinCount: &coins}})
	updated := readUntil(t, host, "config_updated")
	cfg := updated["config"].(map[string]any)
	if int(cfg["width"].(float64)) != 6 || int(cfg["num_coins"].(float64)) != 2 {
		t.Fatalf("config not applied: %v", cfg)
	}

	sendCmd(t, host, Command{Command: "update_player_info", Name: "General", Color: "#123456"})
	info := readUntil(t, host, "player_info")
	player := info["player"].(map[string]any)
	if player["name"] != "General" || player["color"] != "#123456" {
		t.Fatalf("player info not applied: %v", player)
	}
}

func TestBroadcastTurnsMonotone(t *testing.T) {
	srv := newTestServer(t)

	host := dial(t, srv)
	sendCmd(t, host, Command{Command: "create_room"})
	joined := readUntil(t, host, "room_joined")
	roomID := joined["room_id"].(string)
	hostID := joined["player_id"].(string)

	sendCmd(t, host, Command{Command: "add_bot", Policy: "random"})
	readUntil(t, host, "bot_added")

	guest := dial(t, srv)
	sendCmd(t, guest, Command{Command: "join_room", RoomID: roomID})
	readUntil(t, guest, "room_joined")

	sendCmd(t, host, Command{Command: "start_game"})
	state := parseGameState(t, readUntil(t, host, "game_state"))
	unit := unitOf(t, state, hostID)

	// The host floods moves while the runner drives the bot, so state
	// broadcasts come from two goroutines at once.
	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		host.SetReadDeadline(time.Now().Add(5 * time.Second))
		dirs := []string{"up", "right", "down", "left"}
		for i := 0; i < 40; i++ {
			if host.WriteJSON(Command{Command: "move", UnitName: unit, Direction: dirs[i%4]}) != nil {
				return
			}
			for {
				_, data, err := host.ReadMessage()
				if err != nil {
					return
				}
				var m map[string]any
				if json.Unmarshal(data, &m) != nil {
					return
				}
				if m["type"] == "move_result" {
					break
				}
			}
		}
	}()

	prev := -1
	for seen := 0; seen < 10; seen++ {
		gs := parseGameState(t, readUntil(t, guest, "game_state"))
		if gs.turn <= prev {
			t.Fatalf("subscriber saw turn %d after turn %d", gs.turn, prev)
		}
		prev = gs.turn
	}
	<-hostDone
}

func TestShutdownCancelsRunnerContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Game: game.Config{
			Width: 10, Height: 10, WaterProbability: 0, CoinCount: 3, UnitsPerPlayer: 1,
		},
		TickInterval: 50 * time.Millisecond,
	}
	rm := room.NewManager(store.NewMemoryStore(), cfg)
	hub := NewHub(rm, cfg)
	rm.SetBroadcaster(hub)

	select {
	case <-hub.runCtx.Done():
		t.Fatal("fresh hub context already cancelled")
	default:
	}
	hub.Shutdown()
	select {
	case <-hub.runCtx.Done():
	default:
		t.Fatal("Shutdown did not cancel the runner context")
	}
}

func TestLeaveRoomReturnsToLobby(t *testing.T) {
	srv := newTestServer(t)

	host := dial(t, srv)
	sendCmd(t, host, Command{Command: "create_room"})
	readUntil(t, host, "room_joined")

	sendCmd(t, host, Command{Command: "leave_room"})
	readUntil(t, host, "lobby_state")

	sendCmd(t, host, Command{Command: "get_state"})
	msg := readUntil(t, host, "error")
	if msg["message"] != "not in a room" {
		t.Fatalf("unexpected error %v", msg["message"])
	}
}
