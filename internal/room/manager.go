package room

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"gpt-generals/internal/config"
	"gpt-generals/internal/game"

	"github.com/google/uuid"
)

// Store persists rooms. The single implementation is the in-memory
// store; the interface keeps this package free of storage concerns.
type Store interface {
	GetRoom(id string) (*Room, bool)
	SaveRoom(r *Room)
	DeleteRoom(id string)
	Rooms() []*Room
}

// Manager is the room registry: it owns room lifecycle and the
// player-to-room mapping, and is injected into the gateway rather than
// living as package state.
type Manager struct {
	mu          sync.Mutex
	store       Store
	defaults    game.Config
	tick        time.Duration
	hub         Broadcaster
	playerRooms map[string]string
}

func NewManager(s Store, cfg *config.Config) *Manager {
	return &Manager{
		store:       s,
		defaults:    cfg.Game,
		tick:        cfg.TickInterval,
		playerRooms: make(map[string]string),
	}
}

// SetBroadcaster wires the hub in after construction; the hub needs the
// manager first.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	m.hub = b
	m.mu.Unlock()
}

func (m *Manager) broadcaster() Broadcaster {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hub
}

// CreateRoom opens a new room with host as its first member. A nil cfg
// uses the server defaults.
func (m *Manager) CreateRoom(name string, host *Player, cfg *game.Config, visible bool) (*Room, error) {
	gameCfg := m.defaults
	if cfg != nil {
		gameCfg = *cfg
	}
	if err := gameCfg.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, ok := m.playerRooms[host.ID]; ok {
		m.mu.Unlock()
		return nil, ErrAlreadyInRoom
	}
	if name == "" {
		name = host.Name + "'s game"
	}
	r := &Room{
		ID:        uuid.NewString(),
		Name:      name,
		Visible:   visible,
		Status:    StatusWaiting,
		Config:    gameCfg,
		Tick:      m.tick,
		CreatedAt: time.Now(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		done:      make(chan struct{}),
	}
	host.IsHost = true
	if _, err := r.addPlayer(host); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.playerRooms[host.ID] = r.ID
	m.store.SaveRoom(r)
	m.mu.Unlock()

	r.AppendChat("system", "Welcome to GPT Generals! Type your commands to control units.", SenderSystem)
	m.broadcastLobby()
	return r, nil
}

// JoinRoom adds p to the room's roster. Joining a started room is
// rejected unless p.ID already belongs to the roster, which rebinds a
// reconnecting player to their seat.
func (m *Manager) JoinRoom(roomID string, p *Player) (*Room, *Player, error) {
	m.mu.Lock()
	r, ok := m.store.GetRoom(roomID)
	if !ok {
		m.mu.Unlock()
		return nil, nil, ErrRoomNotFound
	}
	if cur, ok := m.playerRooms[p.ID]; ok && cur != roomID {
		m.mu.Unlock()
		return nil, nil, ErrAlreadyInRoom
	}
	joined, err := r.addPlayer(p)
	if err != nil {
		m.mu.Unlock()
		return nil, nil, err
	}
	m.playerRooms[joined.ID] = roomID
	m.store.SaveRoom(r)
	m.mu.Unlock()

	if joined == p {
		msg := r.AppendChat("system", p.Name+" joined the room", SenderSystem)
		if b := m.broadcaster(); b != nil {
			b.ToRoom(r.ID, r.ChatPayload(msg))
		}
	}
	m.broadcastLobby()
	return r, joined, nil
}

// LeaveRoom removes the player from their room. The oldest remaining
// member inherits the host role; a room with no human members left is
// torn down.
func (m *Manager) LeaveRoom(playerID string) error {
	m.mu.Lock()
	roomID, ok := m.playerRooms[playerID]
	if !ok {
		m.mu.Unlock()
		return ErrPlayerNotInRoom
	}
	delete(m.playerRooms, playerID)
	r, ok := m.store.GetRoom(roomID)
	if !ok {
		m.mu.Unlock()
		return nil
	}
	removed, empty := r.removePlayer(playerID)
	tearDown := empty || !r.hasHumans()
	if tearDown {
		for _, pv := range r.Summary().Players {
			delete(m.playerRooms, pv.ID)
		}
		m.store.DeleteRoom(roomID)
	} else {
		m.store.SaveRoom(r)
	}
	m.mu.Unlock()

	if tearDown {
		r.close()
	} else if removed != nil {
		msg := r.AppendChat("system", removed.Name+" left the room", SenderSystem)
		if b := m.broadcaster(); b != nil {
			b.ToRoom(r.ID, r.ChatPayload(msg))
		}
	}
	m.broadcastLobby()
	return nil
}

// AddBot adds a computer-controlled player. Host-only, waiting-only.
func (m *Manager) AddBot(roomID, requesterID, policy string) (*Player, error) {
	if policy == "" {
		policy = PolicyRandom
	}
	if policy != PolicyRandom && policy != PolicyModel {
		return nil, fmt.Errorf("unknown bot policy %q", policy)
	}
	m.mu.Lock()
	r, ok := m.store.GetRoom(roomID)
	if !ok {
		m.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	if r.HostID() != requesterID {
		m.mu.Unlock()
		return nil, ErrNotHost
	}
	bot := &Player{
		ID:     "bot-" + uuid.NewString(),
		Name:   fmt.Sprintf("Bot %d", r.botCount()+1),
		IsBot:  true,
		Policy: policy,
	}
	if _, err := r.addPlayer(bot); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.playerRooms[bot.ID] = roomID
	m.store.SaveRoom(r)
	m.mu.Unlock()

	m.broadcastLobby()
	return bot, nil
}

// UpdateConfig merges a partial config into the room's. Host-only,
// waiting-only.
func (m *Manager) UpdateConfig(roomID, requesterID string, upd ConfigUpdate) (game.Config, error) {
	r, ok := m.store.GetRoom(roomID)
	if !ok {
		return game.Config{}, ErrRoomNotFound
	}
	if r.HostID() != requesterID {
		return game.Config{}, ErrNotHost
	}
	cfg, err := r.updateConfig(upd)
	if err != nil {
		return game.Config{}, err
	}
	m.store.SaveRoom(r)
	m.broadcastLobby()
	return cfg, nil
}

// UpdatePlayerInfo renames or recolors a player, inside a room or out,
// and returns the resulting view. Roster entries are only mutated and
// read under the room lock; callers must not touch the fields of a
// rostered Player directly.
func (m *Manager) UpdatePlayerInfo(p *Player, name, color string) PlayerView {
	m.mu.Lock()
	roomID := m.playerRooms[p.ID]
	m.mu.Unlock()

	if roomID == "" {
		if name != "" {
			p.Name = name
		}
		if color != "" {
			p.Color = color
		}
		return playerView(p)
	}
	if r, ok := m.store.GetRoom(roomID); ok {
		if view, ok := r.updatePlayer(p.ID, name, color); ok {
			m.broadcastLobby()
			return view
		}
	}
	return playerView(p)
}

// StartGame transitions the room to playing and initializes the game
// state. Host-only. A placement failure is returned to the caller and
// the room stays waiting.
func (m *Manager) StartGame(roomID, requesterID string) (*Room, GameStateMessage, error) {
	r, ok := m.store.GetRoom(roomID)
	if !ok {
		return nil, GameStateMessage{}, ErrRoomNotFound
	}
	if r.HostID() != requesterID {
		return nil, GameStateMessage{}, ErrNotHost
	}
	if err := r.start(); err != nil {
		return nil, GameStateMessage{}, err
	}
	m.store.SaveRoom(r)

	msg, err := r.BroadcastState(m.broadcaster())
	if err != nil {
		return nil, GameStateMessage{}, err
	}
	m.broadcastLobby()
	return r, msg, nil
}

// Get returns a room by ID.
func (m *Manager) Get(roomID string) (*Room, bool) {
	return m.store.GetRoom(roomID)
}

// RoomOf returns the room the player currently belongs to.
func (m *Manager) RoomOf(playerID string) (*Room, bool) {
	m.mu.Lock()
	roomID, ok := m.playerRooms[playerID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return m.store.GetRoom(roomID)
}

// LobbySummaries lists visible rooms plus any room the requester
// already belongs to. An empty requester lists visible rooms only.
func (m *Manager) LobbySummaries(forPlayerID string) []RoomSummary {
	rooms := m.store.Rooms()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		s := r.Summary()
		if s.Visible {
			out = append(out, s)
			continue
		}
		for _, p := range s.Players {
			if forPlayerID != "" && p.ID == forPlayerID {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// LobbyMessage builds a lobby_state push for the requester.
func (m *Manager) LobbyMessage(forPlayerID string) LobbyStateMessage {
	return lobbyMessage(m.LobbySummaries(forPlayerID))
}

// broadcastLobby pushes the visible room list to all lobby subscribers.
// Private rooms only appear in direct get_lobby_state replies to their
// own members.
func (m *Manager) broadcastLobby() {
	if b := m.broadcaster(); b != nil {
		b.ToLobby(m.LobbyMessage(""))
	}
}

func colorForIndex(i int) string {
	return config.DefaultPlayerColors[i%len(config.DefaultPlayerColors)]
}
