package room

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"gpt-generals/internal/game"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Bot control policies.
const (
	PolicyRandom = "random"
	PolicyModel  = "model"
)

// Lobby-policy errors, reported to the issuing client only.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotHost         = errors.New("only the host can do that")
	ErrNotWaiting      = errors.New("room is no longer accepting changes")
	ErrNotPlaying      = errors.New("game is not in progress")
	ErrAlreadyInRoom   = errors.New("player is already in a room")
	ErrPlayerNotInRoom = errors.New("player is not in a room")
)

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	IsHost bool   `json:"is_host"`
	IsBot  bool   `json:"is_bot"`

	// Policy selects the decision policy for a bot's units; empty for
	// human players.
	Policy string `json:"-"`

	joinedAt time.Time
}

// Room is one isolated game instance: roster, config, chat log and,
// once started, the game state. All mutation happens under mu so moves
// from different sources never interleave mid-validation; two rooms
// never share a lock.
type Room struct {
	mu sync.Mutex

	// sendMu is held across building a state message and handing it to
	// the broadcaster, so per-room delivery follows mutation order. It
	// is always acquired before mu.
	sendMu sync.Mutex

	ID        string
	Name      string
	Visible   bool
	Status    Status
	Players   []*Player // join order
	Config    game.Config
	Tick      time.Duration
	State     *game.State
	Chat      []ChatMessage
	CreatedAt time.Time

	rng       *rand.Rand
	done      chan struct{}
	closeOnce sync.Once
}

// Done is closed when the room is torn down; the decision runner stops
// on it.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		if r.Status == StatusPlaying {
			r.Status = StatusFinished
		}
		r.mu.Unlock()
		close(r.done)
	})
}

// GetStatus returns the room status under the lock.
func (r *Room) GetStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status
}

// HostID returns the current host's player ID, or "" for an empty room.
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Players {
		if p.IsHost {
			return p.ID
		}
	}
	return ""
}

// PlayerByID returns the roster entry for id.
func (r *Room) PlayerByID(id string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playerLocked(id)
}

func (r *Room) playerLocked(id string) (*Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// addPlayer appends p to the roster. Joining is only allowed while the
// room is waiting; rejoining under an existing roster ID rebinds at any
// status and returns the existing entry.
func (r *Room) addPlayer(p *Player) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.playerLocked(p.ID); ok {
		return existing, nil
	}
	if r.Status != StatusWaiting {
		return nil, ErrNotWaiting
	}
	p.joinedAt = time.Now()
	if p.Color == "" {
		p.Color = colorForIndex(len(r.Players))
	}
	r.Players = append(r.Players, p)
	return p, nil
}

// removePlayer drops id from the roster. When the departing player was
// host, the oldest remaining member inherits the role.
func (r *Room) removePlayer(id string) (removed *Player, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.Players {
		if p.ID != id {
			continue
		}
		removed = p
		r.Players = append(r.Players[:i], r.Players[i+1:]...)
		break
	}
	if removed == nil {
		return nil, len(r.Players) == 0
	}
	if removed.IsHost && len(r.Players) > 0 {
		removed.IsHost = false
		r.Players[0].IsHost = true
	}
	return removed, len(r.Players) == 0
}

// start transitions waiting -> playing, generating the map and placing
// units and coins. On placement failure the room stays waiting.
func (r *Room) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status != StatusWaiting {
		return ErrNotWaiting
	}
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ID
	}
	st, err := game.NewState(r.Config, ids, r.rng)
	if err != nil {
		return err
	}
	r.State = st
	r.Status = StatusPlaying
	return nil
}

// ApplyMove is the single validated mutation path for unit moves. On
// success it returns the post-move state message, built under the room
// lock. Callers that fan the message out must go through
// MoveAndBroadcast so delivery order matches mutation order.
func (r *Room) ApplyMove(unitName string, dir game.Direction, playerID string) (GameStateMessage, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status != StatusPlaying || r.State == nil {
		return GameStateMessage{}, false, ErrNotPlaying
	}
	collected, err := r.State.ApplyMove(unitName, dir, playerID)
	if err != nil {
		return GameStateMessage{}, false, err
	}
	return r.stateMessageLocked(), collected, nil
}

// MoveAndBroadcast applies the move and fans the resulting state out
// under the send lock. Without it, two movers could release the room
// lock in one order and reach the broadcaster in the other, showing
// subscribers a later turn before an earlier one.
func (r *Room) MoveAndBroadcast(unitName string, dir game.Direction, playerID string, b Broadcaster) (GameStateMessage, bool, error) {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	msg, collected, err := r.ApplyMove(unitName, dir, playerID)
	if err != nil {
		return GameStateMessage{}, false, err
	}
	if b != nil {
		b.ToRoom(r.ID, msg)
	}
	return msg, collected, nil
}

// BroadcastState pushes the current state to the room under the send
// lock, keeping it ordered with respect to move broadcasts.
func (r *Room) BroadcastState(b Broadcaster) (GameStateMessage, error) {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	msg, err := r.StateMessage()
	if err != nil {
		return GameStateMessage{}, err
	}
	if b != nil {
		b.ToRoom(r.ID, msg)
	}
	return msg, nil
}

// BotUnit identifies one unit owned by a bot player, with its policy.
type BotUnit struct {
	Name     string
	PlayerID string
	Policy   string
}

// BotSnapshot returns a read-only state copy plus the bot-controlled
// units, sorted by unit name. Policies decide on the snapshot outside
// the room lock.
func (r *Room) BotSnapshot() (*game.State, []BotUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status != StatusPlaying || r.State == nil {
		return nil, nil
	}
	policies := make(map[string]string)
	for _, p := range r.Players {
		if p.IsBot {
			policies[p.ID] = p.Policy
		}
	}
	var units []BotUnit
	for name, u := range r.State.Units {
		if policy, ok := policies[u.PlayerID]; ok {
			units = append(units, BotUnit{Name: name, PlayerID: u.PlayerID, Policy: policy})
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	if len(units) == 0 {
		return nil, nil
	}
	return r.State.Snapshot(), units
}
