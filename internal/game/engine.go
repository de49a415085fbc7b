package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// Validation errors returned by ApplyMove. The gateway maps these to
// error replies for the issuing client; state is never changed on error.
var (
	ErrUnitNotFound = errors.New("unit not found")
	ErrNotYourUnit  = errors.New("unit belongs to another player")
	ErrBadDirection = errors.New("unknown direction")
	ErrOutOfBounds  = errors.New("target position out of bounds")
	ErrBlocked      = errors.New("target position is water")
	ErrOccupied     = errors.New("target position occupied by another unit")

	ErrNotEnoughLand = errors.New("not enough free land cells")
)

type Direction string

const (
	DirUp    Direction = "up"
	DirDown  Direction = "down"
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

var Directions = []Direction{DirUp, DirDown, DirLeft, DirRight}

// Offset maps a direction to a unit grid offset. Up is +y: row 0 renders
// at the bottom of the map, so "up" moves toward higher row numbers.
func (d Direction) Offset() (dx, dy int, ok bool) {
	switch d {
	case DirUp:
		return 0, 1, true
	case DirDown:
		return 0, -1, true
	case DirLeft:
		return -1, 0, true
	case DirRight:
		return 1, 0, true
	}
	return 0, 0, false
}

type Unit struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
	PlayerID string   `json:"player_id"`
}

// Config holds the map and placement parameters for one game.
type Config struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	WaterProbability float64 `json:"water_probability"`
	CoinCount        int     `json:"num_coins"`
	UnitsPerPlayer   int     `json:"units_per_player"`
}

func (c Config) Validate() error {
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("map dimensions must be at least 1x1, got %dx%d", c.Width, c.Height)
	}
	if c.WaterProbability < 0 || c.WaterProbability > 1 {
		return fmt.Errorf("water probability must be in [0,1], got %v", c.WaterProbability)
	}
	if c.CoinCount < 0 {
		return fmt.Errorf("coin count must be non-negative, got %d", c.CoinCount)
	}
	if c.UnitsPerPlayer < 1 {
		return fmt.Errorf("units per player must be at least 1, got %d", c.UnitsPerPlayer)
	}
	return nil
}

// State is the mutable game state owned by a playing room. All access
// goes through the owning room's lock; State itself is not safe for
// concurrent use.
type State struct {
	Grid  Grid
	Units map[string]*Unit
	Coins map[Position]bool
	Turn  int

	nextUnitID int
}

// maxPlacementAttempts bounds rejection sampling per unit or coin when
// initializing a game.
const maxPlacementAttempts = 1000

// NewState generates the grid and places UnitsPerPlayer units for each
// player followed by CoinCount coins, all on distinct land cells. Unit
// names are single letters assigned in placement order (A, B, C, ...).
// Placement failure is returned as an error wrapping ErrNotEnoughLand
// and should abort the game start.
func NewState(cfg Config, playerIDs []string, rng *rand.Rand) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &State{
		Grid:  GenerateGrid(cfg.Width, cfg.Height, cfg.WaterProbability, rng),
		Units: make(map[string]*Unit),
		Coins: make(map[Position]bool),
	}
	for _, pid := range playerIDs {
		for i := 0; i < cfg.UnitsPerPlayer; i++ {
			if _, err := s.AddUnit(pid, rng); err != nil {
				return nil, err
			}
		}
	}
	for i := 0; i < cfg.CoinCount; i++ {
		pos, err := s.randomFreeLand(rng)
		if err != nil {
			return nil, fmt.Errorf("placing coin %d: %w", i, err)
		}
		s.Coins[pos] = true
	}
	return s, nil
}

// AddUnit places a new unit for the given player on a free land cell and
// returns its name.
func (s *State) AddUnit(playerID string, rng *rand.Rand) (string, error) {
	pos, err := s.randomFreeLand(rng)
	if err != nil {
		return "", fmt.Errorf("placing unit for player %s: %w", playerID, err)
	}
	name := string(rune('A' + s.nextUnitID))
	s.nextUnitID++
	s.Units[name] = &Unit{Name: name, Position: pos, PlayerID: playerID}
	return name, nil
}

// randomFreeLand rejection-samples a land cell not occupied by a unit or
// coin, failing after maxPlacementAttempts draws.
func (s *State) randomFreeLand(rng *rand.Rand) (Position, error) {
	for i := 0; i < maxPlacementAttempts; i++ {
		p := Position{X: rng.Intn(s.Grid.Width), Y: rng.Intn(s.Grid.Height)}
		if s.Grid.TerrainAt(p) != Land {
			continue
		}
		if _, occupied := s.UnitAt(p); occupied {
			continue
		}
		if s.Coins[p] {
			continue
		}
		return p, nil
	}
	return Position{}, ErrNotEnoughLand
}

// UnitAt returns the unit occupying p, if any.
func (s *State) UnitAt(p Position) (*Unit, bool) {
	for _, u := range s.Units {
		if u.Position == p {
			return u, true
		}
	}
	return nil, false
}

// ApplyMove moves a unit one cell in the given direction. Validation
// order: unit exists, ownership, direction, bounds, terrain, occupancy.
// On success the unit is moved, a coin at the target cell is collected,
// and the turn counter advances by one. The counter counts accepted
// moves, not synchronized rounds. An empty playerID skips the ownership
// check (trusted internal callers).
func (s *State) ApplyMove(unitName string, dir Direction, playerID string) (collected bool, err error) {
	unit, ok := s.Units[unitName]
	if !ok {
		return false, ErrUnitNotFound
	}
	if playerID != "" && unit.PlayerID != playerID {
		return false, ErrNotYourUnit
	}
	dx, dy, ok := dir.Offset()
	if !ok {
		return false, ErrBadDirection
	}
	target := Position{X: unit.Position.X + dx, Y: unit.Position.Y + dy}
	if !s.Grid.InBounds(target) {
		return false, ErrOutOfBounds
	}
	if s.Grid.TerrainAt(target) != Land {
		return false, ErrBlocked
	}
	if other, occupied := s.UnitAt(target); occupied && other.Name != unitName {
		return false, ErrOccupied
	}

	unit.Position = target
	if s.Coins[target] {
		delete(s.Coins, target)
		collected = true
	}
	s.Turn++
	return collected, nil
}

// ValidMoves returns the directions that would currently pass ApplyMove
// validation for the named unit.
func (s *State) ValidMoves(unitName string) []Direction {
	unit, ok := s.Units[unitName]
	if !ok {
		return nil
	}
	var out []Direction
	for _, d := range Directions {
		dx, dy, _ := d.Offset()
		target := Position{X: unit.Position.X + dx, Y: unit.Position.Y + dy}
		if !s.Grid.InBounds(target) || s.Grid.TerrainAt(target) != Land {
			continue
		}
		if _, occupied := s.UnitAt(target); occupied {
			continue
		}
		out = append(out, d)
	}
	return out
}

// CoinPositions returns the uncollected coins sorted by (y, x) for
// stable wire output.
func (s *State) CoinPositions() []Position {
	out := make([]Position, 0, len(s.Coins))
	for p := range s.Coins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Snapshot returns a deep copy safe to read outside the room lock.
func (s *State) Snapshot() *State {
	cp := &State{
		Grid:       s.Grid,
		Units:      make(map[string]*Unit, len(s.Units)),
		Coins:      make(map[Position]bool, len(s.Coins)),
		Turn:       s.Turn,
		nextUnitID: s.nextUnitID,
	}
	cells := make([][]TerrainType, len(s.Grid.Cells))
	for y, row := range s.Grid.Cells {
		cells[y] = append([]TerrainType(nil), row...)
	}
	cp.Grid.Cells = cells
	for name, u := range s.Units {
		c := *u
		cp.Units[name] = &c
	}
	for p := range s.Coins {
		cp.Coins[p] = true
	}
	return cp
}
