package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

type TerrainType byte

const (
	Land TerrainType = iota
	Water
)

// Glyph returns the single-character wire encoding used in game_state
// payloads and rendered maps.
func (t TerrainType) Glyph() byte {
	if t == Water {
		return '~'
	}
	return '.'
}

// Position is a cell coordinate. It marshals as a two-element [x, y]
// array to match the wire format.
type Position struct {
	X int
	Y int
}

func (p Position) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", p.X, p.Y)), nil
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("position: expected [x,y], got %d elements", len(pair))
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// Grid is the terrain map for one room. It is generated once at game
// start and never mutated afterwards. Cells are indexed [y][x].
type Grid struct {
	Width  int
	Height int
	Cells  [][]TerrainType
}

// GenerateGrid builds a Width x Height grid where each cell is
// independently water with probability waterProbability. Deterministic
// for a fixed rng seed.
func GenerateGrid(width, height int, waterProbability float64, rng *rand.Rand) Grid {
	g := newGrid(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if rng.Float64() < waterProbability {
				g.Cells[y][x] = Water
			}
		}
	}
	return g
}

// GenerateEmptyGrid builds an all-land grid.
func GenerateEmptyGrid(width, height int) Grid {
	return newGrid(width, height)
}

func newGrid(width, height int) Grid {
	if width <= 0 {
		width = 10
	}
	if height <= 0 {
		height = 10
	}
	cells := make([][]TerrainType, height)
	for y := range cells {
		cells[y] = make([]TerrainType, width)
	}
	return Grid{Width: width, Height: height, Cells: cells}
}

func (g Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// TerrainAt returns the terrain at p. Callers must check InBounds first.
func (g Grid) TerrainAt(p Position) TerrainType {
	return g.Cells[p.Y][p.X]
}

// Rows returns the grid as row-major terrain strings, row 0 first.
func (g Grid) Rows() []string {
	rows := make([]string, g.Height)
	buf := make([]byte, g.Width)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			buf[x] = g.Cells[y][x].Glyph()
		}
		rows[y] = string(buf)
	}
	return rows
}
