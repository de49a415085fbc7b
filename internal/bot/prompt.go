package bot

import (
	"fmt"
	"sort"
	"strings"

	"gpt-generals/internal/game"
)

const systemPrompt = "You are an AI controlling a unit in the GPT Generals game. " +
	"Your goal is to collect coins on the map. " +
	"The game is played on a grid where units can move in four directions (up, down, left, right). " +
	"The map is displayed with row 0 at the bottom and higher rows at the top. " +
	"Up means moving toward the top of the displayed map (increasing y-coordinate), " +
	"down toward the bottom (decreasing y), left decreases x and right increases x. " +
	"Water tiles (~) cannot be traversed and cells occupied by other units are blocked. " +
	"You will receive a description of your surroundings to help you find coins. " +
	"Respond with a JSON object containing a \"direction\" field " +
	"(one of \"up\", \"down\", \"left\", \"right\", or \"wait\") " +
	"and a \"reasoning\" field briefly explaining the choice."

func userPrompt(snap *game.State, unit *game.Unit) string {
	return fmt.Sprintf(
		"You are controlling unit %s at position (%d,%d). "+
			"Choose a direction to collect coins efficiently.\n\n"+
			"What's around you:\n%s\n\n"+
			"Game state:\n%s\n\nCoins remaining: %d\nTurn: %d",
		unit.Name, unit.Position.X, unit.Position.Y,
		describeSurroundings(snap, unit),
		snap.RenderMap(),
		len(snap.Coins), snap.Turn,
	)
}

// compass directions in prompt terms; north is up (+y).
var compass = []struct {
	name string
	dir  game.Direction
}{
	{"north", game.DirUp},
	{"south", game.DirDown},
	{"west", game.DirLeft},
	{"east", game.DirRight},
}

// describeSurroundings writes a natural-language summary of the four
// adjacent cells and points toward the nearest coin beyond them.
func describeSurroundings(snap *game.State, unit *game.Unit) string {
	var lines []string
	var coinDirs []string

	for _, c := range compass {
		dx, dy, _ := c.dir.Offset()
		target := game.Position{X: unit.Position.X + dx, Y: unit.Position.Y + dy}
		if !snap.Grid.InBounds(target) {
			lines = append(lines, fmt.Sprintf("You can't go %s (map edge).", c.name))
			continue
		}
		if snap.Grid.TerrainAt(target) != game.Land {
			lines = append(lines, fmt.Sprintf("There is water to the %s.", c.name))
			continue
		}
		lines = append(lines, fmt.Sprintf("There is land to the %s.", c.name))
		if other, ok := snap.UnitAt(target); ok {
			lines = append(lines, fmt.Sprintf("Unit %s is to the %s.", other.Name, c.name))
		}
		if snap.Coins[target] {
			coinDirs = append(coinDirs, c.name)
		}
	}

	switch len(coinDirs) {
	case 0:
	case 1:
		lines = append(lines, fmt.Sprintf("There is a coin to the %s!", coinDirs[0]))
	default:
		lines = append(lines, fmt.Sprintf("There are coins to the %s!", strings.Join(coinDirs, " and ")))
	}

	if hint, ok := nearestCoinHint(snap, unit.Position); ok {
		lines = append(lines, hint)
	}
	return strings.Join(lines, "\n")
}

// nearestCoinHint describes the closest coin more than one step away.
func nearestCoinHint(snap *game.State, from game.Position) (string, bool) {
	type candidate struct {
		pos  game.Position
		dist int
	}
	var cands []candidate
	for p := range snap.Coins {
		dist := abs(p.X-from.X) + abs(p.Y-from.Y)
		if dist > 1 {
			cands = append(cands, candidate{pos: p, dist: dist})
		}
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		if cands[i].pos.Y != cands[j].pos.Y {
			return cands[i].pos.Y < cands[j].pos.Y
		}
		return cands[i].pos.X < cands[j].pos.X
	})
	nearest := cands[0]

	var parts []string
	if nearest.pos.Y > from.Y {
		parts = append(parts, "north")
	} else if nearest.pos.Y < from.Y {
		parts = append(parts, "south")
	}
	if nearest.pos.X < from.X {
		parts = append(parts, "west")
	} else if nearest.pos.X > from.X {
		parts = append(parts, "east")
	}
	where := strings.Join(parts, "-")
	if where == "" {
		where = "unknown direction"
	}
	return fmt.Sprintf("The nearest coin is %d steps away to the %s.", nearest.dist, where), true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
