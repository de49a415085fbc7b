package game

import "strings"

// RenderMap draws the state as text: a column-number header, then rows
// from the highest y down to 0, with units shown by name, coins as 'c'
// and terrain by its glyph. The model policy embeds this in its prompt
// and the simulate command prints it.
func (s *State) RenderMap() string {
	var b strings.Builder

	b.WriteString("  ")
	for x := 0; x < s.Grid.Width; x++ {
		b.WriteByte(byte('0' + x%10))
	}
	b.WriteByte('\n')

	byPos := make(map[Position]string, len(s.Units))
	for name, u := range s.Units {
		byPos[u.Position] = name
	}

	for y := s.Grid.Height - 1; y >= 0; y-- {
		b.WriteByte(byte('0' + y%10))
		b.WriteByte(' ')
		for x := 0; x < s.Grid.Width; x++ {
			p := Position{X: x, Y: y}
			switch {
			case byPos[p] != "":
				b.WriteString(byPos[p])
			case s.Coins[p]:
				b.WriteByte('c')
			default:
				b.WriteByte(s.Grid.TerrainAt(p).Glyph())
			}
		}
		if y > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
