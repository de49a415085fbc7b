package bot

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"gpt-generals/internal/game"
)

// Policy produces a move for one unit from a state snapshot. ok=false
// means the policy abstains this tick. Implementations must respect ctx
// cancellation.
type Policy interface {
	Decide(ctx context.Context, snap *game.State, unitName string) (dir game.Direction, ok bool, err error)
}

// RandomPolicy picks uniformly among the directions that would pass
// move validation right now, abstaining when the unit is boxed in.
type RandomPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomPolicy(rng *rand.Rand) *RandomPolicy {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomPolicy{rng: rng}
}

func (p *RandomPolicy) Decide(_ context.Context, snap *game.State, unitName string) (game.Direction, bool, error) {
	moves := snap.ValidMoves(unitName)
	if len(moves) == 0 {
		return "", false, nil
	}
	p.mu.Lock()
	dir := moves[p.rng.Intn(len(moves))]
	p.mu.Unlock()
	return dir, true, nil
}
