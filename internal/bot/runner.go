package bot

import (
	"context"
	"log"
	"time"

	"gpt-generals/internal/game"
	"gpt-generals/internal/room"

	"golang.org/x/sync/errgroup"
)

// Runner drives the non-human units of one room. Each tick it takes a
// state snapshot, gathers decisions concurrently while the room lock is
// free, then submits the chosen moves through the room's normal
// validated move path. Rooms never share a runner.
type Runner struct {
	room    *room.Room
	random  *RandomPolicy
	model   Policy // nil when no model service is configured
	timeout time.Duration
	b       room.Broadcaster
}

func NewRunner(r *room.Room, model Policy, b room.Broadcaster, timeout time.Duration) *Runner {
	return &Runner{
		room:    r,
		random:  NewRandomPolicy(nil),
		model:   model,
		timeout: timeout,
		b:       b,
	}
}

// Run ticks until the context is cancelled or the room is torn down.
func (rn *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(rn.room.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rn.room.Done():
			return
		case <-ticker.C:
			rn.tick(ctx)
		}
	}
}

type decision struct {
	unit room.BotUnit
	dir  game.Direction
	ok   bool
}

func (rn *Runner) tick(ctx context.Context) {
	snap, units := rn.room.BotSnapshot()
	if snap == nil {
		return
	}

	decisions := make([]decision, len(units))
	g := new(errgroup.Group)
	for i, u := range units {
		g.Go(func() error {
			dir, ok := rn.decide(ctx, snap, u)
			decisions[i] = decision{unit: u, dir: dir, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range decisions {
		if !d.ok {
			continue
		}
		if _, _, err := rn.room.MoveAndBroadcast(d.unit.Name, d.dir, d.unit.PlayerID, rn.b); err != nil {
			// Another move this tick can invalidate a decision made on
			// the shared snapshot; skip rather than retry.
			log.Printf("room %s: bot move %s %s rejected: %v", rn.room.ID, d.unit.Name, d.dir, err)
		}
	}
}

// decide runs the unit's policy with the model call bounded by the
// decision timeout. Any model failure falls back to the random policy
// so a slow or broken service never stalls the room.
func (rn *Runner) decide(ctx context.Context, snap *game.State, u room.BotUnit) (game.Direction, bool) {
	if u.Policy == room.PolicyModel && rn.model != nil {
		dctx, cancel := context.WithTimeout(ctx, rn.timeout)
		dir, ok, err := rn.model.Decide(dctx, snap, u.Name)
		cancel()
		if err == nil {
			return dir, ok
		}
		log.Printf("room %s: model decision for unit %s failed, falling back to random: %v", rn.room.ID, u.Name, err)
	}
	dir, ok, err := rn.random.Decide(ctx, snap, u.Name)
	if err != nil {
		return "", false
	}
	return dir, ok
}
