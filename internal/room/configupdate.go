package room

import (
	"time"

	"gpt-generals/internal/game"
)

// ConfigUpdate is a partial game-config change from the host. Nil
// fields keep their current value.
type ConfigUpdate struct {
	Width            *int     `json:"width,omitempty"`
	Height           *int     `json:"height,omitempty"`
	WaterProbability *float64 `json:"water_probability,omitempty"`
	CoinCount        *int     `json:"num_coins,omitempty"`
	UnitsPerPlayer   *int     `json:"units_per_player,omitempty"`
	TickSeconds      *float64 `json:"tick_seconds,omitempty"`
}

// updateConfig merges upd into the room config, rejecting the merged
// result if invalid. Only allowed while waiting.
func (r *Room) updateConfig(upd ConfigUpdate) (game.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status != StatusWaiting {
		return game.Config{}, ErrNotWaiting
	}
	cfg := r.Config
	if upd.Width != nil {
		cfg.Width = *upd.Width
	}
	if upd.Height != nil {
		cfg.Height = *upd.Height
	}
	if upd.WaterProbability != nil {
		cfg.WaterProbability = *upd.WaterProbability
	}
	if upd.CoinCount != nil {
		cfg.CoinCount = *upd.CoinCount
	}
	if upd.UnitsPerPlayer != nil {
		cfg.UnitsPerPlayer = *upd.UnitsPerPlayer
	}
	if err := cfg.Validate(); err != nil {
		return game.Config{}, err
	}
	if upd.TickSeconds != nil && *upd.TickSeconds > 0 {
		r.Tick = time.Duration(*upd.TickSeconds * float64(time.Second))
	}
	r.Config = cfg
	return cfg, nil
}

// TickInterval returns the decision-loop cadence for this room.
func (r *Room) TickInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Tick
}

// updatePlayer renames or recolors a roster member, returning the
// updated view.
func (r *Room) updatePlayer(id, name, color string) (PlayerView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playerLocked(id)
	if !ok {
		return PlayerView{}, false
	}
	if name != "" {
		p.Name = name
	}
	if color != "" {
		p.Color = color
	}
	return playerView(p), true
}

// hasHumans reports whether any non-bot player remains.
func (r *Room) hasHumans() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Players {
		if !p.IsBot {
			return true
		}
	}
	return false
}

func (r *Room) botCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.Players {
		if p.IsBot {
			n++
		}
	}
	return n
}
