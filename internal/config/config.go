package config

import (
	"os"
	"strconv"
	"time"

	"gpt-generals/internal/game"
)

// DefaultPlayerColors is the palette assigned to players in join order,
// wrapping around when exhausted.
var DefaultPlayerColors = []string{
	"#F44336", // Red
	"#2196F3", // Blue
	"#4CAF50", // Green
	"#FF9800", // Orange
	"#9C27B0", // Purple
	"#00BCD4", // Cyan
	"#FFEB3B", // Yellow
	"#795548", // Brown
}

// Model holds the settings for the external reasoning service used by
// model-driven units. An empty APIKey disables the model policy and bot
// units fall back to random movement.
type Model struct {
	BaseURL string
	APIKey  string
	Name    string
	Timeout time.Duration
}

type Config struct {
	HTTPAddr string

	// Game holds the default per-room game configuration; hosts may
	// override it per room while the room is waiting.
	Game game.Config

	// TickInterval is the default cadence of the per-room decision loop.
	TickInterval time.Duration

	Model Model
}

func getenvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func Load() *Config {
	return &Config{
		HTTPAddr: getenvStr("HTTP_ADDR", ":8765"),
		Game: game.Config{
			Width:            getenvInt("MAP_WIDTH", 10),
			Height:           getenvInt("MAP_HEIGHT", 10),
			WaterProbability: getenvFloat("WATER_PROBABILITY", 0.2),
			CoinCount:        getenvInt("NUM_COINS", 5),
			UnitsPerPlayer:   getenvInt("UNITS_PER_PLAYER", 1),
		},
		TickInterval: getenvDuration("TICK_INTERVAL", time.Second),
		Model: Model{
			BaseURL: getenvStr("MODEL_BASE_URL", "https://openrouter.ai/api/v1"),
			APIKey:  getenvStr("OPEN_ROUTER_KEY", ""),
			Name:    getenvStr("MODEL_NAME", "openai/gpt-4o-mini"),
			Timeout: getenvDuration("MODEL_TIMEOUT", 5*time.Second),
		},
	}
}
