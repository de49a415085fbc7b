// Command simulate runs a headless local game for a number of turns,
// moving every unit with the random policy and printing the map after
// each round. Useful for eyeballing map generation and movement rules
// without a server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"gpt-generals/internal/bot"
	"gpt-generals/internal/game"
)

func main() {
	var (
		turns  = flag.Int("turns", 10, "number of rounds to simulate")
		width  = flag.Int("width", 10, "map width")
		height = flag.Int("height", 10, "map height")
		water  = flag.Float64("water", 0.2, "water probability")
		coins  = flag.Int("coins", 5, "number of coins")
		seed   = flag.Int64("seed", 0, "random seed (0 uses current time)")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	state, err := game.NewState(game.Config{
		Width:            *width,
		Height:           *height,
		WaterProbability: *water,
		CoinCount:        *coins,
		UnitsPerPlayer:   1,
	}, []string{"p0", "p1"}, rng)
	if err != nil {
		log.Fatal(err)
	}

	names := make([]string, 0, len(state.Units))
	for name := range state.Units {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Initial map (seed %d):\n%s\n\n", *seed, state.RenderMap())

	policy := bot.NewRandomPolicy(rng)
	for round := 1; round <= *turns; round++ {
		fmt.Printf("--- Round %d ---\n", round)
		for _, name := range names {
			dir, ok, _ := policy.Decide(context.Background(), state, name)
			if !ok {
				fmt.Printf("Unit %s has no valid move\n", name)
				continue
			}
			collected, err := state.ApplyMove(name, dir, "")
			switch {
			case err != nil:
				fmt.Printf("Unit %s move %s rejected: %v\n", name, dir, err)
			case collected:
				fmt.Printf("Unit %s moved %s and collected a coin!\n", name, dir)
			default:
				fmt.Printf("Unit %s moved %s\n", name, dir)
			}
		}
		fmt.Printf("\n%s\n\n", state.RenderMap())
		if len(state.Coins) == 0 {
			fmt.Println("All coins collected.")
			break
		}
	}
	fmt.Printf("Finished at turn %d with %d coins remaining.\n", state.Turn, len(state.Coins))
}
