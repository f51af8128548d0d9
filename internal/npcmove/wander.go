package npcmove

import (
	"math/rand"
	"time"

	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/types"
)

// WanderGoals is the default [Deps.NextGoal] policy: it points an idle NPC
// at a random walkable, unoccupied tile within its current place and lets
// the goal expire after TTL so the NPC picks a fresh direction periodically.
// Callers that want patrol routes, social approach, or flee behavior supply
// their own NextGoal instead.
type WanderGoals struct {
	LoadPlace func(placeID string) (world.Place, error)
	TTL       time.Duration
	Rand      *rand.Rand // nil uses the package-level source
}

// Next implements the NextGoal shape. It returns ok=false if the place
// cannot be loaded or has no walkable tile other than the NPC's own.
func (g WanderGoals) Next(npc NPCState) (Goal, bool) {
	place, err := g.LoadPlace(npc.PlaceID)
	if err != nil {
		return Goal{}, false
	}

	const attempts = 20
	for i := 0; i < attempts; i++ {
		tile := types.TilePosition{
			X: g.intn(place.Grid.Width),
			Y: g.intn(place.Grid.Height),
		}
		if tile == npc.Position {
			continue
		}
		if !place.IsWalkable(tile, npc.Ref) {
			continue
		}
		ttl := g.TTL
		if ttl <= 0 {
			ttl = DefaultMaxReassessInterval
		}
		return Goal{Destination: tile, ExpiresAt: time.Now().Add(ttl)}, true
	}
	return Goal{}, false
}

func (g WanderGoals) intn(n int) int {
	if n <= 0 {
		return 0
	}
	if g.Rand != nil {
		return g.Rand.Intn(n)
	}
	return rand.Intn(n)
}
