package place

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/types"
)

// Target is one entity returned by [GetAvailableTargets], annotated with
// everything a caller needs to present or select it.
type Target struct {
	Ref      string
	Name     string
	Type     world.EntityKind
	Location types.Location
	Distance float64
}

// Stores are the entity stores [GetAvailableTargets] loads candidates from.
type Stores struct {
	NPCs   *world.Store
	Actors *world.Store
}

// GetAvailableTargets queries idx for every NPC/actor indexed at
// location.PlaceID, loads each from stores, filters by Euclidean tile
// distance within radius, and returns them annotated with distance — §4.13.
func GetAvailableTargets(ctx context.Context, idx *Index, stores Stores, location types.Location, radius float64) ([]Target, error) {
	var out []Target

	for _, ref := range idx.NPCsIn(location.PlaceID) {
		t, ok, err := loadTarget(ctx, stores.NPCs, ref, world.KindNPC, location, radius)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	for _, ref := range idx.ActorsIn(location.PlaceID) {
		t, ok, err := loadTarget(ctx, stores.Actors, ref, world.KindActor, location, radius)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func loadTarget(ctx context.Context, store *world.Store, ref string, kind world.EntityKind, origin types.Location, radius float64) (Target, bool, error) {
	e, err := store.Get(ctx, ref)
	if err != nil {
		if err == world.ErrNotFound {
			return Target{}, false, nil
		}
		return Target{}, false, fmt.Errorf("place: load %s %q: %w", kind, ref, err)
	}
	dist := tileDistance(origin.Tile, e.Location.Tile)
	if dist > radius {
		return Target{}, false, nil
	}
	return Target{Ref: ref, Name: e.Name, Type: kind, Location: e.Location, Distance: dist}, true, nil
}

func tileDistance(a, b types.TilePosition) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// FindByName disambiguates targets by name, using an exact case-insensitive
// match first and falling back to the best Jaro-Winkler score above
// threshold — the same fuzzy-matching strategy C5's target resolver uses
// for @mentions.
func FindByName(targets []Target, query string, threshold float64) (Target, bool) {
	lower := strings.ToLower(query)

	for _, t := range targets {
		if strings.ToLower(t.Name) == lower {
			return t, true
		}
	}

	var best Target
	bestScore := 0.0
	found := false
	for _, t := range targets {
		score := matchr.JaroWinkler(lower, strings.ToLower(t.Name), true)
		if score > bestScore {
			bestScore = score
			best = t
			found = true
		}
	}
	if found && bestScore >= threshold {
		return best, true
	}
	return Target{}, false
}
