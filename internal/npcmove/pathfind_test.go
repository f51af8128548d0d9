package npcmove_test

import (
	"testing"

	"github.com/duskward/narrator/internal/npcmove"
	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/types"
)

func openPlace(w, h int) world.Place {
	return world.Place{Grid: world.TileGrid{Width: w, Height: h}}
}

func TestBFS_StraightLine(t *testing.T) {
	place := openPlace(10, 10)
	path, err := npcmove.BFS(place, types.TilePosition{X: 0, Y: 0}, types.TilePosition{X: 3, Y: 0}, "npc.mover")
	if err != nil {
		t.Fatalf("BFS: %v", err)
	}
	if len(path) != 4 {
		t.Fatalf("path length = %d, want 4: %v", len(path), path)
	}
	if path[0] != (types.TilePosition{X: 0, Y: 0}) || path[len(path)-1] != (types.TilePosition{X: 3, Y: 0}) {
		t.Fatalf("path endpoints wrong: %v", path)
	}
	for _, tile := range path[1 : len(path)-1] {
		if !place.IsWalkable(tile, "npc.mover") {
			t.Fatalf("interior tile %v not walkable", tile)
		}
	}
}

func TestBFS_SameStartAndGoal(t *testing.T) {
	path, err := npcmove.BFS(openPlace(5, 5), types.TilePosition{X: 1, Y: 1}, types.TilePosition{X: 1, Y: 1}, "npc.mover")
	if err != nil || len(path) != 1 {
		t.Fatalf("path = %v, err = %v", path, err)
	}
}

func TestBFS_AroundObstacle(t *testing.T) {
	place := openPlace(5, 5)
	place.Features = []world.Feature{{ID: "wall", Tile: types.TilePosition{X: 1, Y: 0}, Obstacle: true}}
	path, err := npcmove.BFS(place, types.TilePosition{X: 0, Y: 0}, types.TilePosition{X: 2, Y: 0}, "npc.mover")
	if err != nil {
		t.Fatalf("BFS: %v", err)
	}
	for _, tile := range path {
		if tile == (types.TilePosition{X: 1, Y: 0}) {
			t.Fatalf("path routed through obstacle: %v", path)
		}
	}
}

func TestBFS_UnreachableGoal(t *testing.T) {
	place := openPlace(3, 1)
	place.Features = []world.Feature{{ID: "wall", Tile: types.TilePosition{X: 1, Y: 0}, Obstacle: true}}
	if _, err := npcmove.BFS(place, types.TilePosition{X: 0, Y: 0}, types.TilePosition{X: 2, Y: 0}, "npc.mover"); err != npcmove.ErrNoPath {
		t.Fatalf("err = %v, want ErrNoPath", err)
	}
}

func TestBFS_OccupiedTileExcludesMover(t *testing.T) {
	place := openPlace(3, 1)
	place.NPCs = []world.Occupant{{Ref: "npc.mover", Tile: types.TilePosition{X: 0, Y: 0}}}
	path, err := npcmove.BFS(place, types.TilePosition{X: 0, Y: 0}, types.TilePosition{X: 2, Y: 0}, "npc.mover")
	if err != nil {
		t.Fatalf("BFS: %v", err)
	}
	if len(path) != 3 {
		t.Fatalf("path = %v", path)
	}
}

func TestFindPathToNearby_GoalBlockedFallsBackToSpiral(t *testing.T) {
	place := openPlace(5, 5)
	place.Features = []world.Feature{{ID: "wall", Tile: types.TilePosition{X: 2, Y: 2}, Obstacle: true}}
	path, err := npcmove.FindPathToNearby(place, types.TilePosition{X: 0, Y: 0}, types.TilePosition{X: 2, Y: 2}, 3, "npc.mover")
	if err != nil {
		t.Fatalf("FindPathToNearby: %v", err)
	}
	last := path[len(path)-1]
	if last == (types.TilePosition{X: 2, Y: 2}) {
		t.Fatalf("path ended on the blocked goal tile")
	}
	if !place.IsWalkable(last, "npc.mover") {
		t.Fatalf("fallback destination %v not walkable", last)
	}
}

func TestFindPathToNearby_SameTileGoalInWalledCell(t *testing.T) {
	place := openPlace(3, 3)
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			if x == 1 && y == 1 {
				continue
			}
			place.Features = append(place.Features, world.Feature{ID: "wall", Tile: types.TilePosition{X: x, Y: y}, Obstacle: true})
		}
	}
	if _, err := npcmove.FindPathToNearby(place, types.TilePosition{X: 1, Y: 1}, types.TilePosition{X: 1, Y: 1}, 0, "npc.mover"); err != nil {
		t.Fatalf("same-tile goal should succeed trivially: %v", err)
	}
}
