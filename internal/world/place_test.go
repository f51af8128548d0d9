package world_test

import (
	"path/filepath"
	"testing"

	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/types"
)

func TestPlace_IsWalkable(t *testing.T) {
	p := world.Place{
		ID:   "tavern",
		Grid: world.TileGrid{Width: 3, Height: 3},
		Features: []world.Feature{
			{ID: "bar", Tile: types.TilePosition{X: 1, Y: 1}, Obstacle: true},
		},
		NPCs: []world.Occupant{
			{Ref: "npc_1", Tile: types.TilePosition{X: 2, Y: 0}},
		},
	}

	cases := []struct {
		name string
		tile types.TilePosition
		want bool
	}{
		{"open tile", types.TilePosition{X: 0, Y: 0}, true},
		{"obstacle", types.TilePosition{X: 1, Y: 1}, false},
		{"occupied", types.TilePosition{X: 2, Y: 0}, false},
		{"out of bounds", types.TilePosition{X: 3, Y: 3}, false},
		{"negative", types.TilePosition{X: -1, Y: 0}, false},
	}
	for _, c := range cases {
		if got := p.IsWalkable(c.tile, ""); got != c.want {
			t.Errorf("%s: IsWalkable = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestPlace_IsWalkable_ExcludeRef(t *testing.T) {
	p := world.Place{
		Grid: world.TileGrid{Width: 2, Height: 2},
		Actors: []world.Occupant{
			{Ref: "actor_1", Tile: types.TilePosition{X: 0, Y: 0}},
		},
	}
	if p.IsWalkable(types.TilePosition{X: 0, Y: 0}, "actor_1") != true {
		t.Fatalf("tile occupied only by excludeRef should be walkable")
	}
	if p.IsWalkable(types.TilePosition{X: 0, Y: 0}, "someone_else") != false {
		t.Fatalf("tile occupied by another ref should not be walkable")
	}
}

func TestPlace_IsWalkable_Stacking(t *testing.T) {
	p := world.Place{
		Grid: world.TileGrid{Width: 2, Height: 2},
		Items: []world.Occupant{
			{Ref: "item_1", Tile: types.TilePosition{X: 1, Y: 1}, Stacking: true},
		},
	}
	if !p.IsWalkable(types.TilePosition{X: 1, Y: 1}, "") {
		t.Fatalf("stacking occupant should not block movement")
	}
}

func TestPlaceStore_SaveAndGet(t *testing.T) {
	dir := t.TempDir()
	ps := world.NewPlaceStore(filepath.Join(dir, "places"))

	p := world.Place{ID: "square", Name: "Town Square", Grid: world.TileGrid{Width: 5, Height: 5}}
	if err := ps.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := ps.Get("square")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Town Square" {
		t.Fatalf("Name = %q, want Town Square", got.Name)
	}
}

func TestPlaceStore_GetMissing(t *testing.T) {
	dir := t.TempDir()
	ps := world.NewPlaceStore(dir)
	if _, err := ps.Get("nowhere"); err != world.ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
