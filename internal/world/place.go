package world

import "github.com/duskward/narrator/pkg/types"

// TileGrid describes a place's bounded tile-grid area.
type TileGrid struct {
	Width       int
	Height      int
	DefaultEntry types.TilePosition
}

// InBounds reports whether t falls within the grid.
func (g TileGrid) InBounds(t types.TilePosition) bool {
	return t.X >= 0 && t.X < g.Width && t.Y >= 0 && t.Y < g.Height
}

// Occupant records an NPC, actor, or item present on a place's tile grid.
type Occupant struct {
	Ref      string
	Tile     types.TilePosition
	Stacking bool // true if this place explicitly allows stacking at Tile
}

// Feature is a static obstacle or point of interest on the tile grid.
type Feature struct {
	ID   string
	Tile types.TilePosition
	// Obstacle reports whether this feature blocks movement (BFS treats it
	// as a wall), per §4.11.
	Obstacle bool
}

// Connection is a directed edge from a place to another place.
type Connection struct {
	Direction  string
	ToPlaceID  string
	TravelTime int
	Key        string
	Hidden     bool
}

// Environment describes ambient conditions affecting perception and combat.
type Environment struct {
	Lighting         string
	Terrain          string
	CoverAvailable   bool
	TemperatureOffset int
}

// Place is a bounded tile-grid sub-area of a region — the scope of local
// interactions (§3's Place record).
type Place struct {
	ID   string
	Name string

	Grid TileGrid

	NPCs    []Occupant
	Actors  []Occupant
	Items   []Occupant
	Features []Feature

	Connections []Connection
	Environment Environment
}

// IsOccupied reports whether tile is occupied by anything other than
// excludeRef, unless stacking is explicitly allowed there.
func (p Place) IsOccupied(tile types.TilePosition, excludeRef string) bool {
	check := func(occs []Occupant) bool {
		for _, o := range occs {
			if o.Ref == excludeRef {
				continue
			}
			if o.Tile == tile && !o.Stacking {
				return true
			}
		}
		return false
	}
	return check(p.NPCs) || check(p.Actors) || check(p.Items)
}

// IsWalkable reports whether tile is in-bounds, not an obstacle feature, and
// not occupied (excluding excludeRef) — the wall predicate BFS uses in §4.11.
func (p Place) IsWalkable(tile types.TilePosition, excludeRef string) bool {
	if !p.Grid.InBounds(tile) {
		return false
	}
	for _, f := range p.Features {
		if f.Obstacle && f.Tile == tile {
			return false
		}
	}
	return !p.IsOccupied(tile, excludeRef)
}
