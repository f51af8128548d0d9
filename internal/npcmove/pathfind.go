// Package npcmove implements the free-movement NPC controller: a fixed-rate
// scheduler that reassesses NPC goals, paths them across a place's tile
// grid via BFS, and emits movement commands for the external renderer to
// execute.
package npcmove

import (
	"errors"

	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/types"
)

// ErrNoPath is returned when no walkable route exists between two tiles.
var ErrNoPath = errors.New("npcmove: no path found")

// pathNode is a BFS frontier entry carrying a back-pointer for
// reconstruction.
type pathNode struct {
	pos  types.TilePosition
	prev *pathNode
}

// cardinalSteps are the four axis-aligned moves BFS expands in, in a fixed
// order so path output is deterministic for equal-cost candidates.
var cardinalSteps = []types.TilePosition{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// BFS finds the shortest walkable path from `from` to `goal` on place's tile
// grid, treating occupied tiles (excluding excludeRef), obstacle features,
// and out-of-bounds tiles as walls. The returned path includes both
// endpoints; from==goal returns a single-element path.
func BFS(place world.Place, from, goal types.TilePosition, excludeRef string) ([]types.TilePosition, error) {
	if from == goal {
		return []types.TilePosition{from}, nil
	}
	if !place.IsWalkable(goal, excludeRef) {
		return nil, ErrNoPath
	}

	visited := map[types.TilePosition]bool{from: true}
	queue := []*pathNode{{pos: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, step := range cardinalSteps {
			next := cur.pos.Add(step.X, step.Y)
			if visited[next] {
				continue
			}
			if next != goal && !place.IsWalkable(next, excludeRef) {
				continue
			}
			n := &pathNode{pos: next, prev: cur}
			if next == goal {
				return reconstruct(n), nil
			}
			visited[next] = true
			queue = append(queue, n)
		}
	}
	return nil, ErrNoPath
}

// reconstruct walks n's back-pointers to build the path from start to n.pos.
func reconstruct(n *pathNode) []types.TilePosition {
	var rev []types.TilePosition
	for cur := n; cur != nil; cur = cur.prev {
		rev = append(rev, cur.pos)
	}
	out := make([]types.TilePosition, len(rev))
	for i, p := range rev {
		out[len(rev)-1-i] = p
	}
	return out
}

// spiralOffsets generates (dx, dy) offsets in expanding square rings, used
// by FindPathToNearby to search outward from a blocked goal.
func spiralOffsets(maxDistance int) []types.TilePosition {
	var offsets []types.TilePosition
	for d := 1; d <= maxDistance; d++ {
		for x := -d; x <= d; x++ {
			for y := -d; y <= d; y++ {
				if abs(x) != d && abs(y) != d {
					continue // interior of the ring already covered at a smaller d
				}
				offsets = append(offsets, types.TilePosition{X: x, Y: y})
			}
		}
	}
	return offsets
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// FindPathToNearby paths toward goal, or — if goal is blocked — searches an
// expanding spiral of at most maxDistance tiles around it for the nearest
// walkable substitute and paths there instead.
func FindPathToNearby(place world.Place, from, goal types.TilePosition, maxDistance int, excludeRef string) ([]types.TilePosition, error) {
	if place.IsWalkable(goal, excludeRef) {
		return BFS(place, from, goal, excludeRef)
	}
	for _, off := range spiralOffsets(maxDistance) {
		candidate := goal.Add(off.X, off.Y)
		if !place.IsWalkable(candidate, excludeRef) {
			continue
		}
		if path, err := BFS(place, from, candidate, excludeRef); err == nil {
			return path, nil
		}
	}
	return nil, ErrNoPath
}
