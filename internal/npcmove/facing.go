package npcmove

import "github.com/duskward/narrator/pkg/types"

// Facing is one of the eight compass directions an NPC can face.
type Facing string

// Recognised [Facing] values.
const (
	FacingNorth     Facing = "N"
	FacingNortheast Facing = "NE"
	FacingEast      Facing = "E"
	FacingSoutheast Facing = "SE"
	FacingSouth     Facing = "S"
	FacingSouthwest Facing = "SW"
	FacingWest      Facing = "W"
	FacingNorthwest Facing = "NW"
)

// FacingFromDelta maps a tile displacement to the nearest of the eight
// compass directions. North is -Y; east is +X, matching the grid's
// convention in [github.com/duskward/narrator/pkg/types.TilePosition].
func FacingFromDelta(dx, dy int) (Facing, bool) {
	switch {
	case dx == 0 && dy == 0:
		return "", false
	case dx == 0 && dy < 0:
		return FacingNorth, true
	case dx > 0 && dy < 0:
		return FacingNortheast, true
	case dx > 0 && dy == 0:
		return FacingEast, true
	case dx > 0 && dy > 0:
		return FacingSoutheast, true
	case dx == 0 && dy > 0:
		return FacingSouth, true
	case dx < 0 && dy > 0:
		return FacingSouthwest, true
	case dx < 0 && dy == 0:
		return FacingWest, true
	default: // dx < 0 && dy < 0
		return FacingNorthwest, true
	}
}

// movementHistoryCap bounds the rolling history used to resolve diagonal
// facing from a zigzag of cardinal moves.
const movementHistoryCap = 4

// MovementHistory is a small ring buffer of recent tile positions, used to
// infer a diagonal facing from two alternating cardinal steps (e.g.
// east,north,east,north reads as facing northeast).
type MovementHistory struct {
	positions []types.TilePosition
}

// Record appends pos to the history, evicting the oldest entry once the
// buffer exceeds its cap.
func (h *MovementHistory) Record(pos types.TilePosition) {
	h.positions = append(h.positions, pos)
	if len(h.positions) > movementHistoryCap {
		h.positions = h.positions[len(h.positions)-movementHistoryCap:]
	}
}

// ResolvedFacing derives a facing from the most recent step when it is
// unambiguous, or from the net displacement across the whole buffer when the
// last step alone is purely cardinal but alternates axis with the prior
// step (the zigzag case).
func (h *MovementHistory) ResolvedFacing() (Facing, bool) {
	n := len(h.positions)
	if n < 2 {
		return "", false
	}

	last := h.positions[n-1]
	prev := h.positions[n-2]
	dx, dy := last.X-prev.X, last.Y-prev.Y

	if dx != 0 && dy != 0 {
		return FacingFromDelta(dx, dy)
	}
	if n < 3 {
		return FacingFromDelta(dx, dy)
	}

	beforePrev := h.positions[n-3]
	pdx, pdy := prev.X-beforePrev.X, prev.Y-beforePrev.Y

	// Two alternating cardinal steps along different axes zigzag toward a
	// diagonal; resolve using their combined displacement.
	if (dx != 0 && pdy != 0 && pdx == 0) || (dy != 0 && pdx != 0 && pdy == 0) {
		return FacingFromDelta(dx+pdx, dy+pdy)
	}
	return FacingFromDelta(dx, dy)
}
