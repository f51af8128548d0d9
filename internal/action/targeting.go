package action

import (
	"math"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/duskward/narrator/pkg/types"
)

// Candidate is a possible action target, as surfaced by getAvailableTargets.
type Candidate struct {
	Ref      string
	Name     string
	Type     string // "npc", "actor", "item", "tile", "world_tile", "region_tile"
	Location types.Location
	Hostile  bool
}

// Confidence values attached to a resolved target for diagnostics, per
// §4.5 step 1.
const (
	ConfidenceUIExplicit = 1.0
	ConfidenceMention    = 0.95
	ConfidenceContext    = 0.9
	ConfidenceDefault    = 0.8
	ConfidenceAuto       = 0.7

	mentionMatchThreshold = 0.85
)

// ResolveTarget implements §4.5 step 1's priority order.
func ResolveTarget(intent Intent, candidates []Candidate, regionTileDistance float64) (ref string, confidence float64, ok bool) {
	switch intent.Source {
	case SourcePlayerInput:
		if intent.UITarget != "" {
			if findCandidate(candidates, intent.UITarget) != nil {
				return intent.UITarget, ConfidenceUIExplicit, true
			}
		}
		if intent.MentionText != "" {
			if c := matchByMention(candidates, intent.MentionText); c != nil {
				return c.Ref, ConfidenceMention, true
			}
		}

	case SourceAIDecision:
		if intent.ExistingTargetRef != "" {
			if findCandidate(candidates, intent.ExistingTargetRef) != nil {
				return intent.ExistingTargetRef, ConfidenceContext, true
			}
		}
		if c := closestHostileMatch(candidates, intent.Origin, regionTileDistance); c != nil {
			return c.Ref, ConfidenceContext, true
		}
	}

	if ref, ok := defaultTarget(intent, candidates); ok {
		return ref, ConfidenceDefault, true
	}

	return "", 0, false
}

func findCandidate(candidates []Candidate, ref string) *Candidate {
	for i := range candidates {
		if candidates[i].Ref == ref {
			return &candidates[i]
		}
	}
	return nil
}

// matchByMention matches mention text against candidate names/refs by
// case-insensitive equality, substring, or fuzzy (Jaro-Winkler) similarity.
func matchByMention(candidates []Candidate, mention string) *Candidate {
	lower := strings.ToLower(mention)

	for i := range candidates {
		if strings.EqualFold(candidates[i].Name, mention) || strings.EqualFold(candidates[i].Ref, mention) {
			return &candidates[i]
		}
	}
	for i := range candidates {
		if strings.Contains(strings.ToLower(candidates[i].Name), lower) ||
			strings.Contains(strings.ToLower(candidates[i].Ref), lower) {
			return &candidates[i]
		}
	}

	var best *Candidate
	bestScore := 0.0
	for i := range candidates {
		score := matchr.JaroWinkler(lower, strings.ToLower(candidates[i].Name), true)
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	if bestScore >= mentionMatchThreshold {
		return best
	}
	return nil
}

// closestHostileMatch picks the nearest candidate that satisfies a hostile
// verb's constraint (only hostile candidates considered) within range.
func closestHostileMatch(candidates []Candidate, origin types.Location, maxRange float64) *Candidate {
	var best *Candidate
	bestDist := math.Inf(1)
	for i := range candidates {
		if !candidates[i].Hostile {
			continue
		}
		d := Distance(origin, candidates[i].Location, maxRange)
		if d <= maxRange && d < bestDist {
			bestDist = d
			best = &candidates[i]
		}
	}
	return best
}

// defaultTarget implements the per-verb defaults: COMMUNICATE with no target
// resolves to the region tile; DEFEND with no target resolves to self;
// ATTACK/HELP fall back to the last target if still in range. Since "last
// target" and "self"/"region tile" are caller concepts, the caller supplies
// them as ordinary candidates named "self" / "region_tile" / "last_target".
func defaultTarget(intent Intent, candidates []Candidate) (string, bool) {
	var want string
	switch intent.Verb {
	case "COMMUNICATE":
		want = "region_tile"
	case "DEFEND":
		want = "self"
	case "ATTACK", "HELP":
		want = "last_target"
	default:
		return "", false
	}
	if c := findCandidate(candidates, want); c != nil {
		return c.Ref, true
	}
	return "", false
}

// Distance computes the range between two locations: a flat Euclidean
// distance when both share the same world/region tile, otherwise a scaled
// inter-region distance that adds the region-tile offset (weighted by
// maxRange, so crossing a region always costs at least one region-tile's
// worth of range) to the local tile distance.
func Distance(a, b types.Location, maxRange float64) float64 {
	sameRegion := a.WorldTile == b.WorldTile && a.RegionTile == b.RegionTile
	local := euclidean(a.Tile.X, a.Tile.Y, b.Tile.X, b.Tile.Y)
	if sameRegion {
		return local
	}
	regionOffset := euclidean(a.RegionTile.X, a.RegionTile.Y, b.RegionTile.X, b.RegionTile.Y)
	return regionOffset*maxRange + local
}

func euclidean(x1, y1, x2, y2 int) float64 {
	dx := float64(x1 - x2)
	dy := float64(y1 - y2)
	return math.Sqrt(dx*dx + dy*dy)
}
