package action

import "github.com/duskward/narrator/pkg/types"

// Observer is a candidate that might perceive an action's effects.
type Observer struct {
	Ref      string
	Location types.Location
}

// ComputeObservers implements step 9: every observer within radius of
// origin, same region, optionally filtered by line-of-sight when the action
// is visualObscurable. hasLineOfSight may be nil when the action has no
// cover to worry about.
func ComputeObservers(origin types.Location, observers []Observer, radius float64, visualObscurable bool, hasLineOfSight func(a, b types.Location) bool) []string {
	var out []string
	for _, o := range observers {
		if Distance(origin, o.Location, radius) > radius {
			continue
		}
		if visualObscurable && hasLineOfSight != nil && !hasLineOfSight(origin, o.Location) {
			continue
		}
		out = append(out, o.Ref)
	}
	return out
}
