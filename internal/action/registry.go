// Package action implements the action pipeline: target resolution, type/
// range/tool/cost/rules validation, effect emission, and perception, as a
// pure orchestrator over injected dependencies.
package action

// Perceptibility describes how far an action's effects can be observed, and
// whether that observation can be blocked by cover/line-of-sight.
type Perceptibility struct {
	Radius           float64
	VisualObscurable bool
}

// VerbDef is a registry entry describing one action verb's static shape:
// legal target types, range, cost, and the effect template it emits.
type VerbDef struct {
	Verb           string
	TargetTypes    []string // "any" matches every target type
	TargetRange    float64
	RequiresTool   bool
	RequiresAwareness bool
	CostClass      string
	Hostile        bool
	Perceptibility Perceptibility
	EffectTemplate string // a text/template-style string over resolved bindings
}

// AcceptsTargetType reports whether t is a legal target for this verb.
func (v VerbDef) AcceptsTargetType(t string) bool {
	for _, want := range v.TargetTypes {
		if want == "any" || want == t {
			return true
		}
	}
	return false
}

// Registry is the static table of known verbs.
type Registry struct {
	verbs map[string]VerbDef
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{verbs: make(map[string]VerbDef)}
}

// Register adds or replaces a verb definition.
func (r *Registry) Register(v VerbDef) {
	r.verbs[v.Verb] = v
}

// Get looks up a verb by name.
func (r *Registry) Get(verb string) (VerbDef, bool) {
	v, ok := r.verbs[verb]
	return v, ok
}

// DefaultVerbs returns the built-in verb table: COMMUNICATE, DEFEND, ATTACK,
// HELP, MOVE, INSPECT, USE — the verbs spec.md's renderer prompt variants and
// default-targeting rules name directly.
func DefaultVerbs() []VerbDef {
	return []VerbDef{
		{
			Verb:           "COMMUNICATE",
			TargetTypes:    []string{"any"},
			TargetRange:    60,
			CostClass:      "free",
			Perceptibility: Perceptibility{Radius: 30, VisualObscurable: false},
			EffectTemplate: "SYSTEM.SET_AWARENESS(target={{.Target}}, of={{.Actor}})",
		},
		{
			Verb:           "DEFEND",
			TargetTypes:    []string{"self"},
			TargetRange:    0,
			CostClass:      "minor",
			Perceptibility: Perceptibility{Radius: 30, VisualObscurable: true},
			EffectTemplate: "SYSTEM.APPLY_TAG(target={{.Target}}, name=\"defending\", stacks=1)",
		},
		{
			Verb:           "ATTACK",
			TargetTypes:    []string{"npc", "actor"},
			TargetRange:    2,
			RequiresTool:   true,
			RequiresAwareness: true,
			Hostile:        true,
			CostClass:      "major",
			Perceptibility: Perceptibility{Radius: 60, VisualObscurable: true},
			EffectTemplate: "SYSTEM.APPLY_DAMAGE(target={{.Target}}, amount={{.Damage}}, tool={{.Tool}})",
		},
		{
			Verb:           "HELP",
			TargetTypes:    []string{"npc", "actor"},
			TargetRange:    2,
			CostClass:      "minor",
			Perceptibility: Perceptibility{Radius: 30, VisualObscurable: true},
			EffectTemplate: "SYSTEM.APPLY_HEAL(target={{.Target}}, amount={{.Heal}})",
		},
		{
			Verb:           "MOVE",
			TargetTypes:    []string{"tile", "world_tile", "region_tile"},
			TargetRange:    0,
			CostClass:      "minor",
			Perceptibility: Perceptibility{Radius: 30, VisualObscurable: false},
			EffectTemplate: "SYSTEM.MOVE_ENTITY(target={{.Actor}}, x={{.X}}, y={{.Y}})",
		},
		{
			Verb:           "INSPECT",
			TargetTypes:    []string{"any"},
			TargetRange:    60,
			CostClass:      "free",
			Perceptibility: Perceptibility{Radius: 10, VisualObscurable: true},
			EffectTemplate: "",
		},
		{
			Verb:           "USE",
			TargetTypes:    []string{"item", "any"},
			TargetRange:    1,
			RequiresTool:   false,
			CostClass:      "minor",
			Perceptibility: Perceptibility{Radius: 30, VisualObscurable: true},
			EffectTemplate: "SYSTEM.ADJUST_RESOURCE(target={{.Actor}}, name={{.Resource}}, delta={{.Delta}})",
		},
	}
}
