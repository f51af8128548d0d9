package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/duskward/narrator/internal/effects"
	"github.com/duskward/narrator/internal/tags"
	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/types"
)

// Deps bundles every I/O dependency the pipeline needs, all injected so the
// pipeline itself stays a pure, synchronous orchestrator (§4.5's closing
// note: "all I/O goes through injected dependencies").
type Deps struct {
	GetActorData         func(ctx context.Context, ref string) (world.Entity, error)
	GetAvailableTargets  func(ctx context.Context, actor world.Entity) ([]Candidate, error)
	CheckActorAwareness  func(ctx context.Context, actor world.Entity, targetRef string) (bool, error)
	GetEquippedItems     func(ctx context.Context, actor world.Entity) ([]world.Entity, error)
	CanAfford            func(ctx context.Context, actor world.Entity, costClass string) (bool, error)
	RulesCheck           func(ctx context.Context, verb string, actor world.Entity, targetRef string) error
	HasLineOfSight       func(a, b types.Location) bool
	GetObservers         func(ctx context.Context, actor world.Entity) ([]Observer, error)
	ExecuteEffects       func(ctx context.Context, effectsText string) (effects.Outcome, error)
}

// Pipeline runs intents through the action pipeline's ten steps.
type Pipeline struct {
	verbs *Registry
	tags  *tags.Registry
	deps  Deps
}

// New returns a [Pipeline] wired to verb/tag registries and dependencies.
func New(verbs *Registry, tagReg *tags.Registry, deps Deps) *Pipeline {
	return &Pipeline{verbs: verbs, tags: tagReg, deps: deps}
}

// Run executes intent through the pipeline. Any failed step short-circuits
// and returns a Result with Success=false and a FailureReason.
func (p *Pipeline) Run(ctx context.Context, intent Intent) Result {
	verb, ok := p.verbs.Get(intent.Verb)
	if !ok {
		return fail("unknown verb %q", intent.Verb)
	}

	actor, err := p.deps.GetActorData(ctx, intent.ActorRef)
	if err != nil {
		return fail("load actor: %v", err)
	}

	candidates, err := p.deps.GetAvailableTargets(ctx, actor)
	if err != nil {
		return fail("load targets: %v", err)
	}

	// Step 1: target resolution.
	targetRef, confidence, ok := ResolveTarget(intent, candidates, verb.TargetRange)
	if !ok {
		return fail("could not resolve a target for %s", intent.Verb)
	}
	target := findCandidate(candidates, targetRef)

	// Step 2: type validation.
	targetType := "any"
	if target != nil {
		targetType = target.Type
	}
	if err := ValidateType(verb, targetType); err != nil {
		return fail("%v", err)
	}

	// Step 3: awareness.
	if verb.RequiresAwareness {
		aware, err := p.deps.CheckActorAwareness(ctx, actor, targetRef)
		if err != nil {
			return fail("check awareness: %v", err)
		}
		if err := ValidateAwareness(verb, aware); err != nil {
			return fail("%v", err)
		}
	}

	// Step 4: range validation.
	var distance float64
	effectiveRange := 0.0
	var tool ToolChoice
	haveTool := false
	if target != nil {
		distance = Distance(intent.Origin, target.Location, verb.TargetRange)
	}

	// Step 5: tool validation (computed before range so a tool's effective
	// range can override the verb's base range).
	if verb.RequiresTool {
		equipped, err := p.deps.GetEquippedItems(ctx, actor)
		if err != nil {
			return fail("load equipped items: %v", err)
		}
		actorSTR := actor.Attributes["STR"]
		tool, err = ValidateTool(equipped, verb.Verb+"."+targetType, verb.Verb, p.tags, actorSTR)
		if err != nil {
			return fail("%v", err)
		}
		haveTool = true
		effectiveRange = float64(tool.Capability.EffectiveRange)
	}

	if err := ValidateRange(verb, distance, effectiveRange); err != nil {
		return fail("%v", err)
	}

	// Step 6: cost check.
	if verb.CostClass != "" && verb.CostClass != "free" {
		afford, err := p.deps.CanAfford(ctx, actor, verb.CostClass)
		if err != nil {
			return fail("check cost: %v", err)
		}
		if err := ValidateCost(afford); err != nil {
			return fail("%v", err)
		}
	}

	// Step 7: rules check.
	if p.deps.RulesCheck != nil {
		err := ValidateRules(func() error {
			return p.deps.RulesCheck(ctx, verb.Verb, actor, targetRef)
		})
		if err != nil {
			return fail("%v", err)
		}
	}

	// Step 8: effect emission.
	bindings := map[string]any{
		"Actor":  intent.ActorRef,
		"Target": targetRef,
	}
	if haveTool {
		bindings["Tool"] = tool.Item.ID
		bindings["Damage"] = tool.Capability.Damage
	}
	if verb.Verb == "MOVE" {
		loc := intent.TargetLocation
		var zero types.Location
		if loc == zero && target != nil {
			loc = target.Location
		}
		bindings["X"] = loc.Tile.X
		bindings["Y"] = loc.Tile.Y
	}
	for k, v := range intent.Parameters {
		bindings[k] = v
	}
	effectText := instantiateTemplate(verb.EffectTemplate, bindings)

	// Step 9: perception.
	var observerRefs []string
	if p.deps.GetObservers != nil {
		observers, err := p.deps.GetObservers(ctx, actor)
		if err == nil {
			observerRefs = ComputeObservers(intent.Origin, observers, verb.Perceptibility.Radius, verb.Perceptibility.VisualObscurable, p.deps.HasLineOfSight)
		}
	}

	result := Result{
		Success:    true,
		TargetRef:  targetRef,
		Confidence: confidence,
		Observers:  observerRefs,
	}
	if effectText != "" {
		result.Effects = []EffectRecord{{Type: verb.Verb, TargetRef: targetRef, Parameters: bindings, Applied: false}}
	}

	// Step 10: cost consumption & effect execution.
	if effectText != "" && p.deps.ExecuteEffects != nil {
		outcome, err := p.deps.ExecuteEffects(ctx, effectText)
		if err != nil {
			result.Success = false
			result.FailureReason = fmt.Sprintf("execute effects: %v", err)
			return result
		}
		if outcome.EffectsApplied > 0 {
			result.Effects[0].Applied = true
		}
	}

	return result
}

func fail(format string, args ...any) Result {
	return Result{Success: false, FailureReason: fmt.Sprintf(format, args...)}
}

// instantiateTemplate substitutes {{.Key}} placeholders with string-formatted
// binding values. The effect template grammar is a flat key→value
// substitution, not general text/template control flow.
func instantiateTemplate(tmpl string, bindings map[string]any) string {
	if tmpl == "" {
		return ""
	}
	out := tmpl
	for k, v := range bindings {
		placeholder := "{{." + k + "}}"
		out = strings.ReplaceAll(out, placeholder, fmt.Sprintf("%v", v))
	}
	return out
}
