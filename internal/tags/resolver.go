package tags

import (
	"errors"
	"fmt"

	"github.com/duskward/narrator/internal/world"
	"github.com/expr-lang/expr"
)

// ErrNoCapability is returned when an item has no tag enabling actionType.
var ErrNoCapability = errors.New("tags: item grants no capability for that action")

// ErrAmmoIncompatible is returned when a tool/ammo/action combination is
// invalid.
var ErrAmmoIncompatible = errors.New("tags: ammo incompatible with tool for that action")

// Capability is the resolved result of get_action_capability: the range
// category/base range the action uses, and its evaluated damage value.
type Capability struct {
	ActionType    string
	RangeCategory RangeCategory
	BaseRange     int
	MaxRange      int
	// EffectiveRange is BaseRange scaled by the granting tag's stacks (via
	// its ScalingPerStack["range"] and MaxStacks), clamped to MaxRange. This
	// is what range validation should check an action against, not the flat
	// category MaxRange.
	EffectiveRange int
	Damage         float64
	ResidualMAG    int
}

// ResidualMAG returns an item's "core function" MAG: total MAG minus the
// generation cost of every tag it carries, per §4.6's MAG budget.
func ResidualMAG(item world.Entity, reg *Registry) int {
	total := item.MAG()
	for _, t := range item.Tags {
		if rule, err := reg.Get(t.Name); err == nil {
			total -= rule.GenerationCost
		}
	}
	if total < 0 {
		total = 0
	}
	return total
}

// GetActionCapability resolves the capability an item grants for actionType,
// by scanning its tags for one whose registry rule enables that action. The
// first matching tag wins.
func GetActionCapability(item world.Entity, actionType string, reg *Registry) (Capability, error) {
	residual := ResidualMAG(item, reg)

	for _, t := range item.Tags {
		rule, err := reg.Get(t.Name)
		if err != nil {
			continue
		}
		action, ok := rule.ActionFor(actionType)
		if !ok {
			continue
		}
		dmg, err := evalFormula(action.DamageFormula, map[string]any{
			"stacks": t.Stacks,
			"value":  t.Value,
			"mag":    residual,
		})
		if err != nil {
			return Capability{}, fmt.Errorf("tags: evaluate damage formula for %q: %w", rule.Name, err)
		}
		maxRange := MaxRange(action.RangeCategory)
		effectiveRange := ScaledRange(action.BaseRange, t.Stacks, rule.MaxStacks, rule.ScalingPerStack["range"], maxRange)
		return Capability{
			ActionType:     actionType,
			RangeCategory:  action.RangeCategory,
			BaseRange:      action.BaseRange,
			MaxRange:       maxRange,
			EffectiveRange: effectiveRange,
			Damage:         dmg,
			ResidualMAG:    residual,
		}, nil
	}
	return Capability{}, ErrNoCapability
}

// GetEnabledActions lists every action type any tag on item enables.
func GetEnabledActions(item world.Entity, reg *Registry) []EnabledAction {
	var out []EnabledAction
	seen := make(map[string]bool)
	for _, t := range item.Tags {
		rule, err := reg.Get(t.Name)
		if err != nil {
			continue
		}
		for _, a := range rule.EnabledActions {
			if seen[a.ActionType] {
				continue
			}
			seen[a.ActionType] = true
			out = append(out, a)
		}
	}
	return out
}

// CheckAmmoCompatibility reports whether ammo is a legal load for tool when
// performing actionType.
func CheckAmmoCompatibility(tool, ammo world.Entity, actionType string, reg *Registry) error {
	if _, err := GetActionCapability(tool, actionType, reg); err != nil {
		return err
	}
	action, _ := findAction(tool, actionType, reg)
	if action.AmmoRequirement == "" {
		return nil
	}
	if !ammo.HasTag(action.AmmoRequirement) {
		return ErrAmmoIncompatible
	}
	return nil
}

// ValidateThrow checks whether an item can be thrown by an actor of the
// given STR score, optionally aided by a tool (e.g. a sling), and returns the
// STR-scaled effective range.
func ValidateThrow(str int, item world.Entity, tool *world.Entity, reg *Registry) (int, error) {
	thrower := item
	action, ok := findAction(thrower, "THROW", reg)
	if !ok {
		if tool == nil {
			return 0, ErrNoCapability
		}
		action, ok = findAction(*tool, "THROW", reg)
		if !ok {
			return 0, ErrNoCapability
		}
	}
	if action.RangeCategory != RangeThrown {
		return 0, fmt.Errorf("tags: %w: action is not a throw", ErrNoCapability)
	}
	return EffectiveThrownRange(action.BaseRange, str), nil
}

func findAction(item world.Entity, actionType string, reg *Registry) (EnabledAction, bool) {
	for _, t := range item.Tags {
		rule, err := reg.Get(t.Name)
		if err != nil {
			continue
		}
		if action, ok := rule.ActionFor(actionType); ok {
			return action, true
		}
	}
	return EnabledAction{}, false
}

func evalFormula(formula string, bindings map[string]any) (float64, error) {
	if formula == "" {
		return 0, nil
	}
	program, err := expr.Compile(formula, expr.Env(bindings), expr.AsFloat64())
	if err != nil {
		return 0, err
	}
	out, err := expr.Run(program, bindings)
	if err != nil {
		return 0, err
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("tags: formula %q did not evaluate to a number", formula)
	}
	return v, nil
}
