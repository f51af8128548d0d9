package action

import (
	"errors"
	"fmt"

	"github.com/duskward/narrator/internal/tags"
	"github.com/duskward/narrator/internal/world"
)

// ErrTypeMismatch, ErrOutOfRange, ErrNotAware, ErrNoTool, ErrCannotAfford,
// and ErrRulesViolation name the step that rejected an intent, surfaced as
// Result.FailureReason.
var (
	ErrTypeMismatch  = errors.New("target type not valid for this verb")
	ErrOutOfRange    = errors.New("target out of range")
	ErrNotAware      = errors.New("actor is not aware of target")
	ErrNoTool        = errors.New("no equipped tool supports this action")
	ErrCannotAfford  = errors.New("actor cannot afford this action's cost")
	ErrRulesViolation = errors.New("action violates a rules constraint")
)

// ValidateType implements step 2.
func ValidateType(v VerbDef, targetType string) error {
	if !v.AcceptsTargetType(targetType) {
		return ErrTypeMismatch
	}
	return nil
}

// ValidateAwareness implements step 3.
func ValidateAwareness(v VerbDef, aware bool) error {
	if v.RequiresAwareness && !aware {
		return ErrNotAware
	}
	return nil
}

// ValidateRange implements step 4. effectiveRange, when > 0, is a tool's
// overridden range (e.g. from tag capability); 0 means "use the verb's own
// TargetRange".
func ValidateRange(v VerbDef, distance, effectiveRange float64) error {
	limit := v.TargetRange
	if effectiveRange > 0 {
		limit = effectiveRange
	}
	if distance > limit {
		return ErrOutOfRange
	}
	return nil
}

// ToolChoice is the resolved tool for step 5, along with the capability it
// was selected for.
type ToolChoice struct {
	Item       world.Entity
	Capability tags.Capability
}

// ValidateTool implements step 5: scan equipped items (already ordered hand
// slots, then body slots, then implicit-hand by the caller) for the first
// whose tag capability covers actionType ("<VERB>.<SUBTYPE>" or "<VERB>").
func ValidateTool(equipped []world.Entity, actionType, verb string, reg *tags.Registry, actorSTR int) (ToolChoice, error) {
	for _, item := range equipped {
		if c, err := tags.GetActionCapability(item, actionType, reg); err == nil {
			return ToolChoice{Item: item, Capability: c}, nil
		}
		if actionType != verb {
			if c, err := tags.GetActionCapability(item, verb, reg); err == nil {
				return ToolChoice{Item: item, Capability: c}, nil
			}
		}
	}
	return ToolChoice{}, ErrNoTool
}

// ValidateThrowWeight checks the weight-MAG-vs-STR constraint: throwing
// requires weight MAG ≤ STR/3 + the assisting tool's bonus (0 if none).
func ValidateThrowWeight(item world.Entity, actorSTR int, toolBonus int) error {
	limit := actorSTR/3 + toolBonus
	if item.WeightMAG() > limit {
		return fmt.Errorf("action: %w: weight MAG %d exceeds STR-derived limit %d", ErrNoTool, item.WeightMAG(), limit)
	}
	return nil
}

// ValidateCost implements step 6.
func ValidateCost(canAfford bool) error {
	if !canAfford {
		return ErrCannotAfford
	}
	return nil
}

// ValidateRules implements step 7: rulesCheck returns a non-nil error when
// the verb-specific legality constraint is violated (e.g. grappled actor
// attempting ATTACK without a tool that permits it).
func ValidateRules(rulesCheck func() error) error {
	if rulesCheck == nil {
		return nil
	}
	if err := rulesCheck(); err != nil {
		return fmt.Errorf("action: %w: %v", ErrRulesViolation, err)
	}
	return nil
}
