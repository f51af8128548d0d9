package action_test

import (
	"context"
	"strings"
	"testing"

	"github.com/duskward/narrator/internal/action"
	"github.com/duskward/narrator/internal/effects"
	"github.com/duskward/narrator/internal/tags"
	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/types"
)

func verbRegistry() *action.Registry {
	reg := action.NewRegistry()
	for _, v := range action.DefaultVerbs() {
		reg.Register(v)
	}
	return reg
}

func TestPipeline_CommunicateSucceeds(t *testing.T) {
	verbs := verbRegistry()
	tagReg := tags.NewRegistry()

	actor := world.Entity{ID: "actor.a1", Attributes: map[string]int{"STR": 10}}
	target := action.Candidate{Ref: "npc.n1", Name: "Goblin", Type: "npc"}

	deps := action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) {
			return actor, nil
		},
		GetAvailableTargets: func(ctx context.Context, a world.Entity) ([]action.Candidate, error) {
			return []action.Candidate{target}, nil
		},
		ExecuteEffects: func(ctx context.Context, text string) (effects.Outcome, error) {
			return effects.Outcome{EffectsApplied: 1}, nil
		},
	}
	p := action.New(verbs, tagReg, deps)

	result := p.Run(context.Background(), action.Intent{
		Source:   action.SourcePlayerInput,
		ActorRef: "actor.a1",
		Verb:     "COMMUNICATE",
		UITarget: "npc.n1",
	})
	if !result.Success {
		t.Fatalf("expected success, got failure: %s", result.FailureReason)
	}
	if result.TargetRef != "npc.n1" {
		t.Fatalf("TargetRef = %q", result.TargetRef)
	}
	if len(result.Effects) != 1 || !result.Effects[0].Applied {
		t.Fatalf("Effects = %+v", result.Effects)
	}
}

func TestPipeline_UnknownVerbFails(t *testing.T) {
	verbs := verbRegistry()
	tagReg := tags.NewRegistry()
	deps := action.Deps{}
	p := action.New(verbs, tagReg, deps)

	result := p.Run(context.Background(), action.Intent{Verb: "TELEPORT", ActorRef: "actor.a1"})
	if result.Success {
		t.Fatalf("expected failure for unknown verb")
	}
}

func TestPipeline_NoTargetFails(t *testing.T) {
	verbs := verbRegistry()
	tagReg := tags.NewRegistry()

	deps := action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) {
			return world.Entity{ID: "actor.a1"}, nil
		},
		GetAvailableTargets: func(ctx context.Context, a world.Entity) ([]action.Candidate, error) {
			return nil, nil
		},
	}
	p := action.New(verbs, tagReg, deps)

	result := p.Run(context.Background(), action.Intent{
		Source:   action.SourceAIDecision,
		ActorRef: "actor.a1",
		Verb:     "HELP",
	})
	if result.Success {
		t.Fatalf("expected failure when no target resolves")
	}
}

func TestPipeline_OutOfRangeFails(t *testing.T) {
	verbs := verbRegistry()
	tagReg := tags.NewRegistry()

	actor := world.Entity{ID: "actor.a1"}
	farTarget := action.Candidate{
		Ref: "npc.far", Name: "Far", Type: "npc", Hostile: true,
		Location: types.Location{Tile: types.TilePosition{X: 1000, Y: 0}},
	}

	deps := action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) { return actor, nil },
		GetAvailableTargets: func(ctx context.Context, a world.Entity) ([]action.Candidate, error) {
			return []action.Candidate{farTarget}, nil
		},
		CheckActorAwareness: func(ctx context.Context, a world.Entity, ref string) (bool, error) { return true, nil },
		GetEquippedItems: func(ctx context.Context, a world.Entity) ([]world.Entity, error) {
			return nil, nil
		},
	}
	p := action.New(verbs, tagReg, deps)

	result := p.Run(context.Background(), action.Intent{
		Source:            action.SourceAIDecision,
		ActorRef:          "actor.a1",
		Verb:              "ATTACK",
		ExistingTargetRef: "npc.far",
	})
	if result.Success {
		t.Fatalf("expected failure: requires tool and is out of range")
	}
}

func TestPipeline_AttackRequiresTool(t *testing.T) {
	verbs := verbRegistry()
	tagReg := tags.NewRegistry()
	tagReg.Register(tags.TagRule{
		Name: "sharp",
		EnabledActions: []tags.EnabledAction{
			{ActionType: "ATTACK", RangeCategory: tags.RangeMelee, BaseRange: 2, DamageFormula: "stacks * 3"},
		},
	})

	actor := world.Entity{ID: "actor.a1", Attributes: map[string]int{"STR": 12}}
	sword := world.Entity{ID: "item.sword", Tags: []world.TagInstance{{Name: "sharp", Stacks: 2}}}
	npc := action.Candidate{Ref: "npc.n1", Name: "Goblin", Type: "npc", Hostile: true}

	var appliedText string
	deps := action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) { return actor, nil },
		GetAvailableTargets: func(ctx context.Context, a world.Entity) ([]action.Candidate, error) {
			return []action.Candidate{npc}, nil
		},
		CheckActorAwareness: func(ctx context.Context, a world.Entity, ref string) (bool, error) { return true, nil },
		GetEquippedItems: func(ctx context.Context, a world.Entity) ([]world.Entity, error) {
			return []world.Entity{sword}, nil
		},
		CanAfford: func(ctx context.Context, a world.Entity, costClass string) (bool, error) { return true, nil },
		ExecuteEffects: func(ctx context.Context, text string) (effects.Outcome, error) {
			appliedText = text
			return effects.Outcome{EffectsApplied: 1}, nil
		},
	}
	p := action.New(verbs, tagReg, deps)

	result := p.Run(context.Background(), action.Intent{
		Source:            action.SourceAIDecision,
		ActorRef:          "actor.a1",
		Verb:              "ATTACK",
		ExistingTargetRef: "npc.n1",
	})
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.FailureReason)
	}
	if appliedText == "" {
		t.Fatalf("expected effect text to be instantiated")
	}
}

func TestPipeline_MoveSucceedsThroughRealEffects(t *testing.T) {
	verbs := verbRegistry()
	tagReg := tags.NewRegistry()

	actor := world.Entity{ID: "actor.a1"}
	tile := action.Candidate{
		Ref: "tile.2.2", Name: "tile", Type: "tile",
		Location: types.Location{Tile: types.TilePosition{X: 2, Y: 2}},
	}

	var appliedText string
	deps := action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) { return actor, nil },
		GetAvailableTargets: func(ctx context.Context, a world.Entity) ([]action.Candidate, error) {
			return []action.Candidate{tile}, nil
		},
		CanAfford: func(ctx context.Context, a world.Entity, costClass string) (bool, error) { return true, nil },
		// ExecuteEffects is the real parser, not a stub: it fails the test if
		// instantiateTemplate leaves any {{.X}}-style placeholder unsubstituted.
		ExecuteEffects: func(ctx context.Context, text string) (effects.Outcome, error) {
			appliedText = text
			cmds, err := effects.Parse(text)
			if err != nil {
				return effects.Outcome{}, err
			}
			return effects.Outcome{EffectsApplied: len(cmds)}, nil
		},
	}
	p := action.New(verbs, tagReg, deps)

	result := p.Run(context.Background(), action.Intent{
		Source:         action.SourcePlayerInput,
		ActorRef:       "actor.a1",
		Verb:           "MOVE",
		UITarget:       "tile.2.2",
		Origin:         types.Location{Tile: types.TilePosition{X: 2, Y: 2}},
		TargetLocation: types.Location{Tile: types.TilePosition{X: 2, Y: 2}},
	})
	if !result.Success {
		t.Fatalf("expected success, got failure: %s", result.FailureReason)
	}
	if strings.Contains(appliedText, "{{.") {
		t.Fatalf("effect text still has unsubstituted placeholders: %q", appliedText)
	}
	want := "SYSTEM.MOVE_ENTITY(target=actor.a1, x=2, y=2)"
	if appliedText != want {
		t.Fatalf("effect text = %q, want %q", appliedText, want)
	}
	if len(result.Effects) != 1 || !result.Effects[0].Applied {
		t.Fatalf("Effects = %+v", result.Effects)
	}
}

func TestPipeline_UseSucceedsThroughRealEffects(t *testing.T) {
	verbs := verbRegistry()
	tagReg := tags.NewRegistry()

	actor := world.Entity{ID: "actor.a1"}
	item := action.Candidate{Ref: "item.potion", Name: "Potion", Type: "item"}

	var appliedText string
	deps := action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) { return actor, nil },
		GetAvailableTargets: func(ctx context.Context, a world.Entity) ([]action.Candidate, error) {
			return []action.Candidate{item}, nil
		},
		CheckActorAwareness: func(ctx context.Context, a world.Entity, ref string) (bool, error) { return true, nil },
		GetEquippedItems: func(ctx context.Context, a world.Entity) ([]world.Entity, error) {
			return nil, nil
		},
		CanAfford: func(ctx context.Context, a world.Entity, costClass string) (bool, error) { return true, nil },
		ExecuteEffects: func(ctx context.Context, text string) (effects.Outcome, error) {
			appliedText = text
			cmds, err := effects.Parse(text)
			if err != nil {
				return effects.Outcome{}, err
			}
			return effects.Outcome{EffectsApplied: len(cmds)}, nil
		},
	}
	p := action.New(verbs, tagReg, deps)

	result := p.Run(context.Background(), action.Intent{
		Source:   action.SourcePlayerInput,
		ActorRef: "actor.a1",
		Verb:     "USE",
		UITarget: "item.potion",
		Parameters: map[string]any{
			"Resource": "health",
			"Delta":    10,
		},
	})
	if !result.Success {
		t.Fatalf("expected success, got failure: %s", result.FailureReason)
	}
	if strings.Contains(appliedText, "{{.") {
		t.Fatalf("effect text still has unsubstituted placeholders: %q", appliedText)
	}
	want := "SYSTEM.ADJUST_RESOURCE(target=actor.a1, name=health, delta=10)"
	if appliedText != want {
		t.Fatalf("effect text = %q, want %q", appliedText, want)
	}
}

func TestPipeline_MissingToolFails(t *testing.T) {
	verbs := verbRegistry()
	tagReg := tags.NewRegistry()

	actor := world.Entity{ID: "actor.a1"}
	npc := action.Candidate{Ref: "npc.n1", Name: "Goblin", Type: "npc", Hostile: true}

	deps := action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) { return actor, nil },
		GetAvailableTargets: func(ctx context.Context, a world.Entity) ([]action.Candidate, error) {
			return []action.Candidate{npc}, nil
		},
		CheckActorAwareness: func(ctx context.Context, a world.Entity, ref string) (bool, error) { return true, nil },
		GetEquippedItems: func(ctx context.Context, a world.Entity) ([]world.Entity, error) {
			return nil, nil
		},
	}
	p := action.New(verbs, tagReg, deps)

	result := p.Run(context.Background(), action.Intent{
		Source:            action.SourceAIDecision,
		ActorRef:          "actor.a1",
		Verb:              "ATTACK",
		ExistingTargetRef: "npc.n1",
	})
	if result.Success {
		t.Fatalf("expected failure: no tool equipped")
	}
}
