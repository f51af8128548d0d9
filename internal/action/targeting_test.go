package action_test

import (
	"testing"

	"github.com/duskward/narrator/internal/action"
	"github.com/duskward/narrator/pkg/types"
)

func TestResolveTarget_UIExplicit(t *testing.T) {
	candidates := []action.Candidate{{Ref: "npc.n1", Name: "Goblin"}}
	intent := action.Intent{Source: action.SourcePlayerInput, UITarget: "npc.n1"}

	ref, conf, ok := action.ResolveTarget(intent, candidates, 10)
	if !ok || ref != "npc.n1" || conf != action.ConfidenceUIExplicit {
		t.Fatalf("got ref=%q conf=%v ok=%v", ref, conf, ok)
	}
}

func TestResolveTarget_MentionSubstring(t *testing.T) {
	candidates := []action.Candidate{{Ref: "npc.n1", Name: "Goblin Scout"}}
	intent := action.Intent{Source: action.SourcePlayerInput, MentionText: "goblin"}

	ref, conf, ok := action.ResolveTarget(intent, candidates, 10)
	if !ok || ref != "npc.n1" || conf != action.ConfidenceMention {
		t.Fatalf("got ref=%q conf=%v ok=%v", ref, conf, ok)
	}
}

func TestResolveTarget_AIDecisionExistingTarget(t *testing.T) {
	candidates := []action.Candidate{{Ref: "npc.n1", Name: "Goblin"}}
	intent := action.Intent{Source: action.SourceAIDecision, ExistingTargetRef: "npc.n1"}

	ref, conf, ok := action.ResolveTarget(intent, candidates, 10)
	if !ok || ref != "npc.n1" || conf != action.ConfidenceContext {
		t.Fatalf("got ref=%q conf=%v ok=%v", ref, conf, ok)
	}
}

func TestResolveTarget_AIDecisionClosestHostile(t *testing.T) {
	candidates := []action.Candidate{
		{Ref: "npc.far", Name: "Far", Hostile: true, Location: types.Location{Tile: types.TilePosition{X: 50, Y: 0}}},
		{Ref: "npc.near", Name: "Near", Hostile: true, Location: types.Location{Tile: types.TilePosition{X: 2, Y: 0}}},
		{Ref: "npc.friendly", Name: "Friendly", Hostile: false, Location: types.Location{Tile: types.TilePosition{X: 1, Y: 0}}},
	}
	intent := action.Intent{Source: action.SourceAIDecision, Verb: "ATTACK"}

	ref, conf, ok := action.ResolveTarget(intent, candidates, 10)
	if !ok || ref != "npc.near" || conf != action.ConfidenceContext {
		t.Fatalf("got ref=%q conf=%v ok=%v", ref, conf, ok)
	}
}

func TestResolveTarget_DefaultCommunicate(t *testing.T) {
	candidates := []action.Candidate{{Ref: "region_tile", Name: "region"}}
	intent := action.Intent{Source: action.SourceAIDecision, Verb: "COMMUNICATE"}

	ref, conf, ok := action.ResolveTarget(intent, candidates, 10)
	if !ok || ref != "region_tile" || conf != action.ConfidenceDefault {
		t.Fatalf("got ref=%q conf=%v ok=%v", ref, conf, ok)
	}
}

func TestResolveTarget_NoMatch(t *testing.T) {
	intent := action.Intent{Source: action.SourceAIDecision, Verb: "INSPECT"}
	_, _, ok := action.ResolveTarget(intent, nil, 10)
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestDistance_SameRegion(t *testing.T) {
	a := types.Location{Tile: types.TilePosition{X: 0, Y: 0}}
	b := types.Location{Tile: types.TilePosition{X: 3, Y: 4}}
	if d := action.Distance(a, b, 100); d != 5 {
		t.Fatalf("Distance = %v, want 5", d)
	}
}

func TestDistance_CrossRegion(t *testing.T) {
	a := types.Location{RegionTile: types.TilePosition{X: 0, Y: 0}, Tile: types.TilePosition{X: 0, Y: 0}}
	b := types.Location{RegionTile: types.TilePosition{X: 1, Y: 0}, Tile: types.TilePosition{X: 0, Y: 0}}
	if d := action.Distance(a, b, 10); d != 10 {
		t.Fatalf("Distance = %v, want 10", d)
	}
}
