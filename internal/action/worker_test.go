package action_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/duskward/narrator/internal/action"
	"github.com/duskward/narrator/internal/bus"
	"github.com/duskward/narrator/internal/effects"
	"github.com/duskward/narrator/internal/tags"
	"github.com/duskward/narrator/internal/world"
)

func newTestWorker(t *testing.T, deps action.Deps) (*action.Worker, *bus.Outbox) {
	t.Helper()
	verbs := verbRegistry()
	tagReg := tags.NewRegistry()
	pipeline := action.New(verbs, tagReg, deps)
	outbox := bus.NewOutbox(filepath.Join(t.TempDir(), "outbox.jsonc"), 10)
	return action.NewWorker(outbox, pipeline), outbox
}

func userInputEnvelope(sessionID, verb string) bus.MessageEnvelope {
	env := bus.New(bus.NextID(0), sessionID, "j", "attack the goblin")
	env.Type = "user_input"
	env.Status = bus.StatusSent
	env.Meta["actor_ref"] = "actor.a1"
	env.Meta["verb"] = verb
	env.Meta["ui_target"] = "npc.n1"
	return env
}

func TestWorker_TickAppliesSuccessfulAction(t *testing.T) {
	actor := world.Entity{ID: "actor.a1", Attributes: map[string]int{"STR": 10}}
	deps := action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) { return actor, nil },
		GetAvailableTargets: func(ctx context.Context, a world.Entity) ([]action.Candidate, error) {
			return []action.Candidate{{Ref: "npc.n1", Name: "Goblin", Type: "npc"}}, nil
		},
		ExecuteEffects: func(ctx context.Context, text string) (effects.Outcome, error) {
			return effects.Outcome{EffectsApplied: 1}, nil
		},
	}
	w, outbox := newTestWorker(t, deps)

	env := userInputEnvelope("s1", "COMMUNICATE")
	if err := outbox.Append(env); err != nil {
		t.Fatalf("Append: %v", err)
	}

	id, ok, err := w.Tick(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !ok || id != env.ID {
		t.Fatalf("Tick claimed = (%q, %v), want (%q, true)", id, ok, env.ID)
	}

	msgs, err := outbox.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var source, applied *bus.MessageEnvelope
	for i := range msgs {
		switch msgs[i].ID {
		case env.ID:
			source = &msgs[i]
		default:
			if msgs[i].Stage == "applied_1" {
				applied = &msgs[i]
			}
		}
	}
	if source == nil || source.Status != bus.StatusDone {
		t.Fatalf("source envelope not marked done: %+v", source)
	}
	if applied == nil {
		t.Fatal("no applied_1 envelope emitted")
	}
	if applied.Sender != "state_applier" || applied.Status != bus.StatusSent {
		t.Fatalf("applied envelope = %+v", applied)
	}
	if applied.CorrelationID != env.ID {
		t.Fatalf("CorrelationID = %q, want %q", applied.CorrelationID, env.ID)
	}
	if events, _ := applied.Meta["events"].(string); events == "" {
		t.Fatal("applied envelope missing events summary")
	}
}

func TestWorker_TickMarksFailedValidationDone(t *testing.T) {
	deps := action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) {
			return world.Entity{}, nil
		},
		GetAvailableTargets: func(ctx context.Context, a world.Entity) ([]action.Candidate, error) {
			return nil, nil
		},
	}
	w, outbox := newTestWorker(t, deps)

	env := userInputEnvelope("s1", "COMMUNICATE")
	env.Meta["ui_target"] = ""
	if err := outbox.Append(env); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, ok, err := w.Tick(context.Background(), "s1"); err != nil || !ok {
		t.Fatalf("Tick: ok=%v err=%v", ok, err)
	}

	msgs, err := outbox.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var source, applied *bus.MessageEnvelope
	for i := range msgs {
		if msgs[i].ID == env.ID {
			source = &msgs[i]
		}
		if msgs[i].Stage == "applied_1" {
			applied = &msgs[i]
		}
	}
	if source == nil || source.Status != bus.StatusDone {
		t.Fatalf("source envelope not marked done after failed validation: %+v", source)
	}
	if applied == nil {
		t.Fatal("expected an applied envelope narrating the failure")
	}
	if events, _ := applied.Meta["events"].(string); events == "" {
		t.Fatal("failure events summary missing")
	}
	if _, hasEffects := applied.Meta["effects"]; hasEffects {
		t.Fatal("no effect should have been recorded for a failed validation")
	}
}

func TestWorker_TickIgnoresOtherSessions(t *testing.T) {
	w, outbox := newTestWorker(t, action.Deps{})

	env := userInputEnvelope("other-session", "COMMUNICATE")
	if err := outbox.Append(env); err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, ok, err := w.Tick(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if ok {
		t.Fatal("expected no claimable envelope for a different session")
	}
}

func TestWorker_TickSkipsAlreadyActioned(t *testing.T) {
	w, outbox := newTestWorker(t, action.Deps{})

	env := userInputEnvelope("s1", "COMMUNICATE")
	env.Meta["actioned"] = true
	if err := outbox.Append(env); err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, ok, err := w.Tick(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if ok {
		t.Fatal("expected already-actioned envelope to be skipped")
	}
}
