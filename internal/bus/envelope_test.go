package bus_test

import (
	"testing"

	"github.com/duskward/narrator/internal/bus"
)

func TestTrySetStatus_Allowed(t *testing.T) {
	env := bus.MessageEnvelope{Status: bus.StatusQueued}
	out, ok := bus.TrySetStatus(env, bus.StatusSent)
	if !ok {
		t.Fatal("expected queued -> sent to be allowed")
	}
	if out.Status != bus.StatusSent {
		t.Errorf("status: got %q, want %q", out.Status, bus.StatusSent)
	}
}

func TestTrySetStatus_Disallowed(t *testing.T) {
	env := bus.MessageEnvelope{Status: bus.StatusQueued}
	out, ok := bus.TrySetStatus(env, bus.StatusDone)
	if ok {
		t.Fatal("expected queued -> done to be disallowed")
	}
	if out.Status != bus.StatusQueued {
		t.Errorf("status should be unchanged on failed transition, got %q", out.Status)
	}
}

func TestTrySetStatus_AwaitingRollToSent(t *testing.T) {
	env := bus.MessageEnvelope{Status: bus.AwaitingRollStatus("7")}
	out, ok := bus.TrySetStatus(env, bus.StatusSent)
	if !ok {
		t.Fatal("expected awaiting_roll_* -> sent to be allowed")
	}
	if out.Status != bus.StatusSent {
		t.Errorf("status: got %q", out.Status)
	}
}

func TestSessionID_Legacy(t *testing.T) {
	env := bus.MessageEnvelope{}
	if _, ok := env.SessionID(); ok {
		t.Error("envelope with nil meta should report no session id")
	}

	env.Meta = map[string]any{"other": "x"}
	if _, ok := env.SessionID(); ok {
		t.Error("envelope without session_id key should report no session id")
	}
}

func TestHasStagePrefix(t *testing.T) {
	env := bus.MessageEnvelope{Stage: "applied_2"}
	if !env.HasStagePrefix("applied_") {
		t.Error("expected HasStagePrefix(\"applied_\") to match \"applied_2\"")
	}
	if env.HasStagePrefix("rendered_") {
		t.Error("expected HasStagePrefix(\"rendered_\") not to match \"applied_2\"")
	}
}

func TestHigherPriority(t *testing.T) {
	cases := []struct {
		a, b bus.Status
		want bool
	}{
		{bus.StatusDone, bus.StatusProcessing, true},
		{bus.StatusProcessing, bus.StatusSent, true},
		{bus.StatusSent, bus.StatusQueued, true},
		{bus.StatusQueued, bus.StatusSent, false},
		{bus.StatusSent, bus.StatusSent, false},
	}
	for _, c := range cases {
		if got := bus.HigherPriority(c.a, c.b); got != c.want {
			t.Errorf("HigherPriority(%s, %s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
