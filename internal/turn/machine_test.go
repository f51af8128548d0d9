package turn_test

import (
	"testing"
	"time"

	"github.com/duskward/narrator/internal/turn"
)

func threeWayMachine() *turn.Machine {
	return turn.NewMachine([]turn.Participant{
		{Ref: "actor.a", Score: 20},
		{Ref: "actor.b", Score: 10},
		{Ref: "npc.c", Score: 5},
	})
}

func runOneTurn(t *testing.T, m *turn.Machine) {
	t.Helper()
	if err := m.BeginActionSelection(); err != nil {
		t.Fatalf("BeginActionSelection: %v", err)
	}
	if err := m.ResolveAction(); err != nil {
		t.Fatalf("ResolveAction: %v", err)
	}
	if err := m.EndTurn(); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	if err := m.CheckEventEnd(false); err != nil {
		t.Fatalf("CheckEventEnd: %v", err)
	}
}

func TestMachine_FullRoundRollsOver(t *testing.T) {
	m := threeWayMachine()
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 3; i++ {
		if got := m.State().CurrentActor(); got != m.State().InitiativeOrder[i] {
			t.Fatalf("turn %d actor = %q, want %q", i, got, m.State().InitiativeOrder[i])
		}
		runOneTurn(t, m)
	}

	st := m.State()
	if st.Phase != turn.PhaseTurnStart {
		t.Fatalf("phase = %s", st.Phase)
	}
	if st.Round != 2 {
		t.Fatalf("round = %d, want 2", st.Round)
	}
	if len(st.CompletedActors) != 0 {
		t.Fatalf("completed actors not cleared: %+v", st.CompletedActors)
	}
	if st.CurrentTurn != 1 {
		t.Fatalf("current turn = %d, want 1", st.CurrentTurn)
	}
}

func TestMachine_PartialRoundAdvancesToNextActor(t *testing.T) {
	m := threeWayMachine()
	_ = m.Start()
	runOneTurn(t, m)

	st := m.State()
	if st.Round != 1 {
		t.Fatalf("round = %d, want unchanged at 1", st.Round)
	}
	if st.CurrentActor() != "actor.b" {
		t.Fatalf("current actor = %q, want actor.b", st.CurrentActor())
	}
	if !st.CompletedActors["actor.a"] {
		t.Fatalf("actor.a should be marked completed")
	}
}

func TestMachine_ChainedActionStaysInSameTurn(t *testing.T) {
	m := threeWayMachine()
	_ = m.Start()
	_ = m.BeginActionSelection()
	_ = m.ResolveAction()

	if err := m.ContinueChainedAction(); err != nil {
		t.Fatalf("ContinueChainedAction: %v", err)
	}
	if m.State().Phase != turn.PhaseActionSelection {
		t.Fatalf("phase = %s, want ACTION_SELECTION", m.State().Phase)
	}
	if m.State().CurrentActor() != "actor.a" {
		t.Fatalf("chained action should not advance the actor")
	}
}

func TestMachine_EventEndDiscardsState(t *testing.T) {
	m := threeWayMachine()
	_ = m.Start()
	_ = m.BeginActionSelection()
	_ = m.ResolveAction()
	_ = m.EndTurn()

	if err := m.CheckEventEnd(true); err != nil {
		t.Fatalf("CheckEventEnd: %v", err)
	}
	st := m.State()
	if st.Phase != turn.PhaseEventEnd {
		t.Fatalf("phase = %s, want EVENT_END", st.Phase)
	}
	if len(st.InitiativeOrder) != 0 || st.Round != 0 {
		t.Fatalf("expected discarded state, got %+v", st)
	}
}

func TestMachine_InvalidTransitionIsRejected(t *testing.T) {
	m := threeWayMachine()
	if err := m.ResolveAction(); err == nil {
		t.Fatalf("expected error resolving an action before selection begins")
	}
}

func TestMachine_HeldActionReleasedOnMatchingEvent(t *testing.T) {
	m := threeWayMachine()
	m.HoldAction("actor.b", "goblin attacks", 5)

	released := m.ReleaseOn("the goblin attacks with a dagger")
	if len(released) != 1 || released[0].ActorRef != "actor.b" {
		t.Fatalf("released = %+v", released)
	}
	// Released actions are removed; a second release attempt finds nothing.
	if released2 := m.ReleaseOn("the goblin attacks with a dagger"); len(released2) != 0 {
		t.Fatalf("expected held action to be consumed, got %+v", released2)
	}
}

func TestMachine_ReactionsPushAndDrain(t *testing.T) {
	m := threeWayMachine()
	m.PushReaction("actor.a", 10, 1)
	m.PushReaction("actor.b", 20, 1)

	drained := m.DrainReactions()
	if len(drained) != 2 || drained[0].ActorRef != "actor.b" {
		t.Fatalf("drained = %+v", drained)
	}
}

func TestIsTurnTimerExpired(t *testing.T) {
	start := time.Unix(0, 0)
	if turn.IsTurnTimerExpired(start, 0, start.Add(time.Hour)) {
		t.Fatalf("zero duration should mean no limit")
	}
	if !turn.IsTurnTimerExpired(start, 30*time.Second, start.Add(31*time.Second)) {
		t.Fatalf("expected expiry past the duration")
	}
	if turn.IsTurnTimerExpired(start, 30*time.Second, start.Add(10*time.Second)) {
		t.Fatalf("did not expect expiry before the duration elapses")
	}
}
