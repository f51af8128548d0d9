package turn

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPhase is returned when a transition method is called from a
// phase it does not apply to.
var ErrInvalidPhase = errors.New("turn: invalid phase transition")

// Machine drives a single timed event (combat encounter or structured
// conversation) through the phases in §4.12. It holds no clock or I/O of
// its own; callers supply `now` and externally-observed conditions (event
// end, turn timer expiry) at each step.
type Machine struct {
	state State
}

// NewMachine builds a [Machine] in [PhaseInitiativeRoll] with participants
// ordered by initiative score (descending, stable on ties).
func NewMachine(participants []Participant) *Machine {
	return &Machine{
		state: State{
			Phase:           PhaseInitiativeRoll,
			InitiativeOrder: OrderInitiative(participants),
			CurrentTurn:     1,
			Round:           1,
			CompletedActors: make(map[string]bool),
			HeldActions:     make(map[string]HeldAction),
		},
	}
}

// State returns a copy of the machine's current state.
func (m *Machine) State() State { return m.state }

func (m *Machine) requirePhase(want Phase) error {
	if m.state.Phase != want {
		return fmt.Errorf("%w: in %s, want %s", ErrInvalidPhase, m.state.Phase, want)
	}
	return nil
}

// Start moves from initiative roll into the first turn.
func (m *Machine) Start() error {
	if err := m.requirePhase(PhaseInitiativeRoll); err != nil {
		return err
	}
	m.state.Phase = PhaseTurnStart
	return nil
}

// BeginActionSelection moves from turn start into action selection for the
// current actor.
func (m *Machine) BeginActionSelection() error {
	if err := m.requirePhase(PhaseTurnStart); err != nil {
		return err
	}
	m.state.Phase = PhaseActionSelection
	return nil
}

// ResolveAction moves from action selection into action resolution.
func (m *Machine) ResolveAction() error {
	if err := m.requirePhase(PhaseActionSelection); err != nil {
		return err
	}
	m.state.Phase = PhaseActionResolution
	return nil
}

// ContinueChainedAction returns to action selection from action resolution,
// allowing the current actor to take another action within the same turn.
func (m *Machine) ContinueChainedAction() error {
	if err := m.requirePhase(PhaseActionResolution); err != nil {
		return err
	}
	m.state.Phase = PhaseActionSelection
	return nil
}

// EndTurn marks the current actor completed and moves to turn end.
func (m *Machine) EndTurn() error {
	if err := m.requirePhase(PhaseActionResolution); err != nil {
		return err
	}
	if actor := m.state.CurrentActor(); actor != "" {
		m.state.CompletedActors[actor] = true
	}
	m.state.Phase = PhaseTurnEnd
	return nil
}

// CheckEventEnd moves from turn end into the event-end check, and resolves
// it immediately: eventEnded transitions to [PhaseEventEnd] and discards
// the state; otherwise the machine rolls over to the next turn (or the
// next round, per §4.12's round-rollover rule) and returns to
// [PhaseTurnStart].
func (m *Machine) CheckEventEnd(eventEnded bool) error {
	if err := m.requirePhase(PhaseTurnEnd); err != nil {
		return err
	}
	m.state.Phase = PhaseEventEndCheck

	if eventEnded {
		m.state.Phase = PhaseEventEnd
		m.state = State{Phase: PhaseEventEnd}
		return nil
	}

	if m.roundComplete() {
		m.state.Round++
		m.state.CompletedActors = make(map[string]bool)
		m.state.CurrentTurn = 1
	} else {
		m.state.CurrentTurn = m.nextUncompletedTurn()
	}
	m.state.Phase = PhaseTurnStart
	return nil
}

// roundComplete reports whether every participant in the initiative order
// has completed a turn this round.
func (m *Machine) roundComplete() bool {
	if len(m.state.InitiativeOrder) == 0 {
		return false
	}
	for _, ref := range m.state.InitiativeOrder {
		if !m.state.CompletedActors[ref] {
			return false
		}
	}
	return true
}

// nextUncompletedTurn finds the next 1-based index after CurrentTurn whose
// actor has not completed a turn this round, wrapping around.
func (m *Machine) nextUncompletedTurn() int {
	n := len(m.state.InitiativeOrder)
	for i := 1; i <= n; i++ {
		idx := (m.state.CurrentTurn-1+i)%n + 1
		if !m.state.CompletedActors[m.state.InitiativeOrder[idx-1]] {
			return idx
		}
	}
	return m.state.CurrentTurn
}

// IsTurnTimerExpired reports whether duration has elapsed since
// turnStartedAt, for the optional turn timer that auto-skips to
// [PhaseTurnEnd] (§4.12). A zero duration means no limit is configured.
func IsTurnTimerExpired(turnStartedAt time.Time, duration time.Duration, now time.Time) bool {
	if duration <= 0 {
		return false
	}
	return now.Sub(turnStartedAt) >= duration
}

// HoldAction stores a reaction trigger for actorRef, replacing any
// previously held action for that actor.
func (m *Machine) HoldAction(actorRef, trigger string, priority int) {
	m.state.HeldActions[actorRef] = HeldAction{ActorRef: actorRef, Trigger: trigger, Priority: priority}
}

// ReleaseOn checks every held action against event and releases (removes)
// every match, returning them highest priority first.
func (m *Machine) ReleaseOn(event string) []HeldAction {
	all := make([]HeldAction, 0, len(m.state.HeldActions))
	for _, h := range m.state.HeldActions {
		all = append(all, h)
	}
	released := ReleaseHeldActions(all, event)
	for _, h := range released {
		delete(m.state.HeldActions, h.ActorRef)
	}
	return released
}

// PushReaction enqueues a reaction to the given turn number.
func (m *Machine) PushReaction(actorRef string, priority, turnNumber int) {
	m.state.Reactions.Push(actorRef, priority, turnNumber)
}

// DrainReactions pops every pending reaction in priority order, emptying
// the queue.
func (m *Machine) DrainReactions() []Reaction {
	return m.state.Reactions.DrainAll()
}
