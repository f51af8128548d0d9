// Package turn implements the timed-event turn state machine (C12): turn
// order, held actions, and a reaction priority queue layered over the
// action pipeline.
package turn

import (
	"container/heap"
	"sort"
	"strings"
)

// Phase is one node in the turn state machine.
type Phase string

// Recognised [Phase] values, per §4.12.
const (
	PhaseInitiativeRoll   Phase = "INITIATIVE_ROLL"
	PhaseTurnStart        Phase = "TURN_START"
	PhaseActionSelection  Phase = "ACTION_SELECTION"
	PhaseActionResolution Phase = "ACTION_RESOLUTION"
	PhaseTurnEnd          Phase = "TURN_END"
	PhaseEventEndCheck    Phase = "EVENT_END_CHECK"
	PhaseEventEnd         Phase = "EVENT_END"
)

// Participant is one combatant or conversant entering initiative.
type Participant struct {
	Ref   string
	Score int
}

// OrderInitiative sorts participants by score descending, stable on ties so
// equal scores keep their input order (§4.12: "stable for ties").
func OrderInitiative(participants []Participant) []string {
	sorted := make([]Participant, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	refs := make([]string, len(sorted))
	for i, p := range sorted {
		refs[i] = p.Ref
	}
	return refs
}

// HeldAction is an actor's stored reaction trigger, released when an
// observed event matches.
type HeldAction struct {
	ActorRef string
	Trigger  string
	Priority int
}

// matchesEvent reports whether h's trigger and event satisfy §4.12's
// case-insensitive substring match in either direction.
func (h HeldAction) matchesEvent(event string) bool {
	trigger := strings.ToLower(h.Trigger)
	ev := strings.ToLower(event)
	return strings.Contains(ev, trigger) || strings.Contains(trigger, ev)
}

// ReleaseHeldActions returns every held action in actions whose trigger
// matches event, highest priority first, stable on ties by original order.
func ReleaseHeldActions(actions []HeldAction, event string) []HeldAction {
	var matched []HeldAction
	for _, a := range actions {
		if a.matchesEvent(event) {
			matched = append(matched, a)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Priority > matched[j].Priority })
	return matched
}

// Reaction is a pending reaction to a turn, ordered by priority with FIFO
// tie-breaking.
type Reaction struct {
	ActorRef string
	Priority int
	Turn     int
	seq      uint64
}

// reactionHeap implements [container/heap.Interface] as a max-heap ordered
// by priority (descending), with FIFO tie-breaking on seq (ascending) —
// grounded on the teacher's audio-mixer segment heap.
type reactionHeap []Reaction

func (h reactionHeap) Len() int { return len(h) }

func (h reactionHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h reactionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *reactionHeap) Push(x any) { *h = append(*h, x.(Reaction)) }

func (h *reactionHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	*h = old[:n-1]
	return r
}

// ReactionQueue is a priority queue of pending reactions, cleared whenever
// it is drained (§4.12: "a priority queue cleared on read").
type ReactionQueue struct {
	items reactionHeap
	seq   uint64
}

// Push enqueues a reaction.
func (q *ReactionQueue) Push(actorRef string, priority, turn int) {
	q.seq++
	heap.Push(&q.items, Reaction{ActorRef: actorRef, Priority: priority, Turn: turn, seq: q.seq})
}

// Len reports the number of pending reactions.
func (q *ReactionQueue) Len() int { return q.items.Len() }

// DrainAll pops every pending reaction in priority order and empties the
// queue.
func (q *ReactionQueue) DrainAll() []Reaction {
	out := make([]Reaction, 0, q.items.Len())
	for q.items.Len() > 0 {
		out = append(out, heap.Pop(&q.items).(Reaction))
	}
	return out
}

// State is the turn machine's mutable record.
type State struct {
	Phase            Phase
	InitiativeOrder  []string
	CurrentTurn      int // 1-based index into InitiativeOrder
	Round            int
	CompletedActors  map[string]bool
	HeldActions      map[string]HeldAction
	Reactions        ReactionQueue
}

// CurrentActor returns the ref whose turn it currently is, or "" if the
// order is empty or CurrentTurn is out of range.
func (s State) CurrentActor() string {
	if s.CurrentTurn < 1 || s.CurrentTurn > len(s.InitiativeOrder) {
		return ""
	}
	return s.InitiativeOrder[s.CurrentTurn-1]
}
