// Package bus implements the envelope & ID service (C1), the persistent
// queue family (C2), the session fence (C3), and the router (C4) that
// together form narrator's message bus.
package bus

import (
	"errors"
	"fmt"
	"time"
)

// Status is an envelope's position in its lifecycle.
type Status string

// Recognised [Status] values.
const (
	StatusQueued            Status = "queued"
	StatusSent              Status = "sent"
	StatusProcessing        Status = "processing"
	StatusPendingStateApply Status = "pending_state_apply"
	StatusDone              Status = "done"
	StatusError             Status = "error"
	StatusSuperseded        Status = "superseded"
)

// AwaitingRollStatus builds the `awaiting_roll_<N>` status for roll id n.
func AwaitingRollStatus(rollID string) Status {
	return Status("awaiting_roll_" + rollID)
}

// IsAwaitingRoll reports whether s is an `awaiting_roll_*` status.
func (s Status) IsAwaitingRoll() bool {
	return len(s) > len("awaiting_roll_") && s[:len("awaiting_roll_")] == "awaiting_roll_"
}

// IsValid reports whether s is a recognised status.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusProcessing, StatusPendingStateApply,
		StatusDone, StatusError, StatusSuperseded:
		return true
	}
	return s.IsAwaitingRoll()
}

// statusPriority orders statuses for dedup-by-id merges: done > processing >
// sent > queued. pending_state_apply ranks with sent; error and superseded
// rank with processing; all of them rank below done.
var statusPriority = map[Status]int{
	StatusQueued:            0,
	StatusSent:              1,
	StatusPendingStateApply: 1,
	StatusProcessing:        2,
	StatusError:             2,
	StatusSuperseded:        2,
	StatusDone:              3,
}

// priority returns s's dedup ranking; unknown and awaiting_roll_* statuses
// rank equal to processing.
func priority(s Status) int {
	if p, ok := statusPriority[s]; ok {
		return p
	}
	return 2
}

// HigherPriority reports whether a outranks b for dedup-by-id purposes.
func HigherPriority(a, b Status) bool {
	return priority(a) > priority(b)
}

// ErrInvalidTransition is returned by [TrySetStatus] when the requested
// status change is not in the allowed transition table.
var ErrInvalidTransition = errors.New("bus: invalid status transition")

// allowedTransitions maps a status to the set of statuses it may move to.
var allowedTransitions = map[Status][]Status{
	StatusQueued:     {StatusSent},
	StatusSent:       {StatusProcessing, StatusSuperseded},
	StatusProcessing: {StatusDone, StatusError, StatusPendingStateApply, StatusSuperseded},
}

// canTransition reports whether from → to is allowed. awaiting_roll_* → sent
// is always allowed, matching C1's transition table.
func canTransition(from, to Status) bool {
	if from.IsAwaitingRoll() && to == StatusSent {
		return true
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MessageEnvelope is the single unit of work on the bus.
type MessageEnvelope struct {
	ID            string
	Sender        string
	Content       string
	Type          string
	Stage         string
	Slot          string
	CorrelationID string
	ReplyTo       string
	Priority      int
	Status        Status
	Flags         []string
	Meta          map[string]any
	ConversationID string
	TurnNumber    int
	Displayed     bool
	Role          string
	CreatedAt     time.Time
}

// SessionID returns the session id stamped in meta, and whether it is present.
// An envelope with no session id in meta is legacy and must be ignored by
// workers of the current session (§3 invariant).
func (e MessageEnvelope) SessionID() (string, bool) {
	if e.Meta == nil {
		return "", false
	}
	v, ok := e.Meta["session_id"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// HasStagePrefix reports whether e's stage begins with prefix, per the
// stage-prefix routing convention (`stage.startsWith("applied_")`).
func (e MessageEnvelope) HasStagePrefix(prefix string) bool {
	return len(e.Stage) >= len(prefix) && e.Stage[:len(prefix)] == prefix
}

// New constructs an envelope for input, stamping CreatedAt and the current
// session id into meta. The caller supplies the id (see [NextID]).
func New(id string, sessionID string, sender, content string) MessageEnvelope {
	return MessageEnvelope{
		ID:        id,
		Sender:    sender,
		Content:   content,
		Status:    StatusQueued,
		Meta:      map[string]any{"session_id": sessionID},
		CreatedAt: time.Now(),
	}
}

// TrySetStatus attempts to move env to target, returning the updated
// envelope and true on success. On an illegal transition it returns the
// envelope unchanged and false — callers are expected to silently skip to
// the next candidate, per §7's "Transition" error kind.
func TrySetStatus(env MessageEnvelope, target Status) (MessageEnvelope, bool) {
	if !canTransition(env.Status, target) {
		return env, false
	}
	env.Status = target
	return env, true
}

// MustTrySetStatus is like [TrySetStatus] but returns an error instead of a
// bool, for callers that want to log the reason.
func MustTrySetStatus(env MessageEnvelope, target Status) (MessageEnvelope, error) {
	out, ok := TrySetStatus(env, target)
	if !ok {
		return env, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, env.Status, target)
	}
	return out, nil
}
