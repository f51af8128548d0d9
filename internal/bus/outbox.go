package bus

import "time"

// Outbox is the bus's shared work queue: producers append envelopes,
// workers claim them via the claim protocol (§5), and it retains a small
// capped ring after prune, preferring to drop `done` entries first.
type Outbox struct {
	q   *Queue
	cap int
}

// NewOutbox returns an [Outbox] backed by the file at path with the given
// retention cap (default 10).
func NewOutbox(path string, cap int) *Outbox {
	if cap <= 0 {
		cap = 10
	}
	return &Outbox{q: NewQueue(path), cap: cap}
}

// EnsureExists creates the backing file if it does not exist.
func (o *Outbox) EnsureExists() error { return o.q.EnsureExists() }

// Read returns a snapshot of the outbox, newest first. Workers filter this
// snapshot by stage/status predicate and [IsCurrentSession] at tick start.
func (o *Outbox) Read() ([]MessageEnvelope, error) {
	return o.q.Read()
}

// Append adds env to the outbox and prunes to cap.
func (o *Outbox) Append(env MessageEnvelope) error {
	if err := o.q.Append(env); err != nil {
		return err
	}
	return o.prune()
}

// AppendDeduped adds env to the outbox, deduping by id, and prunes to cap.
// This is the operation workers use to emit successor envelopes
// (`append_outbox_message_deduped` in §5's claim protocol).
func (o *Outbox) AppendDeduped(env MessageEnvelope) error {
	if err := o.q.AppendDeduped(env); err != nil {
		return err
	}
	return o.prune()
}

// Update replaces the entry matching env.ID, used by the claim protocol's
// `update_outbox_message` step to persist a status transition.
func (o *Outbox) Update(env MessageEnvelope) error {
	return o.q.Update(env)
}

func (o *Outbox) prune() error {
	msgs, err := o.q.Read()
	if err != nil {
		return err
	}
	pruned := Prune(msgs, o.cap)
	if len(pruned) == len(msgs) {
		return nil
	}
	return o.q.Write(pruned)
}

// RecoverStale promotes `processing` entries older than threshold back to
// `sent`, implementing the periodic recovery sweep §7 recommends for
// surviving a worker crash between claim and completion. It has no
// worker-identity concept: any sufficiently-old `processing` envelope is
// promoted, regardless of which worker claimed it (SPEC_FULL §13.3).
func (o *Outbox) RecoverStale(threshold time.Duration) (int, error) {
	msgs, err := o.q.Read()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	recovered := 0
	for i, m := range msgs {
		if m.Status != StatusProcessing {
			continue
		}
		if now.Sub(m.CreatedAt) < threshold {
			continue
		}
		m.Status = StatusSent
		msgs[i] = m
		recovered++
	}
	if recovered == 0 {
		return 0, nil
	}
	return recovered, o.q.Write(msgs)
}
