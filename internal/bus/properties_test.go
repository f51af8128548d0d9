package bus_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/duskward/narrator/internal/bus"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_MonotoneIndex checks that allocating an index from any
// previous head index always yields exactly headIndex+1, regardless of
// what head index a log happens to be at (§8's monotone-id invariant).
func TestProperty_MonotoneIndex(t *testing.T) {
	params := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(params)

	properties.Property("NextID parses back to headIndex+1", prop.ForAll(
		func(head int) bool {
			id := bus.NextID(head)
			idx, ok := bus.ParseIndex(id)
			return ok && idx == head+1
		},
		gen.IntRange(0, 1_000_000),
	))

	properties.TestingRun(t)
}

// TestProperty_DedupKeepsHigherStatus checks that appending an envelope with
// an equal-or-lower status than an existing entry with the same id never
// changes the stored status (the round-trip law from §8).
func TestProperty_DedupKeepsHigherStatus(t *testing.T) {
	statuses := []bus.Status{bus.StatusQueued, bus.StatusSent, bus.StatusProcessing, bus.StatusDone}

	params := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(params)

	properties.Property("append_deduped never downgrades an existing status", prop.ForAll(
		func(existingIdx, incomingIdx int) bool {
			existing := statuses[existingIdx%len(statuses)]
			incoming := statuses[incomingIdx%len(statuses)]

			msgs := []bus.MessageEnvelope{{ID: "x", Status: existing}}
			env := bus.MessageEnvelope{ID: "x", Status: incoming}

			merged, _ := mergeDedupedForTest(msgs, env)
			want := existing
			if bus.HigherPriority(incoming, existing) {
				want = incoming
			}
			return merged[0].Status == want
		},
		gen.IntRange(0, 3),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}

// mergeDedupedForTest exercises the same merge behavior as Queue.AppendDeduped
// via a real on-disk queue, since the merge helper itself is unexported.
func mergeDedupedForTest(msgs []bus.MessageEnvelope, env bus.MessageEnvelope) ([]bus.MessageEnvelope, bool) {
	dir, err := os.MkdirTemp("", "bus-property-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	q := bus.NewQueue(filepath.Join(dir, "queue.jsonc"))
	_ = q.Write(msgs)
	_ = q.AppendDeduped(env)
	out, _ := q.Read()
	return out, true
}
