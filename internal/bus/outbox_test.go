package bus_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/duskward/narrator/internal/bus"
)

func TestOutbox_RecoverStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonc")
	ob := bus.NewOutbox(path, 10)

	stale := bus.MessageEnvelope{ID: "stale", Status: bus.StatusProcessing, CreatedAt: time.Now().Add(-2 * time.Minute)}
	fresh := bus.MessageEnvelope{ID: "fresh", Status: bus.StatusProcessing, CreatedAt: time.Now()}

	if err := ob.Append(stale); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := ob.Append(fresh); err != nil {
		t.Fatalf("append: %v", err)
	}

	n, err := ob.RecoverStale(time.Minute)
	if err != nil {
		t.Fatalf("recover stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered envelope, got %d", n)
	}

	msgs, err := ob.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, m := range msgs {
		switch m.ID {
		case "stale":
			if m.Status != bus.StatusSent {
				t.Errorf("expected stale envelope promoted to sent, got %s", m.Status)
			}
		case "fresh":
			if m.Status != bus.StatusProcessing {
				t.Errorf("expected fresh envelope to remain processing, got %s", m.Status)
			}
		}
	}
}

func TestOutbox_CapRetainsTenByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonc")
	ob := bus.NewOutbox(path, 0)

	for i := 0; i < 15; i++ {
		env := bus.MessageEnvelope{ID: string(rune('a' + i)), Status: bus.StatusDone}
		if err := ob.Append(env); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := ob.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 10 {
		t.Errorf("expected default cap of 10, got %d entries", len(msgs))
	}
}
