package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/duskward/narrator/pkg/provider/llm"
	"github.com/duskward/narrator/pkg/types"
)

// DataSlotWritable returns a [Checker] that verifies dir (the active
// `local_data/data_slot_<N>/` directory) accepts a write by creating and
// removing a small probe file.
func DataSlotWritable(name, dir string) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) error {
			probe := filepath.Join(dir, ".health_probe")
			if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
				return fmt.Errorf("data slot %q not writable: %w", dir, err)
			}
			return os.Remove(probe)
		},
	}
}

// SessionFenceFresh returns a [Checker] that verifies the `.session_id` file
// at path was modified within maxAge, catching a stalled or crashed poller
// before it causes every envelope to be rejected as off-session.
func SessionFenceFresh(name, path string, maxAge time.Duration) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) error {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("session fence %q: %w", path, err)
			}
			age := time.Since(info.ModTime())
			if age > maxAge {
				return fmt.Errorf("session fence %q is %s old, want <= %s", path, age, maxAge)
			}
			return nil
		},
	}
}

// AIProviderReachable returns a [Checker] that issues a minimal best-effort
// completion request against provider to confirm it is reachable. This is
// advisory only — a narration failure still falls back to a fixed string
// rather than blocking the pipeline, so this check never gates traffic on
// its own; it exists to surface the failure in /readyz before it shows up
// as silent "Narration unavailable." output.
func AIProviderReachable(name string, provider llm.Provider) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if provider == nil {
				return fmt.Errorf("no ai provider configured")
			}
			req := llm.CompletionRequest{
				Messages: []types.Message{{Role: "user", Content: "ping"}},
			}
			_, err := provider.Complete(ctx, req)
			if err != nil {
				return fmt.Errorf("ai provider probe failed: %w", err)
			}
			return nil
		},
	}
}
