package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// schemaVersion is the canonical queue file schema version. Files declaring
// any other version are a fatal parse error (§6).
const schemaVersion = 1

// ErrBadSchema is returned when a queue file's schema_version does not match
// [schemaVersion] or its shape is otherwise non-canonical.
var ErrBadSchema = errors.New("bus: non-canonical queue file")

// queueFile is the on-disk shape of log.jsonc/inbox.jsonc/outbox.jsonc:
// `{schema_version:1, messages:[...]}`.
type queueFile struct {
	SchemaVersion int               `json:"schema_version"`
	Messages      []MessageEnvelope `json:"messages"`
}

// Queue is a file-backed, newest-first list of envelopes with atomic
// rename-over-temp writes. It is the shared primitive behind Log, Inbox,
// and Outbox; each wraps a Queue with its own retention policy.
type Queue struct {
	path string
}

// NewQueue returns a [Queue] backed by the file at path.
func NewQueue(path string) *Queue {
	return &Queue{path: path}
}

// EnsureExists creates an empty, schema-valid queue file at the Queue's path
// if one does not already exist.
func (q *Queue) EnsureExists() error {
	if _, err := os.Stat(q.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("bus: stat %q: %w", q.path, err)
	}
	return q.Write(nil)
}

// Read loads every envelope from the queue file, newest first. An empty or
// missing file reads as an empty slice.
func (q *Queue) Read() ([]MessageEnvelope, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bus: read %q: %w", q.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var file queueFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadSchema, q.path, err)
	}
	if file.SchemaVersion != schemaVersion {
		return nil, fmt.Errorf("%w: %q: schema_version %d, want %d", ErrBadSchema, q.path, file.SchemaVersion, schemaVersion)
	}
	return file.Messages, nil
}

// Write replaces the queue file's contents with messages, writing to a
// sibling temporary file and renaming atomically to avoid torn reads.
func (q *Queue) Write(messages []MessageEnvelope) error {
	if messages == nil {
		messages = []MessageEnvelope{}
	}
	file := queueFile{SchemaVersion: schemaVersion, Messages: messages}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("bus: marshal %q: %w", q.path, err)
	}

	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bus: mkdir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".queue-*.tmp")
	if err != nil {
		return fmt.Errorf("bus: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("bus: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bus: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, q.path); err != nil {
		return fmt.Errorf("bus: rename %q -> %q: %w", tmpPath, q.path, err)
	}
	return nil
}

// Append inserts env at the head of the queue (newest-first).
func (q *Queue) Append(env MessageEnvelope) error {
	msgs, err := q.Read()
	if err != nil {
		return err
	}
	msgs = append([]MessageEnvelope{env}, msgs...)
	return q.Write(msgs)
}

// AppendDeduped inserts env, merging with any existing entry sharing its ID.
// The higher-priority status wins (done > processing > sent > queued); meta
// is merged with env's keys overriding the existing entry's.
func (q *Queue) AppendDeduped(env MessageEnvelope) error {
	msgs, err := q.Read()
	if err != nil {
		return err
	}
	merged, changed := mergeDeduped(msgs, env)
	if !changed {
		return nil
	}
	return q.Write(merged)
}

// mergeDeduped returns msgs with env merged in by id. The bool is always
// true: a matching entry is merged in place, otherwise env is inserted at
// the head.
func mergeDeduped(msgs []MessageEnvelope, env MessageEnvelope) ([]MessageEnvelope, bool) {
	for i, existing := range msgs {
		if existing.ID != env.ID {
			continue
		}
		merged := existing
		if HigherPriority(env.Status, existing.Status) {
			merged.Status = env.Status
		}
		merged.Meta = mergeMeta(existing.Meta, env.Meta)
		msgs[i] = merged
		return msgs, true
	}
	out := append([]MessageEnvelope{env}, msgs...)
	return out, true
}

// mergeMeta shallow-merges b into a, with b's keys winning on conflict.
func mergeMeta(a, b map[string]any) map[string]any {
	if a == nil && b == nil {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Update replaces the entry matching env.ID in place, leaving the rest of
// the queue untouched. It is a no-op if no entry has that ID.
func (q *Queue) Update(env MessageEnvelope) error {
	msgs, err := q.Read()
	if err != nil {
		return err
	}
	for i, existing := range msgs {
		if existing.ID == env.ID {
			msgs[i] = env
			return q.Write(msgs)
		}
	}
	return nil
}

// RemoveDuplicates collapses any entries sharing an ID down to the single
// highest-priority-status entry for that ID, preserving newest-first order
// of first occurrence.
func (q *Queue) RemoveDuplicates() error {
	msgs, err := q.Read()
	if err != nil {
		return err
	}
	seen := make(map[string]int, len(msgs))
	out := make([]MessageEnvelope, 0, len(msgs))
	for _, m := range msgs {
		if idx, ok := seen[m.ID]; ok {
			if HigherPriority(m.Status, out[idx].Status) {
				out[idx].Status = m.Status
				out[idx].Meta = mergeMeta(out[idx].Meta, m.Meta)
			}
			continue
		}
		seen[m.ID] = len(out)
		out = append(out, m)
	}
	return q.Write(out)
}

// Prune drops entries once the queue exceeds max, removing `done` entries
// from the tail first and never deleting non-done entries.
func Prune(msgs []MessageEnvelope, max int) []MessageEnvelope {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	overflow := len(msgs) - max

	out := make([]MessageEnvelope, len(msgs))
	copy(out, msgs)

	for i := len(out) - 1; i >= 0 && overflow > 0; i-- {
		if out[i].Status == StatusDone {
			out = append(out[:i], out[i+1:]...)
			overflow--
		}
	}
	return out
}

// FilterNoise removes envelopes whose Type is in noiseTypes, for
// long-retention views (§4.2's "Noise filter").
func FilterNoise(msgs []MessageEnvelope, noiseTypes []string) []MessageEnvelope {
	if len(noiseTypes) == 0 {
		return msgs
	}
	noise := make(map[string]struct{}, len(noiseTypes))
	for _, t := range noiseTypes {
		noise[t] = struct{}{}
	}
	out := make([]MessageEnvelope, 0, len(msgs))
	for _, m := range msgs {
		if _, isNoise := noise[m.Type]; isNoise {
			continue
		}
		out = append(out, m)
	}
	return out
}
