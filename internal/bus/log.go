package bus

// Log is the append-mostly journal of every envelope that passed through
// the bus. It dedups by id on append and prunes `done` entries down to a
// single retention cap (default 100); there is no separate noise-prune cap.
// Read filters noise types out of the returned view.
type Log struct {
	q          *Queue
	cap        int
	noiseTypes []string
}

// NewLog returns a [Log] backed by the file at path with the given
// retention cap and noise-type filter list.
func NewLog(path string, cap int, noiseTypes []string) *Log {
	if cap <= 0 {
		cap = 100
	}
	return &Log{q: NewQueue(path), cap: cap, noiseTypes: noiseTypes}
}

// Append adds env to the log, deduping by id and pruning to cap.
func (l *Log) Append(env MessageEnvelope) error {
	msgs, err := l.q.Read()
	if err != nil {
		return err
	}
	merged, _ := mergeDeduped(msgs, env)
	merged = Prune(merged, l.cap)
	return l.q.Write(merged)
}

// Read returns the log's entries, newest first, with noise-type entries
// filtered out for long-retention display.
func (l *Log) Read() ([]MessageEnvelope, error) {
	msgs, err := l.q.Read()
	if err != nil {
		return nil, err
	}
	return FilterNoise(msgs, l.noiseTypes), nil
}

// ReadAll returns every entry including noise types, for diagnostics.
func (l *Log) ReadAll() ([]MessageEnvelope, error) {
	return l.q.Read()
}

// HeadIndex returns the index parsed from the newest entry's id, or 0 if
// the log is empty. If the head id cannot be parsed it returns the entry
// count, so the next index is len+1 (the [AllocateIndex] fallback).
func (l *Log) HeadIndex() (int, error) {
	msgs, err := l.q.Read()
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	return AllocateIndex(msgs[0].ID, len(msgs)) - 1, nil
}

// EnsureExists creates the backing file if it does not exist.
func (l *Log) EnsureExists() error { return l.q.EnsureExists() }
