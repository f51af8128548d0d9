package renderer

import (
	"sync"

	"github.com/duskward/narrator/pkg/types"
)

// SessionHistory is a bounded, per-session conversation history, kept so
// the prompt builder can hand the LLM recent context (§4.10). [Worker]
// appends only its rendered replies (role "assistant"); the inputs they
// answered are not recorded. It satisfies [History].
type SessionHistory struct {
	max int

	mu   sync.Mutex
	byID map[string][]types.Message
}

// NewSessionHistory returns a [SessionHistory] that keeps at most max
// messages per session. max <= 0 means unbounded.
func NewSessionHistory(max int) *SessionHistory {
	return &SessionHistory{max: max, byID: make(map[string][]types.Message)}
}

// Recent returns a copy of sessionID's stored messages, oldest first.
func (h *SessionHistory) Recent(sessionID string) []types.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	stored := h.byID[sessionID]
	out := make([]types.Message, len(stored))
	copy(out, stored)
	return out
}

// Append records msg for sessionID, trimming the oldest entries once max is
// exceeded.
func (h *SessionHistory) Append(sessionID string, msg types.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := append(h.byID[sessionID], msg)
	if h.max > 0 && len(msgs) > h.max {
		msgs = msgs[len(msgs)-h.max:]
	}
	h.byID[sessionID] = msgs
}
