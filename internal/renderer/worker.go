package renderer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/duskward/narrator/internal/bus"
	"github.com/duskward/narrator/internal/resilience"
	"github.com/duskward/narrator/pkg/provider/llm"
	"github.com/duskward/narrator/pkg/types"
)

const fallbackNarration = "Narration unavailable."

// History provides the bounded per-session conversation history the prompt
// builder appends, and the append hook used after a successful render.
type History interface {
	Recent(sessionID string) []types.Message
	Append(sessionID string, msg types.Message)
}

// Worker polls outbox envelopes whose stage begins "applied_" and renders
// narrative text for them via an injected LLM provider.
type Worker struct {
	outbox   *bus.Outbox
	provider llm.Provider
	breaker  *resilience.CircuitBreaker
	history  History
	timeout  time.Duration
}

// NewWorker returns a [Worker] wired to outbox, provider, a circuit breaker
// wrapping provider calls, a session history store, and a per-call timeout.
func NewWorker(outbox *bus.Outbox, provider llm.Provider, breaker *resilience.CircuitBreaker, history History, timeout time.Duration) *Worker {
	return &Worker{outbox: outbox, provider: provider, breaker: breaker, history: history, timeout: timeout}
}

// Tick scans the outbox for one claimable applied_* envelope (stage prefix
// applied_, meta.rendered absent, status sent, matching sessionID), renders
// it, and returns the envelope id it processed, or ok=false if nothing was
// claimable.
func (w *Worker) Tick(ctx context.Context, sessionID string) (processedID string, ok bool, err error) {
	msgs, err := w.outbox.Read()
	if err != nil {
		return "", false, fmt.Errorf("renderer: read outbox: %w", err)
	}

	var target *bus.MessageEnvelope
	for i := range msgs {
		env := &msgs[i]
		if !env.HasStagePrefix("applied_") {
			continue
		}
		if rendered, _ := env.Meta["rendered"].(bool); rendered {
			continue
		}
		if env.Status != bus.StatusSent {
			continue
		}
		if sid, hasSID := env.SessionID(); !hasSID || sid != sessionID {
			continue
		}
		target = env
		break
	}
	if target == nil {
		return "", false, nil
	}

	claimed, done := bus.TrySetStatus(*target, bus.StatusProcessing)
	if !done {
		return "", false, nil
	}
	if err := w.outbox.Update(claimed); err != nil {
		return "", false, fmt.Errorf("renderer: persist claim: %w", err)
	}

	content := w.render(ctx, claimed)

	rendered := bus.New(bus.NextID(0), sessionID, "renderer_ai", content)
	rendered.Stage = "rendered_1"
	rendered.Status = bus.StatusSent
	rendered.CorrelationID = claimed.ID

	if err := w.outbox.AppendDeduped(rendered); err != nil {
		return "", false, fmt.Errorf("renderer: emit rendered envelope: %w", err)
	}

	if w.history != nil {
		w.history.Append(sessionID, types.Message{Role: "assistant", Content: content})
	}

	if claimed.Meta == nil {
		claimed.Meta = make(map[string]any)
	}
	claimed.Meta["rendered"] = true
	final, _ := bus.TrySetStatus(claimed, bus.StatusDone)
	if err := w.outbox.Update(final); err != nil {
		return "", false, fmt.Errorf("renderer: mark done: %w", err)
	}

	return claimed.ID, true, nil
}

// render calls the AI provider with a timeout, falling back to a degraded
// narration string on any error — the source envelope is still marked done
// to prevent pileups, per §4.10.
func (w *Worker) render(ctx context.Context, env bus.MessageEnvelope) string {
	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var history []types.Message
	if w.history != nil {
		if sid, ok := env.SessionID(); ok {
			history = w.history.Recent(sid)
		}
	}
	messages := BuildPrompt(env, history)

	var content string
	execErr := w.breaker.Execute(func() error {
		resp, err := w.provider.Complete(callCtx, llm.CompletionRequest{Messages: messages})
		if err != nil {
			return err
		}
		content = stripCodeFences(resp.Content)
		return nil
	})
	if execErr != nil || strings.TrimSpace(content) == "" {
		return fallbackNarration
	}
	return content
}

var codeFenceRe = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9]*\\n(.*)\\n```\\s*$")

// stripCodeFences removes a single wrapping markdown code fence, if present.
func stripCodeFences(s string) string {
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}
