package roller

import (
	"context"
	"fmt"

	"github.com/duskward/narrator/internal/bus"
)

// Worker polls the outbox for roll_request_*/roll_input_* envelopes and
// drives them through a [Roller] (§4.9).
type Worker struct {
	outbox *bus.Outbox
	roller *Roller
}

// NewWorker returns a [Worker] wired to outbox and roller.
func NewWorker(outbox *bus.Outbox, roller *Roller) *Worker {
	return &Worker{outbox: outbox, roller: roller}
}

// Tick scans the outbox for one claimable roll_request_*/roll_input_*
// envelope (status sent, matching sessionID), drives it through the roller,
// and appends any resulting roll_result_1 envelope. It returns the claimed
// envelope's id, or ok=false if nothing was claimable.
func (w *Worker) Tick(ctx context.Context, sessionID string) (processedID string, ok bool, err error) {
	msgs, err := w.outbox.Read()
	if err != nil {
		return "", false, fmt.Errorf("roller: read outbox: %w", err)
	}

	var target *bus.MessageEnvelope
	for i := range msgs {
		env := &msgs[i]
		if !env.HasStagePrefix("roll_request_") && !env.HasStagePrefix("roll_input_") {
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
		return "", false, fmt.Errorf("roller: persist claim: %w", err)
	}

	var result *bus.MessageEnvelope
	var handleErr error
	if claimed.HasStagePrefix("roll_request_") {
		expression, _ := claimed.Meta["expression"].(string)
		diceLabel, _ := claimed.Meta["dice_label"].(string)
		rolledByPlayer, _ := claimed.Meta["rolled_by_player"].(bool)
		result, handleErr = w.roller.HandleRequest(ctx, claimed, expression, rolledByPlayer, diceLabel)
	} else {
		rollID, _ := claimed.Meta["roll_id"].(string)
		result, handleErr = w.roller.HandleInput(ctx, claimed, rollID)
	}

	if handleErr != nil {
		errored, _ := bus.TrySetStatus(claimed, bus.StatusError)
		if err := w.outbox.Update(errored); err != nil {
			return "", false, fmt.Errorf("roller: mark error: %w", err)
		}
		return claimed.ID, true, nil
	}

	if result != nil {
		if err := w.outbox.AppendDeduped(*result); err != nil {
			return "", false, fmt.Errorf("roller: emit result envelope: %w", err)
		}
	}

	final, _ := bus.TrySetStatus(claimed, bus.StatusDone)
	if err := w.outbox.Update(final); err != nil {
		return "", false, fmt.Errorf("roller: mark done: %w", err)
	}
	return claimed.ID, true, nil
}
