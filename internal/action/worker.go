package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/duskward/narrator/internal/bus"
	"github.com/duskward/narrator/pkg/types"
)

// Worker claims user_input envelopes from the outbox, builds an [Intent]
// from the envelope's meta, and runs it through a [Pipeline], emitting an
// applied_* envelope for the renderer to narrate (§4.5's closing hop into
// C10).
type Worker struct {
	outbox   *bus.Outbox
	pipeline *Pipeline
}

// NewWorker returns a [Worker] wired to outbox and pipeline.
func NewWorker(outbox *bus.Outbox, pipeline *Pipeline) *Worker {
	return &Worker{outbox: outbox, pipeline: pipeline}
}

// Tick scans the outbox for one claimable user_input envelope (status sent,
// meta.actioned absent, matching sessionID), runs it through the pipeline,
// and emits the resulting applied_* envelope. It returns the claimed
// envelope's id, or ok=false if nothing was claimable.
func (w *Worker) Tick(ctx context.Context, sessionID string) (processedID string, ok bool, err error) {
	msgs, err := w.outbox.Read()
	if err != nil {
		return "", false, fmt.Errorf("action: read outbox: %w", err)
	}

	var target *bus.MessageEnvelope
	for i := range msgs {
		env := &msgs[i]
		if !isUserInput(*env) {
			continue
		}
		if env.Status != bus.StatusSent {
			continue
		}
		if actioned, _ := env.Meta["actioned"].(bool); actioned {
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
		return "", false, fmt.Errorf("action: persist claim: %w", err)
	}

	intent := intentFromEnvelope(claimed)
	result := w.pipeline.Run(ctx, intent)

	applied := newAppliedEnvelope(claimed, sessionID, intent, result)
	if err := w.outbox.AppendDeduped(applied); err != nil {
		return "", false, fmt.Errorf("action: emit applied envelope: %w", err)
	}

	if claimed.Meta == nil {
		claimed.Meta = make(map[string]any)
	}
	claimed.Meta["actioned"] = true
	final, _ := bus.TrySetStatus(claimed, bus.StatusDone)
	if err := w.outbox.Update(final); err != nil {
		return "", false, fmt.Errorf("action: mark done: %w", err)
	}

	return claimed.ID, true, nil
}

// isUserInput mirrors the router's (C4) user-input predicate: the action
// worker is the downstream consumer that predicate hands off to.
func isUserInput(env bus.MessageEnvelope) bool {
	if env.Type == "user_input" {
		return true
	}
	switch strings.ToLower(env.Sender) {
	case "j", "user":
		return true
	}
	return false
}

// intentFromEnvelope reads the fields an upstream interpreter stamped into
// meta (verb, actor/target references, and the actor's origin location) and
// builds the [Intent] the pipeline consumes.
func intentFromEnvelope(env bus.MessageEnvelope) Intent {
	source := SourcePlayerInput
	if s, _ := env.Meta["source"].(string); s == string(SourceAIDecision) {
		source = SourceAIDecision
	}
	actorRef, _ := env.Meta["actor_ref"].(string)
	verb, _ := env.Meta["verb"].(string)
	uiTarget, _ := env.Meta["ui_target"].(string)
	mentionText, _ := env.Meta["mention_text"].(string)
	existingTarget, _ := env.Meta["existing_target_ref"].(string)

	return Intent{
		Source:            source,
		ActorRef:          actorRef,
		Verb:              strings.ToUpper(verb),
		UITarget:          uiTarget,
		MentionText:       mentionText,
		ExistingTargetRef: existingTarget,
		Origin:            locationFromMeta(env.Meta, "origin_place_id", "origin_world_x", "origin_world_y", "origin_region_x", "origin_region_y", "origin_tile_x", "origin_tile_y"),
		TargetLocation:    locationFromMeta(env.Meta, "target_place_id", "target_world_x", "target_world_y", "target_region_x", "target_region_y", "target_tile_x", "target_tile_y"),
		Parameters:        parametersFromMeta(env.Meta),
	}
}

func locationFromMeta(meta map[string]any, placeKey, worldXKey, worldYKey, regionXKey, regionYKey, tileXKey, tileYKey string) types.Location {
	placeID, _ := meta[placeKey].(string)
	return types.Location{
		PlaceID:    placeID,
		WorldTile:  tilePositionFromMeta(meta, worldXKey, worldYKey),
		RegionTile: tilePositionFromMeta(meta, regionXKey, regionYKey),
		Tile:       tilePositionFromMeta(meta, tileXKey, tileYKey),
	}
}

// parametersFromMeta passes an upstream interpreter's meta.parameters
// through to the pipeline unchanged: USE's resource/delta, HELP's heal
// amount, and any other verb-specific effect-template argument that isn't a
// resolvable target ref.
func parametersFromMeta(meta map[string]any) map[string]any {
	params, _ := meta["parameters"].(map[string]any)
	return params
}

func tilePositionFromMeta(meta map[string]any, xKey, yKey string) types.TilePosition {
	return types.TilePosition{X: intFromMeta(meta, xKey), Y: intFromMeta(meta, yKey)}
}

func intFromMeta(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// newAppliedEnvelope builds the applied_* envelope the renderer claims,
// carrying the verb and a narration-ready effects/events summary in meta.
func newAppliedEnvelope(source bus.MessageEnvelope, sessionID string, intent Intent, result Result) bus.MessageEnvelope {
	out := bus.New(bus.NextID(0), sessionID, "state_applier", "")
	out.Stage = "applied_1"
	out.Status = bus.StatusSent
	out.CorrelationID = source.ID
	out.Meta["verb"] = intent.Verb
	out.Meta["target_ref"] = result.TargetRef
	out.Meta["observers"] = result.Observers

	if result.Success {
		out.Meta["events"] = fmt.Sprintf("%s succeeded against %s", intent.Verb, result.TargetRef)
	} else {
		out.Meta["events"] = fmt.Sprintf("%s failed: %s", intent.Verb, result.FailureReason)
	}
	if len(result.Effects) > 0 {
		out.Meta["effects"] = effectsSummary(result.Effects)
	}
	return out
}

func effectsSummary(records []EffectRecord) string {
	parts := make([]string, 0, len(records))
	for _, e := range records {
		status := "not applied"
		if e.Applied {
			status = "applied"
		}
		parts = append(parts, fmt.Sprintf("%s -> %s (%s)", e.Type, e.TargetRef, status))
	}
	return strings.Join(parts, "; ")
}
