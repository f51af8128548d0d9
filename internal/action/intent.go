package action

import "github.com/duskward/narrator/pkg/types"

// Source classifies where an intent originated, which governs target
// resolution priority (§4.5 step 1).
type Source string

// Recognised intent sources.
const (
	SourcePlayerInput Source = "player_input"
	SourceAIDecision  Source = "ai_decision"
)

// EffectRecord is one instantiated effect produced by step 8, prior to
// execution by the effect applier.
type EffectRecord struct {
	Type       string
	TargetRef  string
	Parameters map[string]any
	Applied    bool
}

// Intent is the input to the pipeline: an actor attempting a verb, with
// whatever targeting hints its source supplies.
type Intent struct {
	Source   Source
	ActorRef string
	Verb     string

	// UITarget is an explicit target ref chosen through the UI. Only
	// meaningful for SourcePlayerInput.
	UITarget string
	// MentionText is the raw @mention substring from the original input, if
	// any.
	MentionText string
	// ExistingTargetRef is the intent's previously-resolved target, used by
	// SourceAIDecision when still a valid candidate.
	ExistingTargetRef string

	Origin types.Location

	// TargetLocation is an explicit destination, e.g. a MOVE's tile. When
	// zero and the resolved target is itself a tile-type candidate, the
	// pipeline falls back to the candidate's own Location.
	TargetLocation types.Location

	// Parameters carries verb-specific effect-template arguments that are
	// not a resolvable target ref: USE's resource name/delta, HELP's heal
	// amount, and so on. Keys match the verb's EffectTemplate placeholders
	// (e.g. "Resource", "Delta", "Heal").
	Parameters map[string]any
}

// Result is the outcome of running an intent through the pipeline.
type Result struct {
	Success       bool
	FailureReason string

	TargetRef  string
	Confidence float64

	Effects   []EffectRecord
	Observers []string
}
