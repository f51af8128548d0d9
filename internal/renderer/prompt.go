// Package renderer implements the AI-narration worker: it claims applied_*
// envelopes, builds a verb-specific prompt, and calls the configured LLM
// provider to produce narrative text.
package renderer

import (
	"fmt"
	"strings"

	"github.com/duskward/narrator/internal/bus"
	"github.com/duskward/narrator/pkg/types"
)

// promptVariant renders a system prompt for one verb. A generic fallback
// covers any verb without a dedicated variant.
type promptVariant func(env bus.MessageEnvelope) string

var promptVariants = map[string]promptVariant{
	"INSPECT":     inspectPrompt,
	"ATTACK":      attackPrompt,
	"COMMUNICATE": communicatePrompt,
	"MOVE":        movePrompt,
	"USE":         usePrompt,
}

// BuildPrompt selects the verb-specific prompt variant for env (falling back
// to a generic narration prompt) and appends the session's bounded
// conversation history.
func BuildPrompt(env bus.MessageEnvelope, history []types.Message) []types.Message {
	verb, _ := env.Meta["verb"].(string)
	variant, ok := promptVariants[strings.ToUpper(verb)]
	if !ok {
		variant = genericPrompt
	}
	system := variant(env)

	const maxHistory = 12
	bounded := history
	if len(bounded) > maxHistory {
		bounded = bounded[len(bounded)-maxHistory:]
	}

	messages := make([]types.Message, 0, len(bounded)+1)
	messages = append(messages, types.Message{Role: "system", Content: system})
	messages = append(messages, bounded...)
	return messages
}

func effectsSummary(env bus.MessageEnvelope) string {
	effects, _ := env.Meta["effects"].(string)
	if effects == "" {
		return "no effects were recorded"
	}
	return effects
}

func eventsSummary(env bus.MessageEnvelope) string {
	events, _ := env.Meta["events"].(string)
	if events == "" {
		return env.Content
	}
	return events
}

func inspectPrompt(env bus.MessageEnvelope) string {
	return fmt.Sprintf(
		"Narrate the result of an INSPECT action in vivid, concise prose. Describe what the observer notices. Events: %s",
		eventsSummary(env),
	)
}

func attackPrompt(env bus.MessageEnvelope) string {
	return fmt.Sprintf(
		"Narrate the result of an ATTACK action. Describe impact and consequence without restating numbers literally. Effects applied: %s",
		effectsSummary(env),
	)
}

func communicatePrompt(env bus.MessageEnvelope) string {
	return fmt.Sprintf(
		"Narrate a COMMUNICATE action as dialogue and reaction. Events: %s",
		eventsSummary(env),
	)
}

func movePrompt(env bus.MessageEnvelope) string {
	return fmt.Sprintf(
		"Narrate a MOVE action briefly, describing the path taken and the new surroundings. Effects applied: %s",
		effectsSummary(env),
	)
}

func usePrompt(env bus.MessageEnvelope) string {
	return fmt.Sprintf(
		"Narrate a USE action, describing how the item or ability was employed. Effects applied: %s",
		effectsSummary(env),
	)
}

func genericPrompt(env bus.MessageEnvelope) string {
	return fmt.Sprintf(
		"Narrate the following game event in concise prose. Effects applied: %s",
		effectsSummary(env),
	)
}
