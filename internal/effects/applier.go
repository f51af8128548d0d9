package effects

import (
	"context"
	"fmt"
	"strings"

	"github.com/duskward/narrator/internal/bus"
	"github.com/duskward/narrator/internal/refs"
)

// Applier consumes an applied_* candidate envelope, resolves and runs its
// effect commands, and produces a summary for the applied_1 successor.
type Applier struct {
	handlers map[string]Handler
	deps     *Deps
	resolver *refs.Resolver
}

// New returns an [Applier] wired to deps and a ref resolver.
func New(deps *Deps, resolver *refs.Resolver) *Applier {
	return &Applier{handlers: defaultHandlers(), deps: deps, resolver: resolver}
}

// Outcome summarizes one Apply call: how many commands succeeded, and any
// per-command warnings (failures that did not stop the remaining commands).
type Outcome struct {
	EffectsApplied int
	Warnings       []string
	DiffLines      []string
}

// Apply parses env's meta.effects text, resolves every ref it references in
// strict mode, and runs each command's handler atomically. A handler failure
// produces a warning rather than aborting the remaining commands, per §4.8.
func (a *Applier) Apply(ctx context.Context, env bus.MessageEnvelope) (Outcome, error) {
	raw, _ := env.Meta["effects"].(string)
	cmds, err := Parse(raw)
	if err != nil {
		return Outcome{}, fmt.Errorf("effects: parse: %w", err)
	}

	refSet := collectRefs(cmds)
	result := a.resolver.ResolveAll(ctx, refSet)
	if len(result.Errors) > 0 {
		return Outcome{}, fmt.Errorf("effects: ref resolution failed: %s", strings.Join(result.Errors, "; "))
	}

	out := Outcome{Warnings: append([]string(nil), result.Warnings...)}
	for _, cmd := range cmds {
		handler, ok := a.handlers[cmd.Verb]
		if !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("unknown verb %q", cmd.Verb))
			continue
		}
		if err := handler(ctx, a.deps, cmd, result.Resolved); err != nil {
			out.Warnings = append(out.Warnings, err.Error())
			continue
		}
		out.EffectsApplied++
		out.DiffLines = append(out.DiffLines, cmd.Line)
	}
	return out, nil
}

// collectRefs scans every command argument for ref-shaped string values,
// including nested list/object values.
func collectRefs(cmds []Command) []string {
	seen := make(map[string]bool)
	var out []string
	var visit func(v any)
	visit = func(v any) {
		switch t := v.(type) {
		case string:
			if looksLikeRef(t) && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		case []any:
			for _, e := range t {
				visit(e)
			}
		case map[string]any:
			for _, e := range t {
				visit(e)
			}
		}
	}
	for _, cmd := range cmds {
		for _, v := range cmd.Args {
			visit(v)
		}
	}
	return out
}

func looksLikeRef(s string) bool {
	for _, prefix := range []string{"actor.", "npc.", "world_tile.", "region_tile.", "tile."} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return strings.Contains(s, "item_")
}
