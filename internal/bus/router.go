package bus

import "strings"

// RouteAction tells the caller what to do with a routed envelope.
type RouteAction string

const (
	// RouteEmitOutbox appends the (possibly status-updated) envelope to the outbox.
	RouteEmitOutbox RouteAction = "emit_outbox"
	// RouteLogOnly appends the envelope to the log and takes no further action.
	RouteLogOnly RouteAction = "log_only"
)

// RouteDecision is the result of routing one envelope.
type RouteDecision struct {
	Action RouteAction
	// Envelope is env with any status change the route applies.
	Envelope MessageEnvelope
}

// Route is the pure router function (C4): it inspects an envelope's
// (sender, type, stage, status) and decides its next hop. It never performs
// I/O itself — callers apply the returned [RouteDecision].
func Route(env MessageEnvelope) RouteDecision {
	switch {
	case isUserInput(env):
		out, _ := TrySetStatus(env, StatusSent)
		return RouteDecision{Action: RouteEmitOutbox, Envelope: out}

	case env.Sender == "rules_lawyer" && env.HasStagePrefix("ruling_") && env.Status == StatusPendingStateApply:
		return RouteDecision{Action: RouteEmitOutbox, Envelope: env}

	case env.Sender == "state_applier" && env.HasStagePrefix("applied_"):
		out, _ := TrySetStatus(env, StatusSent)
		return RouteDecision{Action: RouteEmitOutbox, Envelope: out}

	case env.Sender == "renderer_ai" && env.HasStagePrefix("rendered_"):
		return RouteDecision{Action: RouteLogOnly, Envelope: env}

	case env.Sender == "data_broker" && env.Status == StatusError:
		// Legacy behavior re-queued this to the (now archived) interpreter
		// stage. The current router does not retry — see SPEC_FULL §13.1.
		return RouteDecision{Action: RouteLogOnly, Envelope: env}

	case env.HasStagePrefix("npc_response"):
		out, _ := TrySetStatus(env, StatusSent)
		return RouteDecision{Action: RouteEmitOutbox, Envelope: out}

	default:
		return RouteDecision{Action: RouteLogOnly, Envelope: env}
	}
}

func isUserInput(env MessageEnvelope) bool {
	if env.Type == "user_input" {
		return true
	}
	s := strings.ToLower(env.Sender)
	return s == "j" || s == "user"
}
