// Package config provides the configuration schema, loader, and provider
// registry for narrator's core pipeline.
package config

import "time"

// Config is the root configuration structure for narrator.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	DataSlot    int               `yaml:"data_slot"`
	DebugLevel  int               `yaml:"debug_level"`
	AI          AIConfig          `yaml:"ai"`
	NPCMovement NPCMovementConfig `yaml:"npc_movement"`
	Turn        TurnConfig        `yaml:"turn"`
	Queues      QueuesConfig      `yaml:"queues"`
}

// ServerConfig holds network and logging settings for the narrator process.
type ServerConfig struct {
	// ListenAddr is the TCP address the health/metrics server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// WireListenAddr is parsed but not read by cmd/narrator: the NPC-movement
	// websocket command feed (internal/wire, /npc-feed) is served on
	// ListenAddr.
	WireListenAddr string `yaml:"wire_listen_addr"`
}

// LogLevel is a validated slog verbosity name.
type LogLevel string

// Recognised [LogLevel] values.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// AIConfig selects and tunes the opaque text-in/text-out AI provider used by
// the renderer worker (C10) and by ai_decision-sourced action intents.
type AIConfig struct {
	// Provider selects the registered backend name (e.g., "anyllm", "openai").
	Provider string `yaml:"provider"`

	// OllamaHost, when non-empty, makes the "anyllm" provider use its
	// Ollama backend. The value itself is not passed to the backend, which
	// connects to its default endpoint.
	OllamaHost string `yaml:"ollama_host"`

	// RendererModel is the model used by the renderer worker (C10) to turn
	// applied effects into narrative prose.
	RendererModel string `yaml:"renderer_model"`

	// NPCModel is the model used to decide ai_decision-sourced action intents.
	NPCModel string `yaml:"npc_ai_model"`

	// APIKey authenticates against Provider, when required.
	APIKey string `yaml:"api_key"`

	// InterpreterTimeoutMS bounds any call made while resolving a player
	// utterance into an intent. Default 120000 (120s), per spec.
	InterpreterTimeoutMS int `yaml:"interpreter_timeout_ms"`

	// RendererTimeoutMS bounds the renderer worker's AI call. Default 600000
	// (600s), per spec.
	RendererTimeoutMS int `yaml:"renderer_timeout_ms"`
}

// InterpreterTimeout returns AI.InterpreterTimeoutMS as a [time.Duration],
// defaulting to 120s when unset.
func (c AIConfig) InterpreterTimeout() time.Duration {
	if c.InterpreterTimeoutMS <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.InterpreterTimeoutMS) * time.Millisecond
}

// RendererTimeout returns AI.RendererTimeoutMS as a [time.Duration],
// defaulting to 600s when unset.
func (c AIConfig) RendererTimeout() time.Duration {
	if c.RendererTimeoutMS <= 0 {
		return 600 * time.Second
	}
	return time.Duration(c.RendererTimeoutMS) * time.Millisecond
}

// NPCMovementConfig tunes the free-movement NPC controller (C11).
type NPCMovementConfig struct {
	// TickHz is the scheduler's fixed rate. Default 4.
	TickHz float64 `yaml:"tick_hz"`

	// ReassessBatchSize caps how many NPCs are reassessed per tick. Default 5.
	ReassessBatchSize int `yaml:"reassess_batch_size"`

	// MaxReassessIntervalMS is the upper bound of the reassessment interval
	// before jitter is added. Default 5000.
	MaxReassessIntervalMS int `yaml:"max_reassess_interval_ms"`

	// BlockedThresholdMS is how long an NPC may sit at an unchanged position
	// while moving before it is considered blocked. Default 3000.
	BlockedThresholdMS int `yaml:"blocked_threshold_ms"`

	// MaxPathSearchDistance bounds the spiral search radius used by
	// find_path_to_nearby. Default 8.
	MaxPathSearchDistance int `yaml:"max_path_search_distance"`
}

// TurnConfig tunes the timed-event turn state machine (C12).
type TurnConfig struct {
	// DefaultTurnDurationMS is a turn duration limit in milliseconds; zero
	// means no timer. It is validated but not read by cmd/narrator, which
	// does not construct a turn machine.
	DefaultTurnDurationMS int `yaml:"default_turn_duration_ms"`
}

// QueuesConfig tunes the persistent queue retention policies (C2).
type QueuesConfig struct {
	// LogCap is the Log's retention cap. Default 100.
	LogCap int `yaml:"log_cap"`

	// NoisePruneCap is defaulted to 4000 and validated against LogCap; no
	// queue reads it, so the Log is pruned to LogCap only.
	NoisePruneCap int `yaml:"noise_prune_cap"`

	// OutboxCap is the Outbox's retention cap. Default 10.
	OutboxCap int `yaml:"outbox_cap"`

	// NoiseTypes lists envelope `type` values filtered from long-retention views.
	NoiseTypes []string `yaml:"noise_types"`

	// StaleProcessingThresholdMS governs the recovery sweep: a `processing`
	// envelope older than this is promoted back to `sent`. Default 60000.
	StaleProcessingThresholdMS int `yaml:"stale_processing_threshold_ms"`
}
