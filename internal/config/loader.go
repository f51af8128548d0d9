package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the AI provider backend names narrator ships
// registered, for soft validation in [Validate].
var ValidProviderNames = []string{"anyllm", "openai", "mock"}

// Load reads and parses the YAML configuration file at path, applies
// defaults and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result,
// without applying defaults or environment overrides. Tests construct
// configs this way so fixtures stay explicit about every field they exercise.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued tuning fields with the defaults spec.md
// assigns them.
func applyDefaults(cfg *Config) {
	if cfg.DataSlot <= 0 {
		cfg.DataSlot = 1
	}
	if cfg.Queues.LogCap <= 0 {
		cfg.Queues.LogCap = 100
	}
	if cfg.Queues.NoisePruneCap <= 0 {
		cfg.Queues.NoisePruneCap = 4000
	}
	if cfg.Queues.OutboxCap <= 0 {
		cfg.Queues.OutboxCap = 10
	}
	if cfg.Queues.StaleProcessingThresholdMS <= 0 {
		cfg.Queues.StaleProcessingThresholdMS = 60000
	}
	if cfg.NPCMovement.TickHz <= 0 {
		cfg.NPCMovement.TickHz = 4
	}
	if cfg.NPCMovement.ReassessBatchSize <= 0 {
		cfg.NPCMovement.ReassessBatchSize = 5
	}
	if cfg.NPCMovement.MaxReassessIntervalMS <= 0 {
		cfg.NPCMovement.MaxReassessIntervalMS = 5000
	}
	if cfg.NPCMovement.BlockedThresholdMS <= 0 {
		cfg.NPCMovement.BlockedThresholdMS = 3000
	}
	if cfg.NPCMovement.MaxPathSearchDistance <= 0 {
		cfg.NPCMovement.MaxPathSearchDistance = 8
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogLevelInfo
	}
}

// applyEnvOverrides applies the environment variable overrides named in
// SPEC_FULL.md §10.3, taking precedence over YAML-supplied values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_SLOT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DataSlot = n
		}
	}
	if v := os.Getenv("DEBUG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DebugLevel = n
		}
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.AI.OllamaHost = v
	}
	if v := os.Getenv("RENDERER_MODEL"); v != "" {
		cfg.AI.RendererModel = v
	}
	if v := os.Getenv("NPC_AI_MODEL"); v != "" {
		cfg.AI.NPCModel = v
	}
	if v := os.Getenv("INTERPRETER_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AI.InterpreterTimeoutMS = n
		}
	}
	if v := os.Getenv("RENDERER_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AI.RendererTimeoutMS = n
		}
	}
}

// Validate checks that cfg contains a coherent set of values, returning a
// joined error listing every failure found. Soft issues — an unrecognised
// provider name, a cap ordering that will rarely bind — are logged via
// slog.Warn rather than rejected outright.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName(cfg.AI.Provider)
	if cfg.AI.Provider == "" {
		slog.Warn("no ai.provider configured; renderer and NPC decision stages will have no effect")
	}

	if cfg.DataSlot < 0 {
		errs = append(errs, fmt.Errorf("data_slot must be positive, got %d", cfg.DataSlot))
	}
	if cfg.DebugLevel < 0 || cfg.DebugLevel > 4 {
		errs = append(errs, fmt.Errorf("debug_level must be in [0, 4], got %d", cfg.DebugLevel))
	}

	if cfg.NPCMovement.TickHz < 0 {
		errs = append(errs, fmt.Errorf("npc_movement.tick_hz must be positive, got %v", cfg.NPCMovement.TickHz))
	}
	if cfg.NPCMovement.ReassessBatchSize < 0 {
		errs = append(errs, fmt.Errorf("npc_movement.reassess_batch_size must be positive, got %d", cfg.NPCMovement.ReassessBatchSize))
	}
	if cfg.Turn.DefaultTurnDurationMS < 0 {
		errs = append(errs, fmt.Errorf("turn.default_turn_duration_ms must not be negative, got %d", cfg.Turn.DefaultTurnDurationMS))
	}

	if cfg.Queues.OutboxCap > 0 && cfg.Queues.LogCap > 0 && cfg.Queues.OutboxCap > cfg.Queues.LogCap {
		slog.Warn("queues.outbox_cap exceeds queues.log_cap; outbox retention will rarely bind",
			"outbox_cap", cfg.Queues.OutboxCap, "log_cap", cfg.Queues.LogCap)
	}
	if cfg.Queues.NoisePruneCap > 0 && cfg.Queues.LogCap > 0 && cfg.Queues.NoisePruneCap < cfg.Queues.LogCap {
		slog.Warn("queues.noise_prune_cap is smaller than queues.log_cap",
			"noise_prune_cap", cfg.Queues.NoisePruneCap, "log_cap", cfg.Queues.LogCap)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not among
// [ValidProviderNames]. It never causes Validate to fail — a provider
// registered out-of-tree is a legitimate deployment, not an error.
func validateProviderName(name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown ai.provider name — may be a typo or an out-of-tree provider",
		"name", name, "known", ValidProviderNames)
}
