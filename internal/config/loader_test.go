package config_test

import (
	"os"
	"strings"
	"testing"

	"github.com/duskward/narrator/internal/config"
)

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	found := false
	for _, n := range config.ValidProviderNames {
		if n == "openai" {
			found = true
		}
	}
	if !found {
		t.Error("ValidProviderNames should contain \"openai\"")
	}
}

func TestLoad_AppliesDefaultsAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/narrator.yaml"
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	t.Setenv("DATA_SLOT", "3")
	t.Setenv("OLLAMA_HOST", "http://override:11434")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataSlot != 3 {
		t.Errorf("data_slot: got %d, want 3 (env override)", cfg.DataSlot)
	}
	if cfg.AI.OllamaHost != "http://override:11434" {
		t.Errorf("ai.ollama_host: got %q, want override value", cfg.AI.OllamaHost)
	}
	if cfg.Queues.LogCap != 100 {
		t.Errorf("queues.log_cap: got %d, want default 100", cfg.Queues.LogCap)
	}
	if cfg.NPCMovement.TickHz != 4 {
		t.Errorf("npc_movement.tick_hz: got %v, want default 4", cfg.NPCMovement.TickHz)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/path/narrator.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
server:
  listen_addr: ":8080"
unknown_top_level_field: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

func TestValidate_UnknownAIProviderWarnsNotErrors(t *testing.T) {
	yaml := `
ai:
  provider: some-third-party-backend
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unknown provider name should only warn, not fail validation: %v", err)
	}
}
