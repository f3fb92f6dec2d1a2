// ABOUTME: Tests for config loading: defaults, YAML overrides, and validation errors.
// ABOUTME: Exercises the duration parser and the impact coefficient plumbing.
package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoutgui.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AgentID != "scout" || cfg.HistoryLimit != 50 {
		t.Errorf("defaults wrong: %+v", cfg)
	}
	if cfg.Impact.WaterLitersPerKWh == 0 {
		t.Error("impact coefficients must default non-zero")
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
base_url: https://agents.example.com
agent_id: sage
poll_interval: 2s
impact:
  water_liters_per_kwh: 2.5
  water_ml_per_token: 0.4
  model_params_b: 70
  reference_params_b: 175
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AgentID != "sage" {
		t.Errorf("agent_id = %q", cfg.AgentID)
	}
	if time.Duration(cfg.PollInterval) != 2*time.Second {
		t.Errorf("poll_interval = %v", time.Duration(cfg.PollInterval))
	}
	if cfg.Impact.ModelParamsB != 70 {
		t.Errorf("impact = %+v", cfg.Impact)
	}
	// Unset fields keep their defaults.
	if cfg.HistoryLimit != 50 {
		t.Errorf("history_limit = %d", cfg.HistoryLimit)
	}
}

func TestMissingExplicitFileIsError(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestInvalidDuration(t *testing.T) {
	path := writeConfig(t, "poll_interval: soon\n")
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestNonPositiveValuesRejected(t *testing.T) {
	path := writeConfig(t, "history_limit: 0\n")
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected error for zero history_limit")
	}
}
