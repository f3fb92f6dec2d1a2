// ABOUTME: Configuration loading for the dashboard: defaults, optional YAML file, and env overrides.
// ABOUTME: Impact coefficients live here so the water/carbon estimation stays auditable, never inlined.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CIRISAI/scoutgui/pipeline"
)

// appConfig is the YAML-file configuration shape.
type appConfig struct {
	BaseURL      string                      `yaml:"base_url"`
	AgentID      string                      `yaml:"agent_id"`
	AgentName    string                      `yaml:"agent_name"`
	ChannelID    string                      `yaml:"channel_id"`
	ListenAddr   string                      `yaml:"listen_addr"`
	PollInterval duration                    `yaml:"poll_interval"`
	HistoryLimit int                         `yaml:"history_limit"`
	Impact       pipeline.ImpactCoefficients `yaml:"impact"`
}

// defaultConfig returns the stock configuration for a local agent.
func defaultConfig() appConfig {
	return appConfig{
		BaseURL:      "http://127.0.0.1:8080",
		AgentID:      "scout",
		AgentName:    "Scout",
		ChannelID:    "scout-ui",
		ListenAddr:   "127.0.0.1:3450",
		PollInterval: duration(5 * time.Second),
		HistoryLimit: 50,
		Impact:       pipeline.DefaultImpactCoefficients(),
	}
}

// loadConfig reads the YAML file at path over the defaults. An empty path
// returns the defaults; a missing explicit path is an error.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("config %s: poll_interval must be positive", path)
	}
	if cfg.HistoryLimit <= 0 {
		return cfg, fmt.Errorf("config %s: history_limit must be positive", path)
	}
	return cfg, nil
}

// duration parses YAML strings like "5s" via time.ParseDuration.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = duration(parsed)
	return nil
}
