package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// CoworkDir is the per-workspace state directory: config, rules, the
	// event log, and the memory index all live under it.
	CoworkDir = ".cowork"
	// ConfigFile is the per-workspace configuration file name.
	ConfigFile = "config.json"
	// RulesFile holds free-text rules appended to the execution prompt.
	RulesFile = "rules"
)

// Config holds per-workspace settings layered on top of the user config.
type Config struct {
	// MemoryEnabled controls whether completed tasks from this workspace
	// are retained in the task memory index.
	MemoryEnabled bool `json:"memory_enabled"`
	// ExtraCommands extends the run_command allowlist for this workspace.
	ExtraCommands []string `json:"extra_commands,omitempty"`
}

func configPath(dir string) string {
	return filepath.Join(dir, CoworkDir, ConfigFile)
}

// LoadConfig reads the workspace config. A missing file is not an error; the
// returned defaults enable memory and add no commands.
func LoadConfig(dir string) (*Config, error) {
	path := configPath(dir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{MemoryEnabled: true}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse workspace config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes the workspace config, creating .cowork/ if needed.
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Join(dir, CoworkDir), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", CoworkDir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workspace config: %w", err)
	}
	if err := os.WriteFile(configPath(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write workspace config: %w", err)
	}
	return nil
}

// LoadRules reads the free-text rules file. Missing file means no rules.
func LoadRules(dir string) (string, error) {
	path := filepath.Join(dir, CoworkDir, RulesFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read rules file: %w", err)
	}
	return string(data), nil
}
