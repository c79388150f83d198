package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("missing config should not error: %v", err)
	}
	if !cfg.MemoryEnabled {
		t.Error("memory should default to enabled")
	}
	if len(cfg.ExtraCommands) != 0 {
		t.Errorf("extra commands = %v", cfg.ExtraCommands)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := &Config{MemoryEnabled: false, ExtraCommands: []string{"terraform", "kubectl"}}
	if err := SaveConfig(dir, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.MemoryEnabled {
		t.Error("memory_enabled not persisted")
	}
	if len(out.ExtraCommands) != 2 || out.ExtraCommands[0] != "terraform" {
		t.Errorf("extra commands = %v", out.ExtraCommands)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, CoworkDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, CoworkDir, ConfigFile), []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Error("malformed config should error")
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	rules, err := LoadRules(dir)
	if err != nil || rules != "" {
		t.Fatalf("missing rules = %q, %v", rules, err)
	}

	if err := os.MkdirAll(filepath.Join(dir, CoworkDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, CoworkDir, RulesFile), []byte("always run tests\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rules, err = LoadRules(dir)
	if err != nil {
		t.Fatal(err)
	}
	if rules != "always run tests\n" {
		t.Errorf("rules = %q", rules)
	}
}
