package config

import (
	"os"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m, err := NewManager()
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestLoadMissingConfig(t *testing.T) {
	m := newTestManager(t)
	if m.Exists() {
		t.Error("Exists before any save")
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("missing config should load empty: %v", err)
	}
	if *cfg != (Config{}) {
		t.Errorf("config = %+v, want zero", cfg)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	in := &Config{
		LLMProvider:        "anthropic",
		APIKey:             "sk-test",
		Model:              "claude-sonnet-4-20250514",
		MaxCostUSD:         2.5,
		MaxConcurrentTasks: 4,
		SandboxMode:        "docker",
	}
	if err := m.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !m.Exists() {
		t.Error("Exists false after save")
	}

	out, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *out != *in {
		t.Errorf("round trip: got %+v, want %+v", out, in)
	}

	// The file holds an API key and must be owner-only.
	info, err := os.Stat(m.GetConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 0600", perm)
	}
}
