package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEngineConfig(t *testing.T) {
	path := writeConfig(t, `
pool_size: 4
monitor:
  email_address: monitor@example.org
  poll_interval_seconds: 15
notification:
  enabled: true
  emails:
    - ops@example.org
providers:
  - protocol: SSH
    security: SSH_KEYS
    provider: ssh
  - protocol: LOCAL
    provider: local
applications:
  gaussian:
    provider: ssh
    execution_mode: ASYNCHRONOUS
handlers:
  in:
    - ENV_SETUP
    - DATA_STAGE_IN
  out:
    - DATA_STAGE_OUT
execution_modes:
  protocols:
    SSH: ASYNCHRONOUS
`)
	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig: %v", err)
	}
	if cfg.PoolSize != 4 {
		t.Errorf("PoolSize = %d, want 4", cfg.PoolSize)
	}
	if cfg.Monitor.EmailAddress != "monitor@example.org" || cfg.Monitor.PollIntervalSeconds != 15 {
		t.Errorf("Monitor = %+v", cfg.Monitor)
	}
	if !cfg.Notification.Enabled || len(cfg.Notification.Emails) != 1 {
		t.Errorf("Notification = %+v", cfg.Notification)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0].Security != "SSH_KEYS" {
		t.Errorf("Providers = %+v", cfg.Providers)
	}
	if app := cfg.Applications["gaussian"]; app.Provider != "ssh" || app.ExecutionMode != "ASYNCHRONOUS" {
		t.Errorf("gaussian override = %+v", app)
	}
	if cfg.ExecutionModes.Protocols["SSH"] != "ASYNCHRONOUS" {
		t.Errorf("ExecutionModes = %+v", cfg.ExecutionModes)
	}
}

func TestLoadEngineConfigDefaults(t *testing.T) {
	path := writeConfig(t, "providers: []\n")
	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig: %v", err)
	}
	if cfg.PoolSize != 10 {
		t.Errorf("default PoolSize = %d, want 10", cfg.PoolSize)
	}
	if cfg.Monitor.PollIntervalSeconds != 30 {
		t.Errorf("default poll interval = %d, want 30", cfg.Monitor.PollIntervalSeconds)
	}
	if len(cfg.Handlers.In) != 2 || len(cfg.Handlers.Out) != 1 {
		t.Errorf("default handler chains = %+v", cfg.Handlers)
	}
}

func TestLoadEngineConfigMissingFile(t *testing.T) {
	if _, err := LoadEngineConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEngineConfigBadYAML(t *testing.T) {
	path := writeConfig(t, ": not yaml [")
	if _, err := LoadEngineConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}
