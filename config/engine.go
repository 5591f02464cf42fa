package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig is the typed engine configuration loaded once at
// startup: provider bindings, handler chains and execution-mode
// overrides.
type EngineConfig struct {
	// PoolSize is the number of concurrent process executions.
	PoolSize int `yaml:"pool_size"`

	Monitor      MonitorConfig      `yaml:"monitor"`
	Notification NotificationConfig `yaml:"notification"`

	// Providers binds submission protocols (optionally narrowed by
	// security protocol) to registered provider names.
	Providers []ProviderBinding `yaml:"providers"`

	// Applications overrides provider and execution mode per
	// application name. Application overrides win over
	// protocol-derived selection.
	Applications map[string]ApplicationOverride `yaml:"applications"`

	Handlers HandlerChains `yaml:"handlers"`

	ExecutionModes ExecutionModeOverrides `yaml:"execution_modes"`
}

// MonitorConfig configures job monitoring
type MonitorConfig struct {
	// EmailAddress is the monitor-service mailbox added to the job's
	// notification list when monitoring is email based.
	EmailAddress string `yaml:"email_address"`
	// PollInterval is the job-manager poll period in seconds.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// NotificationConfig configures gateway-level job notification emails
type NotificationConfig struct {
	Enabled bool     `yaml:"enabled"`
	Emails  []string `yaml:"emails"`
}

// ProviderBinding maps a protocol (+ optional security discriminator)
// to a registered provider name. An empty security matches any.
type ProviderBinding struct {
	Protocol string `yaml:"protocol"`
	Security string `yaml:"security"`
	Provider string `yaml:"provider"`
}

// ApplicationOverride carries per-application scheduling overrides
type ApplicationOverride struct {
	Provider      string `yaml:"provider"`
	ExecutionMode string `yaml:"execution_mode"`
}

// HandlerChains lists the ordered in/out handler task types run
// around the provider invocation.
type HandlerChains struct {
	In  []string `yaml:"in"`
	Out []string `yaml:"out"`
}

// ExecutionModeOverrides resolve the execution mode, most specific
// first: application override, host class, protocol, then the
// SYNCHRONOUS default.
type ExecutionModeOverrides struct {
	HostClasses map[string]string `yaml:"host_classes"`
	Protocols   map[string]string `yaml:"protocols"`
}

// LoadEngineConfig reads and validates the engine YAML config
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine config: %w", err)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing engine config: %w", err)
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.Monitor.PollIntervalSeconds <= 0 {
		cfg.Monitor.PollIntervalSeconds = 30
	}
	if len(cfg.Handlers.In) == 0 {
		cfg.Handlers.In = []string{"ENV_SETUP", "DATA_STAGE_IN"}
	}
	if len(cfg.Handlers.Out) == 0 {
		cfg.Handlers.Out = []string{"DATA_STAGE_OUT"}
	}
	return &cfg, nil
}
