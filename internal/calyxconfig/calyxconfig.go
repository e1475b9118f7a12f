// Package calyxconfig loads the YAML configuration files for the
// Scheduler, Supervisor, Policy Gate, and Triage components. Structs
// carry dual json/yaml tags, with pointer fields for optional per-entity
// overrides.
package calyxconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"calyx/internal/calyxerr"
)

// AgentConfig is one schedulable agent's static configuration.
type AgentConfig struct {
	ID          string   `json:"id" yaml:"id"`
	Priority    int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	MinCapacity float64  `json:"min_capacity,omitempty" yaml:"min_capacity,omitempty"`
	CooldownSec int      `json:"cooldown_sec,omitempty" yaml:"cooldown_sec,omitempty"`
	HeartbeatID string   `json:"heartbeat_id,omitempty" yaml:"heartbeat_id,omitempty"`
	Command     []string `json:"command,omitempty" yaml:"command,omitempty"`
}

// ServiceConfig is one supervised service's static configuration.
type ServiceConfig struct {
	Name        string   `json:"name" yaml:"name"`
	Signature   string   `json:"signature" yaml:"signature"`
	Command     []string `json:"command,omitempty" yaml:"command,omitempty"`
	Singleton   bool     `json:"singleton,omitempty" yaml:"singleton,omitempty"`
	MaxRestarts *int     `json:"max_restarts,omitempty" yaml:"max_restarts,omitempty"`
	WindowSec   *int     `json:"window_sec,omitempty" yaml:"window_sec,omitempty"`
	BackoffSec  *int     `json:"backoff_sec,omitempty" yaml:"backoff_sec,omitempty"`
}

// PolicyRuleConfig mirrors internal/policy.AllowRule for YAML loading.
type PolicyRuleConfig struct {
	RequestType string `json:"request_type" yaml:"request_type"`
	Pattern     string `json:"pattern" yaml:"pattern"`
}

// TriageConfig controls pipeline behavior.
type TriageConfig struct {
	StrictMode      *bool    `json:"strict_mode,omitempty" yaml:"strict_mode,omitempty"`
	RunPytest       *bool    `json:"run_pytest,omitempty" yaml:"run_pytest,omitempty"`
	SourceRoots     []string `json:"source_roots,omitempty" yaml:"source_roots,omitempty"`
	PhaseACommand   []string `json:"phase_a_command,omitempty" yaml:"phase_a_command,omitempty"`
}

// Config is the root Station Calyx configuration document.
type Config struct {
	Root         string             `json:"root,omitempty" yaml:"root,omitempty"`
	LoadMode     string             `json:"load_mode,omitempty" yaml:"load_mode,omitempty"`
	PolicyVersion int               `json:"policy_version,omitempty" yaml:"policy_version,omitempty"`
	Agents       []AgentConfig      `json:"agents,omitempty" yaml:"agents,omitempty"`
	Services     []ServiceConfig    `json:"services,omitempty" yaml:"services,omitempty"`
	AllowRules   []PolicyRuleConfig `json:"allow_rules,omitempty" yaml:"allow_rules,omitempty"`
	Triage       TriageConfig       `json:"triage,omitempty" yaml:"triage,omitempty"`
}

// Load reads and parses a YAML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, calyxerr.NewConfigError(path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, calyxerr.NewConfigError(path, fmt.Errorf("parse: %w", err))
	}
	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

// ApplyEnvOverrides layers the CALYX_ROOT / CALYX_LOAD_MODE /
// CALYX_POLICY_VERSION environment variables over cfg, the env-var
// surface every subcommand honors.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CALYX_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("CALYX_LOAD_MODE"); v != "" {
		cfg.LoadMode = v
	}
	if v := os.Getenv("CALYX_POLICY_VERSION"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.PolicyVersion = n
		}
	}
}
