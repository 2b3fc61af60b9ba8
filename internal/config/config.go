// Package config loads the static YAML configuration and applies the
// environment variable overrides credentials and keys always take, per
// the fixed split: static operating parameters (timeouts, ports, usage
// limits) live in YAML; secrets are never written to disk and are read
// from the environment at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full static configuration tree. Every duration field is
// expressed in seconds in YAML for readability.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Agent    AgentConfig    `yaml:"agent"`
	Tenant   TenantConfig   `yaml:"tenant"`

	// Credentials is never populated from YAML; LoadEnv fills it from
	// the process environment after the YAML file is parsed.
	Credentials Credentials `yaml:"-"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	ShutdownWaitSec int `yaml:"shutdown_wait_sec"`
}

// SnapshotConfig controls the Graph Snapshot Engine's base directory and
// the graph query timeout budget.
type SnapshotConfig struct {
	BaseDir       string `yaml:"base_dir"`
	QueryTimeoutSec int  `yaml:"query_timeout_sec"`
}

// SandboxConfig controls the probe subprocess executor.
type SandboxConfig struct {
	TimeoutSec   int      `yaml:"timeout_sec"`
	GlobalSlots  int      `yaml:"global_slots"`
	AllowedHosts []string `yaml:"allowed_hosts"`
	ScratchDir   string   `yaml:"scratch_dir"`
	// ModuleDir is the absolute path to this module's source tree (the
	// directory containing go.mod). Probe programs are staged under it so
	// `go run` can resolve their internal/okta import. Empty defaults to
	// the working directory agentd was started from.
	ModuleDir string `yaml:"module_dir"`
}

// AgentConfig controls the ReAct loop's resource ceilings.
type AgentConfig struct {
	UsageLimit          int `yaml:"usage_limit"`
	LLMTimeoutSec       int `yaml:"llm_timeout_sec"`
	SessionWallClockSec int `yaml:"session_wall_clock_sec"`
	// BatchThreshold is the row count above which the terminal result is
	// streamed as METADATA + BATCH... + COMPLETE instead of a single
	// COMPLETE carrying every row inline.
	BatchThreshold int `yaml:"batch_threshold"`
}

// TenantConfig names the single tenant this process manages.
type TenantConfig struct {
	ID              string `yaml:"id"`
	MultiTenant     bool   `yaml:"multi_tenant"`
	RequiredBinding string `yaml:"required_binding"`
}

// Credentials holds secrets read exclusively from the environment. The
// subprocess executor propagates only UpstreamBaseURL and UpstreamToken
// to probe programs; the LLM provider key never leaves this process.
type Credentials struct {
	UpstreamBaseURL string
	UpstreamToken   string
	ModelProvider   string
	ModelAPIKey     string
	MongoURI        string
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ReadTimeoutSec: 30, ShutdownWaitSec: 10},
		Snapshot: SnapshotConfig{BaseDir: "./snapshots", QueryTimeoutSec: 60},
		Sandbox:  SandboxConfig{TimeoutSec: 180, GlobalSlots: 4, ScratchDir: "./sandbox-scratch"},
		Agent:    AgentConfig{UsageLimit: 25, LLMTimeoutSec: 60, SessionWallClockSec: 600, BatchThreshold: 1000},
		Tenant:   TenantConfig{MultiTenant: false},
	}
}

// Load reads a YAML file at path into a Default-seeded Config, then
// layers environment credentials on top. An empty path returns the
// defaults plus environment credentials only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.Credentials = LoadEnv()
	return cfg, nil
}

// LoadEnv reads every credential from its fixed environment variable
// name. Missing values are left empty; callers decide whether that is
// fatal (e.g. a missing LLM key) at the call site that needs it.
func LoadEnv() Credentials {
	return Credentials{
		UpstreamBaseURL: os.Getenv("OKTA_AI_AGENT_UPSTREAM_BASE_URL"),
		UpstreamToken:   os.Getenv("OKTA_AI_AGENT_UPSTREAM_TOKEN"),
		ModelProvider:   os.Getenv("OKTA_AI_AGENT_MODEL_PROVIDER"),
		ModelAPIKey:     os.Getenv("OKTA_AI_AGENT_MODEL_API_KEY"),
		MongoURI:        os.Getenv("OKTA_AI_AGENT_MONGO_URI"),
	}
}

// QueryTimeout returns the configured graph query budget as a Duration.
func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.Snapshot.QueryTimeoutSec) * time.Second
}

// SandboxTimeout returns the configured subprocess budget as a Duration.
func (c Config) SandboxTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// SessionWallClock returns the configured total session budget.
func (c Config) SessionWallClock() time.Duration {
	return time.Duration(c.Agent.SessionWallClockSec) * time.Second
}
