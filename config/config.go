// Package config provides configuration loading and management for tsg-officer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete tsg-officer configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Rules      RulesConfig      `yaml:"rules"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Server     ServerConfig     `yaml:"server"`
}

// LLMConfig configures the language-model service.
type LLMConfig struct {
	// Provider selects the backend: mock, anthropic, openai, or ollama.
	Provider string `yaml:"provider"`
	// Model is the model identifier passed to the provider.
	Model string `yaml:"model,omitempty"`
	// Endpoint overrides the provider's default API endpoint.
	Endpoint string `yaml:"endpoint,omitempty"`
	// Timeout is the maximum time to wait for model responses.
	Timeout time.Duration `yaml:"timeout"`
}

// RulesConfig configures the rule repository.
type RulesConfig struct {
	// Dir is the root directory holding rule files.
	Dir string `yaml:"dir"`
	// Glob selects rule files under Dir (doublestar pattern).
	Glob string `yaml:"glob"`
	// Watch enables hot reload when rule files change.
	Watch bool `yaml:"watch"`
}

// CheckpointConfig configures case persistence.
type CheckpointConfig struct {
	// Backend is "nats" for durable JetStream KV storage or "memory" for
	// volatile local runs.
	Backend string `yaml:"backend"`
	// NATSURL is the NATS server URL for the nats backend.
	NATSURL string `yaml:"nats_url,omitempty"`
	// Bucket is the KV bucket name holding case checkpoints.
	Bucket string `yaml:"bucket,omitempty"`
}

// WorkflowConfig tunes engine behavior.
type WorkflowConfig struct {
	// ClarificationBound is the number of clarification replies tolerated
	// per question before the answer is bypassed.
	ClarificationBound int `yaml:"clarification_bound"`
	// MaxSynthesizedFollowups caps follow-up questions synthesized from
	// unresolved checklist items.
	MaxSynthesizedFollowups int `yaml:"max_synthesized_followups"`
	// DiagramCategories lists category labels that require a process
	// diagram regardless of the needs_flowchart intake field.
	DiagramCategories []string `yaml:"diagram_categories,omitempty"`
	// RequiredFields maps an application type to the intake fields it
	// requires beyond the submission text. Overrides the built-in table.
	RequiredFields map[string][]string `yaml:"required_fields,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address for the serve command.
	Addr string `yaml:"addr"`
	// MaxBodyBytes bounds answer request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "mock",
			Timeout:  60 * time.Second,
		},
		Rules: RulesConfig{
			Dir:  "data",
			Glob: "**/*.yaml",
		},
		Checkpoint: CheckpointConfig{
			Backend: "nats",
			NATSURL: "nats://localhost:4222",
			Bucket:  "TSG_CASES",
		},
		Workflow: WorkflowConfig{
			ClarificationBound:      3,
			MaxSynthesizedFollowups: 8,
		},
		Server: ServerConfig{
			Addr:         ":8088",
			MaxBodyBytes: 1 << 20,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "mock":
	case "anthropic", "openai", "ollama":
		if c.LLM.Model == "" {
			return fmt.Errorf("llm provider %q requires a model", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	switch c.Checkpoint.Backend {
	case "nats":
		if c.Checkpoint.NATSURL == "" {
			return fmt.Errorf("checkpoint backend nats requires nats_url")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown checkpoint backend: %q", c.Checkpoint.Backend)
	}
	if c.Workflow.ClarificationBound < 1 {
		return fmt.Errorf("clarification_bound must be at least 1, got %d", c.Workflow.ClarificationBound)
	}
	if c.Workflow.MaxSynthesizedFollowups < 1 {
		return fmt.Errorf("max_synthesized_followups must be at least 1, got %d", c.Workflow.MaxSynthesizedFollowups)
	}
	if c.Rules.Dir == "" || c.Rules.Glob == "" {
		return fmt.Errorf("rules dir and glob must be set")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, expanding ${VAR}
// references against the environment.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.Expand(string(data), os.Getenv)

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// Merge merges another config into this one, with the other taking precedence
// for any non-zero field.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.Endpoint != "" {
		c.LLM.Endpoint = other.LLM.Endpoint
	}
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}
	if other.Rules.Dir != "" {
		c.Rules.Dir = other.Rules.Dir
	}
	if other.Rules.Glob != "" {
		c.Rules.Glob = other.Rules.Glob
	}
	if other.Rules.Watch {
		c.Rules.Watch = true
	}
	if other.Checkpoint.Backend != "" {
		c.Checkpoint.Backend = other.Checkpoint.Backend
	}
	if other.Checkpoint.NATSURL != "" {
		c.Checkpoint.NATSURL = other.Checkpoint.NATSURL
	}
	if other.Checkpoint.Bucket != "" {
		c.Checkpoint.Bucket = other.Checkpoint.Bucket
	}
	if other.Workflow.ClarificationBound != 0 {
		c.Workflow.ClarificationBound = other.Workflow.ClarificationBound
	}
	if other.Workflow.MaxSynthesizedFollowups != 0 {
		c.Workflow.MaxSynthesizedFollowups = other.Workflow.MaxSynthesizedFollowups
	}
	if len(other.Workflow.DiagramCategories) > 0 {
		c.Workflow.DiagramCategories = other.Workflow.DiagramCategories
	}
	if len(other.Workflow.RequiredFields) > 0 {
		c.Workflow.RequiredFields = other.Workflow.RequiredFields
	}
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.MaxBodyBytes != 0 {
		c.Server.MaxBodyBytes = other.Server.MaxBodyBytes
	}
}
