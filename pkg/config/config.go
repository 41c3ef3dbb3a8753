// Package config loads securebot configuration from viper, combining
// defaults, ~/.securebot/config.yaml, and SECUREBOT_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// OllamaConfig configures the local-model collaborator
type OllamaConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	ResponseModel string        `mapstructure:"response_model"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ClaudeConfig configures the remote-model collaborator used for skill generation
type ClaudeConfig struct {
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// ClassifierConfig configures the zero-shot intent classifier collaborator
type ClassifierConfig struct {
	URL       string  `mapstructure:"url"`
	Threshold float64 `mapstructure:"threshold"`
}

// CollaboratorConfig configures an external HTTP collaborator endpoint
type CollaboratorConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SandboxConfig configures the privilege-dropped script executor
type SandboxConfig struct {
	// User is the lower-privilege OS identity scripts run as via sudo -u.
	User string `mapstructure:"user"`
	// DefaultTimeout bounds script wall-clock time when a skill sets none.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	// BannedCommands are glob patterns a generated script must not start with.
	BannedCommands []string `mapstructure:"banned_commands"`
}

// ServerConfig configures the gateway HTTP server
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	SamplerType  string  `mapstructure:"sampler_type"`
	SamplerRatio float64 `mapstructure:"sampler_ratio"`
}

// Config is the full securebot configuration
type Config struct {
	SkillsDir string `mapstructure:"skills_dir"`
	AuditDB   string `mapstructure:"audit_db"`

	Ollama     OllamaConfig       `mapstructure:"ollama"`
	Claude     ClaudeConfig       `mapstructure:"claude"`
	Classifier ClassifierConfig   `mapstructure:"classifier"`
	Search     CollaboratorConfig `mapstructure:"search"`
	RAG        CollaboratorConfig `mapstructure:"rag"`
	Memory     CollaboratorConfig `mapstructure:"memory"`
	Sandbox    SandboxConfig      `mapstructure:"sandbox"`
	Server     ServerConfig       `mapstructure:"server"`
	Tracing    TracingConfig      `mapstructure:"tracing"`

	// RedactKeywords are operator-configured words the privacy sanitizer
	// removes before any text leaves the process to a remote model.
	RedactKeywords []string `mapstructure:"redact_keywords"`

	// MaxSearchResults caps search results folded into prompts.
	MaxSearchResults int `mapstructure:"max_search_results"`

	// MinMatchScore is the legacy scoring-matcher threshold. The substring
	// matcher does not consult it; it is kept configurable for the scoring
	// matcher variant rather than re-derived.
	MinMatchScore int `mapstructure:"min_match_score"`
}

// SetDefaults registers configuration defaults with viper.
// Call once before Load, typically from cmd init.
func SetDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	viper.SetDefault("skills_dir", filepath.Join(home, ".securebot", "skills"))
	viper.SetDefault("audit_db", filepath.Join(home, ".securebot", "audit.db"))

	viper.SetDefault("ollama.base_url", "http://localhost:11434")
	viper.SetDefault("ollama.model", "phi4-mini:3.8b")
	viper.SetDefault("ollama.response_model", "llama3.2:3b")
	viper.SetDefault("ollama.timeout", 120*time.Second)

	viper.SetDefault("claude.model", "claude-sonnet-4-20250514")
	viper.SetDefault("claude.max_tokens", 4000)

	viper.SetDefault("classifier.url", "http://localhost:8300")
	viper.SetDefault("classifier.threshold", 0.3)

	viper.SetDefault("search.url", "http://localhost:8200")
	viper.SetDefault("search.timeout", 30*time.Second)
	viper.SetDefault("rag.url", "http://localhost:8400")
	viper.SetDefault("rag.timeout", 15*time.Second)
	viper.SetDefault("memory.url", "http://localhost:8100")
	viper.SetDefault("memory.timeout", 10*time.Second)

	viper.SetDefault("sandbox.user", "securebot-scripts")
	viper.SetDefault("sandbox.default_timeout", 10*time.Second)
	viper.SetDefault("sandbox.banned_commands", []string{})

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sampler_type", "always")
	viper.SetDefault("tracing.sampler_ratio", 0.1)

	viper.SetDefault("redact_keywords", []string{})
	viper.SetDefault("max_search_results", 3)
	viper.SetDefault("min_match_score", 5)
}

// Load unmarshals the current viper state into a Config
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}
	return &cfg, nil
}

// Validate checks the configuration for values that would prevent startup
func (c *Config) Validate() error {
	if c.SkillsDir == "" {
		return errors.New("skills_dir cannot be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Classifier.Threshold <= 0 || c.Classifier.Threshold >= 1 {
		return errors.Errorf("classifier.threshold must be in (0, 1), got %f", c.Classifier.Threshold)
	}
	return nil
}
