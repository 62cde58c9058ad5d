// Package config loads the daemon configuration: a YAML file merged over
// embedded defaults, with environment variables taking precedence for
// credentials and host overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/quotewise/aigate/gateway"
)

// ServerConfig represents the HTTP listener settings.
type ServerConfig struct {
	Listen string `yaml:"listen,omitempty"` // Listen address (default: ":8080")
}

// RetryConfig represents the per-provider retry budget.
type RetryConfig struct {
	MaxAttempts    int   `yaml:"max_attempts,omitempty"`    // Attempts per provider (default: 2)
	BaseDelayMs    int   `yaml:"base_delay_ms,omitempty"`   // First backoff delay in milliseconds (default: 500)
	MaxDelayMs     int   `yaml:"max_delay_ms,omitempty"`    // Backoff cap in milliseconds (default: 8000)
	Jitter         *bool `yaml:"jitter,omitempty"`          // Randomize delays (default: true)
}

// BreakerConfig represents the per-provider circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold,omitempty"` // Consecutive failures before opening (default: 5)
	RecoverySeconds  int `yaml:"recovery_seconds,omitempty"`  // Open window before a half-open trial (default: 300)
}

// GatewayConfig represents the orchestration settings.
type GatewayConfig struct {
	AttemptTimeoutSeconds    int           `yaml:"attempt_timeout_seconds,omitempty"`     // Timeout per provider call (default: 30)
	RateLimitCooldownSeconds int           `yaml:"rate_limit_cooldown_seconds,omitempty"` // Key cooldown after a 429 (default: 60)
	Retry                    RetryConfig   `yaml:"retry,omitempty"`
	Breaker                  BreakerConfig `yaml:"breaker,omitempty"`
}

// GeminiConfig represents configuration for the Gemini provider.
type GeminiConfig struct {
	APIKeys []string `yaml:"api_keys,omitempty"` // Keys rotated by the pool; env keys are appended
	Model   string   `yaml:"model,omitempty"`    // Default model name
	BaseURL string   `yaml:"base_url,omitempty"` // Custom base URL (default: official API)
}

// OpenRouterConfig represents configuration for the OpenRouter provider.
type OpenRouterConfig struct {
	APIKeys []string `yaml:"api_keys,omitempty"` // Keys rotated by the pool; env keys are appended
	Model   string   `yaml:"model,omitempty"`    // Default model name
	BaseURL string   `yaml:"base_url,omitempty"` // Custom base URL (default: official API)
}

// AnthropicConfig represents configuration for the Anthropic provider.
type AnthropicConfig struct {
	APIKeys []string `yaml:"api_keys,omitempty"` // Keys rotated by the pool; env keys are appended
	Model   string   `yaml:"model,omitempty"`    // Default model name
}

// OllamaConfig represents configuration for the Ollama provider.
// Ollama is the local fallback: it is only enabled explicitly or when
// OLLAMA_HOST is set.
type OllamaConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`  // Ollama host (default: "http://localhost:11434")
	Model   string `yaml:"model,omitempty"` // Default model name
}

// ProbeConfig represents the background health prober settings.
type ProbeConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"` // Disable the prober (enabled by default)
	Schedule string `yaml:"schedule,omitempty"` // Cron spec (default: "@every 5m")
}

// Config is the complete daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Gateway GatewayConfig `yaml:"gateway,omitempty"`

	Gemini     GeminiConfig     `yaml:"gemini,omitempty"`
	OpenRouter OpenRouterConfig `yaml:"openrouter,omitempty"`
	Anthropic  AnthropicConfig  `yaml:"anthropic,omitempty"`
	Ollama     OllamaConfig     `yaml:"ollama,omitempty"`

	Probe ProbeConfig `yaml:"probe,omitempty"`
}

// GetConfigPath returns the default config file path.
// Can be overridden via AIGATE_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("AIGATE_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.aigate/config.yaml"
	}
	return filepath.Join(homeDir, ".aigate", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// defaults returns the documented default configuration.
func defaults() Config {
	jitter := true
	return Config{
		Server: ServerConfig{Listen: ":8080"},
		Gateway: GatewayConfig{
			AttemptTimeoutSeconds:    30,
			RateLimitCooldownSeconds: 60,
			Retry: RetryConfig{
				MaxAttempts: 2,
				BaseDelayMs: 500,
				MaxDelayMs:  8000,
				Jitter:      &jitter,
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				RecoverySeconds:  300,
			},
		},
		Gemini:     GeminiConfig{Model: "gemini-2.0-flash"},
		OpenRouter: OpenRouterConfig{Model: "meta-llama/llama-3.3-70b-instruct"},
		Anthropic:  AnthropicConfig{Model: "claude-sonnet-4-20250514"},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llama3.2:3b",
		},
		Probe: ProbeConfig{Schedule: "@every 5m"},
	}
}

// Load loads the configuration: file config (if present) merged over
// defaults, then environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		configYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(configYAML, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}

		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides applies the environment variables that take precedence
// over file configuration.
func applyEnvOverrides(cfg *Config) {
	if listen := os.Getenv("AIGATE_LISTEN"); listen != "" {
		cfg.Server.Listen = listen
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.Ollama.Host = host
		cfg.Ollama.Enabled = true
	}
}

// GatewayConfig converts the YAML settings into the runtime gateway
// configuration.
func (c *Config) GatewayConfig() gateway.Config {
	jitter := true
	if c.Gateway.Retry.Jitter != nil {
		jitter = *c.Gateway.Retry.Jitter
	}
	return gateway.Config{
		AttemptTimeout:    time.Duration(c.Gateway.AttemptTimeoutSeconds) * time.Second,
		RateLimitCooldown: time.Duration(c.Gateway.RateLimitCooldownSeconds) * time.Second,
		Retry: gateway.RetryPolicy{
			MaxAttempts: c.Gateway.Retry.MaxAttempts,
			BaseDelay:   time.Duration(c.Gateway.Retry.BaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(c.Gateway.Retry.MaxDelayMs) * time.Millisecond,
			Jitter:      jitter,
		},
		Breaker: gateway.BreakerConfig{
			FailureThreshold: c.Gateway.Breaker.FailureThreshold,
			RecoveryTimeout:  time.Duration(c.Gateway.Breaker.RecoverySeconds) * time.Second,
		},
	}
}
