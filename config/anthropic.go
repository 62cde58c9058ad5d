package config

import (
	llmanthropic "github.com/quotewise/aigate/llm/anthropic"
)

// NewAnthropicAdapter creates an Anthropic adapter from the configuration.
func NewAnthropicAdapter(cfg *Config) *llmanthropic.Adapter {
	return llmanthropic.NewAdapter(cfg.Anthropic.Model)
}
