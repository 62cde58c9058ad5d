package config

import (
	llmgemini "github.com/quotewise/aigate/llm/gemini"
)

// NewGeminiAdapter creates a Gemini adapter from the configuration.
func NewGeminiAdapter(cfg *Config) *llmgemini.Adapter {
	return llmgemini.NewAdapter(cfg.Gemini.BaseURL, cfg.Gemini.Model)
}
