package config

import (
	llmollama "github.com/quotewise/aigate/llm/ollama"
)

// NewOllamaAdapter creates an Ollama adapter from the configuration.
func NewOllamaAdapter(cfg *Config) (*llmollama.Adapter, error) {
	return llmollama.NewAdapter(cfg.Ollama.Host, cfg.Ollama.Model)
}
