package config

import (
	llmopenrouter "github.com/quotewise/aigate/llm/openrouter"
)

// NewOpenRouterAdapter creates an OpenRouter adapter from the configuration.
func NewOpenRouterAdapter(cfg *Config) *llmopenrouter.Adapter {
	return llmopenrouter.NewAdapter(cfg.OpenRouter.BaseURL, cfg.OpenRouter.Model)
}
