package config

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/quotewise/aigate/gateway"
	"github.com/quotewise/aigate/llm"
)

// BuildAdapters constructs an adapter for every provider that has at least
// one usable credential in the pool. A provider without keys is simply left
// out of the rotation; it is not an error.
func BuildAdapters(cfg *Config, keys []*gateway.APIKey) ([]llm.Adapter, error) {
	hasKeys := func(provider string) bool {
		return lo.SomeBy(keys, func(k *gateway.APIKey) bool {
			return k.Provider == provider
		})
	}

	var adapters []llm.Adapter
	if hasKeys(llm.ProviderGemini) {
		adapters = append(adapters, NewGeminiAdapter(cfg))
	}
	if hasKeys(llm.ProviderOpenRouter) {
		adapters = append(adapters, NewOpenRouterAdapter(cfg))
	}
	if hasKeys(llm.ProviderAnthropic) {
		adapters = append(adapters, NewAnthropicAdapter(cfg))
	}
	if hasKeys(llm.ProviderOllama) {
		ollamaAdapter, err := NewOllamaAdapter(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama adapter: %w", err)
		}
		adapters = append(adapters, ollamaAdapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no providers configured: set GEMINI_API_KEY, OPENROUTER_API_KEY, ANTHROPIC_API_KEY, or OLLAMA_HOST")
	}
	return adapters, nil
}
