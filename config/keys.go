package config

import (
	"fmt"
	"os"

	"github.com/quotewise/aigate/gateway"
	"github.com/quotewise/aigate/llm"
)

// Environment key discovery convention: PROVIDER_API_KEY holds the first
// key, PROVIDER_API_KEY_2 through PROVIDER_API_KEY_9 hold additional keys.
const maxEnvKeys = 9

// DiscoverKeys assembles the credential pool: keys from the config file
// first, then keys discovered from the environment by naming convention.
// Duplicate secrets are collapsed. Ollama, when enabled, contributes a
// single synthetic credential so the pool can track its usage like any
// other provider.
func DiscoverKeys(cfg *Config) []*gateway.APIKey {
	var keys []*gateway.APIKey

	keys = append(keys, providerKeys(llm.ProviderGemini, "GEMINI_API_KEY", cfg.Gemini.APIKeys)...)
	keys = append(keys, providerKeys(llm.ProviderOpenRouter, "OPENROUTER_API_KEY", cfg.OpenRouter.APIKeys)...)
	keys = append(keys, providerKeys(llm.ProviderAnthropic, "ANTHROPIC_API_KEY", cfg.Anthropic.APIKeys)...)

	if cfg.Ollama.Enabled {
		keys = append(keys, &gateway.APIKey{
			Secret:   "local",
			Provider: llm.ProviderOllama,
			Label:    "ollama-local",
			Active:   true,
		})
	}

	return keys
}

// providerKeys merges file keys with environment keys for one provider.
func providerKeys(provider, envName string, fileKeys []string) []*gateway.APIKey {
	secrets := make([]string, 0, len(fileKeys)+maxEnvKeys)
	seen := make(map[string]bool)

	add := func(secret string) {
		if secret == "" || seen[secret] {
			return
		}
		seen[secret] = true
		secrets = append(secrets, secret)
	}

	for _, secret := range fileKeys {
		add(secret)
	}
	add(os.Getenv(envName))
	for i := 2; i <= maxEnvKeys; i++ {
		add(os.Getenv(fmt.Sprintf("%s_%d", envName, i)))
	}

	keys := make([]*gateway.APIKey, 0, len(secrets))
	for i, secret := range secrets {
		keys = append(keys, &gateway.APIKey{
			Secret:   secret,
			Provider: provider,
			Label:    fmt.Sprintf("%s-%d", provider, i+1),
			Active:   true,
		})
	}
	return keys
}
