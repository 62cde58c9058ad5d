package llm

import (
	"context"
)

// Provider names understood by the gateway.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
)

// ProviderOrder is the fixed enumeration order used when resolving the
// fallback sequence for a call. The preferred provider, when given, is moved
// to the front; the rest keep this order.
var ProviderOrder = []string{
	ProviderGemini,
	ProviderOpenRouter,
	ProviderAnthropic,
	ProviderOllama,
}

// Adapter translates provider-neutral requests into a specific provider's
// wire protocol. Implementations classify transport failures into *Error
// values so the orchestrator never has to inspect provider-specific errors.
// New providers are added by implementing this interface only.
type Adapter interface {
	// Provider returns the provider name this adapter serves.
	Provider() string

	// Invoke sends a request using the given credential and returns a
	// normalized response. On failure it returns a classified *Error.
	// The context carries the per-attempt timeout; implementations must
	// respect cancellation.
	Invoke(ctx context.Context, apiKey string, req *Request) (*Response, error)
}
