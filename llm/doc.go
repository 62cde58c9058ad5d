// Package llm provides a provider-neutral abstraction layer for Large Language Model (LLM) APIs.
//
// This package defines the common types, error taxonomy, and adapter interface
// that allow the gateway to drive multiple LLM providers (Gemini, OpenRouter,
// Anthropic, Ollama) without being coupled to any specific provider's SDK or
// wire protocol.
//
// # Core Concepts
//
//  1. Messages: the Message type represents a conversation message with a role
//     (user, assistant, system) and text content. Requests carry an ordered
//     message list plus optional temperature and token limits.
//
//  2. Adapter Interface: the Adapter interface has a single Invoke operation.
//     Implementations handle request/response translation and must classify
//     transport failures into the Error taxonomy below.
//
//  3. Errors: the Error type carries an ErrorKind, a retryable flag, and an
//     optional retry-after hint. The gateway's retry and circuit-breaker
//     decisions are driven entirely by the kind, never by provider-specific
//     error types.
//
// # Error Taxonomy
//
//   - rate_limited: provider 429; retryable after a cooldown.
//   - unavailable: transient 5xx, connect failure, or timeout; retryable.
//   - content_blocked: policy rejection; non-retryable.
//   - unexpected: anything else; non-retryable, trips the circuit breaker.
//   - resource_exhausted: no usable key; not a provider fault.
//
// # Extension Points
//
// To add a new LLM provider:
//  1. Implement the Adapter interface
//  2. Translate between provider-specific types and llm package types
//  3. Classify provider-specific errors into llm.Error kinds
//  4. Register the adapter with the gateway and add it to ProviderOrder
package llm
