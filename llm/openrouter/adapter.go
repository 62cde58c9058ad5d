// Package openrouter implements the llm.Adapter interface for OpenRouter,
// which speaks the OpenAI chat completion wire protocol.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/quotewise/aigate/llm"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is OpenRouter's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouter doesn't reliably expose retry-after headers through the SDK;
// rate limits fall back to this hint.
const defaultRetryAfter = 60 * time.Second

// Adapter implements llm.Adapter for OpenRouter. The credential is supplied
// per call by the gateway's key pool, so the underlying client is built per
// invocation.
type Adapter struct {
	baseURL string
	model   string // Default model to use if not specified in request
}

// NewAdapter creates an OpenRouter adapter. If baseURL is empty, the public
// OpenRouter endpoint is used.
func NewAdapter(baseURL, model string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{baseURL: baseURL, model: model}
}

// Provider implements llm.Adapter.
func (a *Adapter) Provider() string { return llm.ProviderOpenRouter }

// Invoke implements llm.Adapter.
func (a *Adapter) Invoke(ctx context.Context, apiKey string, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, llm.NewUnexpectedError("request is required", nil)
	}
	if apiKey == "" {
		return nil, llm.NewUnexpectedError("api key is required", nil)
	}

	model := req.Model
	if model == "" {
		model = a.model
	}
	if model == "" {
		return nil, llm.NewUnexpectedError("model is required", nil)
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = a.baseURL
	client := openai.NewClientWithConfig(config)

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toChatMessages(req),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	chatResp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, llm.NewUnexpectedError("no choices in response", nil)
	}

	choice := chatResp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, llm.NewContentBlockedError("openrouter content filter triggered", nil)
	}

	return &llm.Response{
		Content: choice.Message.Content,
		Model:   chatResp.Model,
		Usage: &llm.Usage{
			InputTokens:  int64(chatResp.Usage.PromptTokens),
			OutputTokens: int64(chatResp.Usage.CompletionTokens),
		},
		StopReason: string(choice.FinishReason),
	}, nil
}

// toChatMessages converts a provider-neutral request into OpenAI wire
// messages, prepending the system prompt when present.
func toChatMessages(req *llm.Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if system := req.SystemPrompt(); system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range req.ChatMessages() {
		role := openai.ChatMessageRoleUser
		if msg.Role == llm.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return msgs
}

// classifyError converts transport errors into the llm error taxonomy.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.NewUnavailableError("openrouter request timed out", 0, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			retryAfter := defaultRetryAfter
			return llm.NewRateLimitError(
				fmt.Sprintf("openrouter rate limit: %s", apiErr.Message), &retryAfter, err)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return llm.NewUnavailableError(
				fmt.Sprintf("openrouter server error: %s", apiErr.Message), apiErr.HTTPStatusCode, err)
		default:
			return llm.NewUnexpectedError(
				fmt.Sprintf("openrouter API error: %s", apiErr.Message), err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= 500 {
			return llm.NewUnavailableError("openrouter unavailable", reqErr.HTTPStatusCode, err)
		}
		return llm.NewUnexpectedError("openrouter request failed", err)
	}

	// Connection-level failures arrive as plain transport errors.
	return llm.NewUnavailableError("openrouter connection failed", 0, err)
}
