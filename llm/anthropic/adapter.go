// Package anthropic implements the llm.Adapter interface for Anthropic's
// Messages API via the official Go SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/quotewise/aigate/llm"
)

// Anthropic reports rate limits with a retry-after header; when the header
// is missing we fall back to this hint.
const defaultRetryAfter = 60 * time.Second

const defaultMaxTokens = 4096

// Adapter implements llm.Adapter for Anthropic. The credential is supplied
// per call by the gateway's key pool, so the SDK client is built per
// invocation.
type Adapter struct {
	model string // Default model to use if not specified in request
}

// NewAdapter creates an Anthropic adapter.
func NewAdapter(model string) *Adapter {
	return &Adapter{model: model}
}

// Provider implements llm.Adapter.
func (a *Adapter) Provider() string { return llm.ProviderAnthropic }

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

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  toMessageParams(req),
	}
	if system := req.SystemPrompt(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	message, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	if message.StopReason == anthropic.StopReasonRefusal {
		return nil, llm.NewContentBlockedError("anthropic refused the request", nil)
	}

	var text string
	for _, blockUnion := range message.Content {
		if block, ok := blockUnion.AsAny().(anthropic.TextBlock); ok {
			text += block.Text
		}
	}

	return &llm.Response{
		Content: text,
		Model:   string(message.Model),
		Usage: &llm.Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
		StopReason: string(message.StopReason),
	}, nil
}

// toMessageParams converts provider-neutral messages into SDK message
// params. The system prompt travels in a dedicated field, not the message
// list.
func toMessageParams(req *llm.Request) []anthropic.MessageParam {
	chat := req.ChatMessages()
	msgs := make([]anthropic.MessageParam, 0, len(chat))
	for _, msg := range chat {
		if msg.Role == llm.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
	}
	return msgs
}

// classifyError converts SDK errors into the llm error taxonomy.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.NewUnavailableError("anthropic request timed out", 0, err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return llm.NewRateLimitError("anthropic rate limit exceeded", retryAfterHint(apiErr), err)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, 529:
			// 529 is Anthropic's "overloaded" status.
			return llm.NewUnavailableError("anthropic temporarily unavailable", apiErr.StatusCode, err)
		default:
			return llm.NewUnexpectedError(
				fmt.Sprintf("anthropic API error (status %d)", apiErr.StatusCode), err)
		}
	}

	// Connection-level failures arrive as plain transport errors.
	return llm.NewUnavailableError("anthropic connection failed", 0, err)
}

// retryAfterHint extracts the retry-after header from a rate limit
// response, falling back to a fixed cooldown.
func retryAfterHint(apiErr *anthropic.Error) *time.Duration {
	retryAfter := defaultRetryAfter
	if apiErr.Response != nil {
		if header := apiErr.Response.Header.Get("Retry-After"); header != "" {
			if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
	}
	return &retryAfter
}
