// Package ollama implements the llm.Adapter interface for a local or
// self-hosted Ollama instance.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/quotewise/aigate/llm"
)

// Adapter implements llm.Adapter for Ollama. Ollama is unauthenticated, so
// the key pool credential passed to Invoke is ignored.
type Adapter struct {
	client *api.Client
	model  string // Default model to use if not specified in request
}

// NewAdapter creates an Ollama adapter.
// If host is empty, it will use the default from environment (OLLAMA_HOST or http://localhost:11434).
func NewAdapter(host, model string) (*Adapter, error) {
	var client *api.Client
	var err error

	if host != "" {
		baseURL, err := parseHost(host)
		if err != nil {
			return nil, fmt.Errorf("invalid host: %w", err)
		}
		client = api.NewClient(baseURL, &http.Client{})
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	return &Adapter{client: client, model: model}, nil
}

// parseHost parses a host string into a URL.
func parseHost(host string) (*url.URL, error) {
	// If host doesn't have a scheme, add http://
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Provider implements llm.Adapter.
func (a *Adapter) Provider() string { return llm.ProviderOllama }

// Invoke implements llm.Adapter. The apiKey argument is unused; local
// models need no credential, but the pool still tracks usage per key.
func (a *Adapter) Invoke(ctx context.Context, _ string, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, llm.NewUnexpectedError("request is required", nil)
	}

	model := req.Model
	if model == "" {
		model = a.model
	}
	if model == "" {
		return nil, llm.NewUnexpectedError("model is required", nil)
	}

	msgs := toOllamaMessages(req)
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   new(bool), // false for non-streaming
		Options:  make(map[string]interface{}),
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}

	var chatResp api.ChatResponse
	err := a.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		return nil, classifyError(err)
	}

	usage := &llm.Usage{}
	if chatResp.PromptEvalCount > 0 {
		usage.InputTokens = int64(chatResp.PromptEvalCount)
	}
	if chatResp.EvalCount > 0 {
		usage.OutputTokens = int64(chatResp.EvalCount)
	}

	stopReason := "end_turn"
	if chatResp.DoneReason != "" {
		stopReason = chatResp.DoneReason
	}

	return &llm.Response{
		Content:    chatResp.Message.Content,
		Model:      model,
		Usage:      usage,
		StopReason: stopReason,
	}, nil
}

// toOllamaMessages converts a provider-neutral request into Ollama wire
// messages, prepending the system prompt when present.
func toOllamaMessages(req *llm.Request) []api.Message {
	msgs := make([]api.Message, 0, len(req.Messages)+1)
	if system := req.SystemPrompt(); system != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: system})
	}
	for _, msg := range req.ChatMessages() {
		msgs = append(msgs, api.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return msgs
}

// classifyError converts client errors into the llm error taxonomy. A local
// Ollama that is down or missing a model is an availability problem, not a
// caller bug.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.NewUnavailableError("ollama request timed out", 0, err)
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return llm.NewRateLimitError("ollama rate limit exceeded", nil, err)
		case statusErr.StatusCode >= 500, statusErr.StatusCode == http.StatusNotFound:
			return llm.NewUnavailableError(
				fmt.Sprintf("ollama unavailable: %s", statusErr.ErrorMessage), statusErr.StatusCode, err)
		default:
			return llm.NewUnexpectedError(
				fmt.Sprintf("ollama API error: %s", statusErr.ErrorMessage), err)
		}
	}

	// Connection refused means the daemon isn't running.
	return llm.NewUnavailableError("ollama connection failed", 0, err)
}
