// Package gemini implements the llm.Adapter interface for Google's Gemini
// generateContent API using a plain HTTP wire client.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quotewise/aigate/llm"
)

// DefaultBaseURL is the public Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini 429 responses carry a RetryInfo detail we do not parse; rate
// limits fall back to this hint.
const defaultRetryAfter = 60 * time.Second

// Adapter implements llm.Adapter for Gemini. The credential is supplied per
// call by the gateway's key pool.
type Adapter struct {
	baseURL    string
	model      string // Default model to use if not specified in request
	httpClient *http.Client
}

// NewAdapter creates a Gemini adapter. If baseURL is empty, the public
// endpoint is used. Request timeouts are enforced by the caller's context,
// not by the HTTP client.
func NewAdapter(baseURL, model string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{},
	}
}

// Provider implements llm.Adapter.
func (a *Adapter) Provider() string { return llm.ProviderGemini }

// Wire types for the generateContent endpoint.

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int64    `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

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

	body, err := json.Marshal(a.toGenerateRequest(req))
	if err != nil {
		return nil, llm.NewUnexpectedError("failed to encode request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewUnexpectedError("failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, llm.NewUnavailableError("gemini request timed out", 0, err)
		}
		return nil, llm.NewUnavailableError("gemini connection failed", 0, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewUnavailableError("gemini response read failed", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, payload)
	}

	var genResp generateResponse
	if err := json.Unmarshal(payload, &genResp); err != nil {
		return nil, llm.NewUnexpectedError("gemini response decode failed", err)
	}
	if len(genResp.Candidates) == 0 {
		// An empty candidate list with a 200 means everything was
		// filtered out by safety settings.
		return nil, llm.NewContentBlockedError("gemini returned no candidates", nil)
	}

	candidate := genResp.Candidates[0]
	if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "PROHIBITED_CONTENT" {
		return nil, llm.NewContentBlockedError("gemini safety filter triggered", nil)
	}

	var text string
	for _, p := range candidate.Content.Parts {
		text += p.Text
	}

	return &llm.Response{
		Content: text,
		Model:   model,
		Usage: &llm.Usage{
			InputTokens:  genResp.UsageMetadata.PromptTokenCount,
			OutputTokens: genResp.UsageMetadata.CandidatesTokenCount,
		},
		StopReason: candidate.FinishReason,
	}, nil
}

// toGenerateRequest converts a provider-neutral request into the Gemini
// wire format. Gemini uses "model" for the assistant role and carries the
// system prompt in a dedicated field.
func (a *Adapter) toGenerateRequest(req *llm.Request) generateRequest {
	genReq := generateRequest{}

	if system := req.SystemPrompt(); system != "" {
		genReq.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}

	for _, msg := range req.ChatMessages() {
		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}
		genReq.Contents = append(genReq.Contents, content{
			Role:  role,
			Parts: []part{{Text: msg.Content}},
		})
	}

	if req.Temperature != nil || req.MaxTokens > 0 {
		genReq.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}
	return genReq
}

// classifyStatus maps a non-200 response into the llm error taxonomy.
func classifyStatus(statusCode int, payload []byte) error {
	message := "gemini API error"
	var apiErr apiError
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = fmt.Sprintf("gemini API error: %s", apiErr.Error.Message)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		return llm.NewRateLimitError(message, &retryAfter, nil)
	case statusCode >= 500:
		return llm.NewUnavailableError(message, statusCode, nil)
	default:
		return llm.NewUnexpectedError(fmt.Sprintf("%s (status %d)", message, statusCode), nil)
	}
}
