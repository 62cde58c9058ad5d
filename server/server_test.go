package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quotewise/aigate/gateway"
	"github.com/quotewise/aigate/llm"
)

// stubAdapter answers every invoke with a fixed outcome.
type stubAdapter struct {
	provider string
	err      error
}

func (a *stubAdapter) Provider() string { return a.provider }

func (a *stubAdapter) Invoke(_ context.Context, _ string, _ *llm.Request) (*llm.Response, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &llm.Response{Content: "hello from " + a.provider, Model: "model-" + a.provider}, nil
}

func newTestServer(t *testing.T, adapters ...llm.Adapter) *Server {
	t.Helper()

	cfg := gateway.Config{
		AttemptTimeout: 100 * time.Millisecond,
		Retry: gateway.RetryPolicy{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond,
		},
		Breaker: gateway.BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  time.Minute,
		},
		RateLimitCooldown: 50 * time.Millisecond,
	}

	var keys []*gateway.APIKey
	for _, a := range adapters {
		keys = append(keys, &gateway.APIKey{
			Secret:   "secret-" + a.Provider(),
			Provider: a.Provider(),
			Label:    a.Provider() + "-1",
			Active:   true,
		})
	}

	gw := gateway.New(cfg, adapters, keys, zerolog.Nop())
	return New(gw, zerolog.Nop())
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsResult(t *testing.T) {
	s := newTestServer(t, &stubAdapter{provider: llm.ProviderGemini})

	rec := doRequest(s, http.MethodPost, "/v1/chat",
		`{"messages":[{"role":"user","content":"extract this quote"}],"feature":"quote_extraction"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result gateway.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Content != "hello from gemini" {
		t.Errorf("Unexpected content %q", result.Content)
	}
	if result.ProviderUsed != llm.ProviderGemini {
		t.Errorf("Expected gemini, got %q", result.ProviderUsed)
	}
}

func TestChatRejectsInvalidPayload(t *testing.T) {
	s := newTestServer(t, &stubAdapter{provider: llm.ProviderGemini})

	rec := doRequest(s, http.MethodPost, "/v1/chat", `{"messages":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", rec.Code)
	}

	rec = doRequest(s, http.MethodPost, "/v1/chat", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing messages, got %d", rec.Code)
	}
}

func TestChatMapsAllProvidersFailedTo503(t *testing.T) {
	s := newTestServer(t,
		&stubAdapter{provider: llm.ProviderGemini, err: llm.NewUnavailableError("down", 503, nil)},
		&stubAdapter{provider: llm.ProviderOpenRouter, err: llm.NewUnavailableError("down", 502, nil)},
	)

	rec := doRequest(s, http.MethodPost, "/v1/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected a Retry-After header on a retryable failure")
	}

	var gwErr gateway.GatewayError
	if err := json.Unmarshal(rec.Body.Bytes(), &gwErr); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if gwErr.Code != "all_providers_failed" {
		t.Errorf("Unexpected error code %q", gwErr.Code)
	}
	if len(gwErr.PerProviderErrors) != 2 {
		t.Errorf("Expected 2 per-provider entries, got %v", gwErr.PerProviderErrors)
	}
	if !gwErr.Retryable {
		t.Error("Expected the failure to be marked retryable")
	}
}

func TestChatMapsUnknownProviderTo400(t *testing.T) {
	s := newTestServer(t, &stubAdapter{provider: llm.ProviderGemini})

	rec := doRequest(s, http.MethodPost, "/v1/chat",
		`{"messages":[{"role":"user","content":"hi"}],"preferred_provider":"bedrock","allow_fallback":false}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown provider without fallback, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, &stubAdapter{provider: llm.ProviderGemini})

	doRequest(s, http.MethodPost, "/v1/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`)

	rec := doRequest(s, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var stats gateway.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.TotalRequests != 1 {
		t.Errorf("Expected 1 total request, got %d", stats.TotalRequests)
	}
	if len(stats.Breakers) != 1 {
		t.Errorf("Expected 1 breaker status, got %d", len(stats.Breakers))
	}
}

func TestHealthzReportsProviderStatus(t *testing.T) {
	s := newTestServer(t,
		&stubAdapter{provider: llm.ProviderGemini},
		&stubAdapter{provider: llm.ProviderAnthropic, err: llm.NewUnavailableError("down", 503, nil)},
	)

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Status    string                            `json:"status"`
		Providers map[string]gateway.ProviderHealth `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode health body: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("Expected degraded status, got %q", body.Status)
	}
	if !body.Providers[llm.ProviderGemini].Available {
		t.Error("Expected gemini to be available")
	}
	if body.Providers[llm.ProviderAnthropic].Available {
		t.Error("Expected anthropic to be unavailable")
	}
}
