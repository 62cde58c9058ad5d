package openrouter

import (
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quotewise/aigate/llm"
)

func TestToChatMessagesPrependsSystemPrompt(t *testing.T) {
	req := &llm.Request{
		System: "be terse",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
			{Role: llm.RoleUser, Content: "summarize"},
		},
	}

	msgs := toChatMessages(req)
	if len(msgs) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem || msgs[0].Content != "be terse" {
		t.Errorf("Expected system prompt first, got %+v", msgs[0])
	}
	if msgs[2].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("Expected assistant role preserved, got %q", msgs[2].Role)
	}
}

func TestClassifyErrorMapsStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   llm.ErrorKind
	}{
		{"rate limit", 429, llm.KindRateLimited},
		{"server error", 500, llm.KindUnavailable},
		{"bad gateway", 502, llm.KindUnavailable},
		{"bad request", 400, llm.KindUnexpected},
		{"unauthorized", 401, llm.KindUnexpected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyError(&openai.APIError{HTTPStatusCode: tc.status, Message: "boom"})
			if llm.KindOf(err) != tc.kind {
				t.Errorf("Status %d: expected %v, got %v", tc.status, tc.kind, llm.KindOf(err))
			}
		})
	}
}

func TestClassifyErrorTreatsTransportFailureAsUnavailable(t *testing.T) {
	err := classifyError(errors.New("dial tcp: connection refused"))
	if llm.KindOf(err) != llm.KindUnavailable {
		t.Errorf("Expected unavailable, got %v", llm.KindOf(err))
	}
	if !llm.IsRetryable(err) {
		t.Error("Expected transport failures to be retryable")
	}
}
