package llm

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message represents a single message in a conversation.
// This is provider-neutral and can represent user, assistant, or system messages.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Request represents a complete chat completion request.
// Messages are ordered; System, MaxTokens and Temperature are optional.
type Request struct {
	Model       string
	Messages    []Message
	System      string
	MaxTokens   int64
	Temperature *float64 // Optional temperature override
}

// Response represents a complete chat completion response from a provider.
type Response struct {
	Content    string
	Model      string
	Usage      *Usage
	StopReason string
}

// Usage represents token usage information from a provider response.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// SystemPrompt extracts the effective system prompt for a request.
// An explicit System field wins; otherwise the first system-role message is used.
func (r *Request) SystemPrompt() string {
	if r.System != "" {
		return r.System
	}
	for _, msg := range r.Messages {
		if msg.Role == RoleSystem {
			return msg.Content
		}
	}
	return ""
}

// ChatMessages returns the non-system messages of a request, preserving order.
func (r *Request) ChatMessages() []Message {
	msgs := make([]Message, 0, len(r.Messages))
	for _, msg := range r.Messages {
		if msg.Role == RoleSystem {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
