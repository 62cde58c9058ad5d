package llm

import (
	"errors"
	"time"
)

// Error represents a provider-neutral LLM error.
type Error struct {
	Kind        ErrorKind
	Message     string
	Retryable   bool
	RetryAfter  *time.Duration
	StatusCode  int
	ProviderErr error // Original provider-specific error
}

// ErrorKind represents the category of error.
type ErrorKind string

const (
	// KindRateLimited is a provider 429. Retryable after a cooldown.
	KindRateLimited ErrorKind = "rate_limited"
	// KindUnavailable covers transient 5xx, connect failures and timeouts.
	KindUnavailable ErrorKind = "unavailable"
	// KindContentBlocked is a provider policy rejection. Never retried.
	KindContentBlocked ErrorKind = "content_blocked"
	// KindUnexpected is anything else. Never retried, trips the breaker.
	KindUnexpected ErrorKind = "unexpected"
	// KindResourceExhausted means no usable key was available. It is not a
	// provider fault and must not trip the breaker.
	KindResourceExhausted ErrorKind = "resource_exhausted"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// KindOf returns the error kind, or KindUnexpected for unclassified errors.
func KindOf(err error) ErrorKind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return KindUnexpected
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// RetryAfterHint extracts the retry-after duration from an error, if any.
func RetryAfterHint(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(message string, retryAfter *time.Duration, providerErr error) *Error {
	return &Error{
		Kind:        KindRateLimited,
		Message:     message,
		Retryable:   true,
		RetryAfter:  retryAfter,
		StatusCode:  429,
		ProviderErr: providerErr,
	}
}

// NewUnavailableError creates a new transient availability error.
func NewUnavailableError(message string, statusCode int, providerErr error) *Error {
	return &Error{
		Kind:        KindUnavailable,
		Message:     message,
		Retryable:   true,
		StatusCode:  statusCode,
		ProviderErr: providerErr,
	}
}

// NewContentBlockedError creates a new policy rejection error.
func NewContentBlockedError(message string, providerErr error) *Error {
	return &Error{
		Kind:        KindContentBlocked,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewUnexpectedError creates a new unexpected (non-retryable) error.
func NewUnexpectedError(message string, providerErr error) *Error {
	return &Error{
		Kind:        KindUnexpected,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewResourceExhaustedError creates an error signaling that no usable key
// was available for a provider.
func NewResourceExhaustedError(provider string) *Error {
	return &Error{
		Kind:      KindResourceExhausted,
		Message:   "no keys available for provider " + provider,
		Retryable: false,
	}
}
