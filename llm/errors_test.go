package llm

import (
	"errors"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	if KindOf(NewRateLimitError("rate limit", nil, nil)) != KindRateLimited {
		t.Error("Expected rate_limited kind")
	}
	if KindOf(NewUnavailableError("upstream down", 503, nil)) != KindUnavailable {
		t.Error("Expected unavailable kind")
	}
	if KindOf(NewContentBlockedError("blocked", nil)) != KindContentBlocked {
		t.Error("Expected content_blocked kind")
	}
	if KindOf(errors.New("plain error")) != KindUnexpected {
		t.Error("Expected unclassified errors to map to unexpected")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewRateLimitError("rate limit", nil, nil)) {
		t.Error("Expected rate limit error to be retryable")
	}
	if !IsRetryable(NewUnavailableError("timeout", 0, nil)) {
		t.Error("Expected unavailable error to be retryable")
	}
	if IsRetryable(NewContentBlockedError("blocked", nil)) {
		t.Error("Expected content blocked error to be non-retryable")
	}
	if IsRetryable(NewUnexpectedError("boom", nil)) {
		t.Error("Expected unexpected error to be non-retryable")
	}
	if IsRetryable(errors.New("plain error")) {
		t.Error("Expected plain error to be non-retryable")
	}
}

func TestRetryAfterHint(t *testing.T) {
	retryAfter := 30 * time.Second
	err := NewRateLimitError("rate limit", &retryAfter, nil)
	hint := RetryAfterHint(err)
	if hint == nil {
		t.Fatal("Expected non-nil retry after hint")
	}
	if *hint != retryAfter {
		t.Errorf("Expected retry after %v, got %v", retryAfter, *hint)
	}

	if RetryAfterHint(NewUnexpectedError("boom", nil)) != nil {
		t.Error("Expected nil retry after for non-rate-limit error")
	}
}

func TestErrorUnwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := NewUnexpectedError("wrapped", originalErr)
	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Expected error to unwrap to original error")
	}
}

func TestResourceExhaustedDoesNotLookLikeProviderFault(t *testing.T) {
	err := NewResourceExhaustedError(ProviderGemini)
	if err.Kind != KindResourceExhausted {
		t.Errorf("Expected resource_exhausted kind, got %s", err.Kind)
	}
	if err.Retryable {
		t.Error("Resource exhaustion should not be retryable within one call")
	}
}
