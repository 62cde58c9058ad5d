package gateway

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testBreaker(threshold int, recovery time.Duration) *Breaker {
	return NewBreaker("gemini", BreakerConfig{
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
	}, zerolog.Nop())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := testBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if !b.AllowRequest() {
			t.Fatalf("Expected breaker to stay closed after %d failures", i+1)
		}
	}

	b.RecordFailure()
	if b.AllowRequest() {
		t.Error("Expected breaker to reject requests once threshold is reached")
	}
	if got := b.Status().State; got != "open" {
		t.Errorf("Expected open state, got %s", got)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := testBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if !b.AllowRequest() {
		t.Error("Expected breaker to stay closed, success should reset the failure count")
	}
}

func TestBreakerHalfOpenGrantsSingleTrial(t *testing.T) {
	b := testBreaker(1, 20*time.Millisecond)

	b.RecordFailure()
	if b.AllowRequest() {
		t.Fatal("Expected breaker to be open")
	}

	time.Sleep(30 * time.Millisecond)

	if !b.AllowRequest() {
		t.Fatal("Expected one half-open trial after recovery timeout")
	}
	if got := b.Status().State; got != "half_open" {
		t.Errorf("Expected half_open state, got %s", got)
	}
	if b.AllowRequest() {
		t.Error("Expected only one trial per half-open window")
	}
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	b := testBreaker(1, 20*time.Millisecond)

	b.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	if !b.AllowRequest() {
		t.Fatal("Expected half-open trial")
	}

	b.RecordSuccess()
	if got := b.Status().State; got != "closed" {
		t.Errorf("Expected closed state after successful trial, got %s", got)
	}
	if !b.AllowRequest() {
		t.Error("Expected requests to flow after the breaker closed")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := testBreaker(1, 20*time.Millisecond)

	b.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	if !b.AllowRequest() {
		t.Fatal("Expected half-open trial")
	}

	b.RecordFailure()
	if got := b.Status().State; got != "open" {
		t.Errorf("Expected open state after failed trial, got %s", got)
	}
	if b.AllowRequest() {
		t.Error("Expected a fresh open window to reject requests")
	}
}

func TestBreakerReleaseTrial(t *testing.T) {
	b := testBreaker(1, 20*time.Millisecond)

	b.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	if !b.AllowRequest() {
		t.Fatal("Expected half-open trial")
	}

	// The admitted request never reached the provider; the trial goes back.
	b.ReleaseTrial()
	if !b.AllowRequest() {
		t.Error("Expected the released trial to be grantable again")
	}
}

func TestBreakerStatusRetryAfter(t *testing.T) {
	b := testBreaker(1, time.Minute)

	if b.Status().RetryAfter != 0 {
		t.Error("Expected no retry-after while closed")
	}

	b.RecordFailure()
	status := b.Status()
	if status.RetryAfter <= 0 || status.RetryAfter > time.Minute {
		t.Errorf("Expected retry-after within the recovery window, got %v", status.RetryAfter)
	}
}
