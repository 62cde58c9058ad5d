package gateway

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	// DefaultFailureThreshold is how many failures open the breaker.
	DefaultFailureThreshold = 5
	// DefaultRecoveryTimeout is how long an open breaker waits before
	// granting a half-open trial.
	DefaultRecoveryTimeout = 300 * time.Second
)

// BreakerConfig defines circuit breaker behavior.
type BreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// DefaultBreakerConfig returns the documented defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: DefaultFailureThreshold,
		RecoveryTimeout:  DefaultRecoveryTimeout,
	}
}

// Breaker is a per-provider circuit breaker. Every key of a provider shares
// the same breaker: it protects the failing downstream as a whole, not
// individual credentials. State transitions happen only through
// AllowRequest, RecordSuccess, and RecordFailure.
type Breaker struct {
	provider string
	cfg      BreakerConfig
	logger   zerolog.Logger

	mu           sync.Mutex
	state        BreakerState
	failureCount int
	openedAt     time.Time
	trialGranted bool // a half-open trial is outstanding for this window
}

// NewBreaker creates a closed breaker for one provider.
func NewBreaker(provider string, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	return &Breaker{
		provider: provider,
		cfg:      cfg,
		state:    StateClosed,
		logger:   logger.With().Str("component", "breaker").Str("provider", provider).Logger(),
	}
}

// AllowRequest reports whether a request may be attempted. An open breaker
// whose recovery timeout has elapsed moves to half-open and grants exactly
// one trial; further requests are rejected until that trial's outcome is
// recorded.
func (b *Breaker) AllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.logger.Info().Msg("Circuit breaker transitioning to half-open")
			b.state = StateHalfOpen
			b.trialGranted = true
			return true
		}
		return false
	case StateHalfOpen:
		if !b.trialGranted {
			b.trialGranted = true
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful call. A half-open trial success closes
// the breaker; a success while closed decays the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.logger.Info().Msg("Circuit breaker closing after successful trial")
		b.state = StateClosed
		b.failureCount = 0
		b.trialGranted = false
	case StateClosed:
		b.failureCount = 0
	case StateOpen:
		// A success can only arrive here from a call admitted before the
		// breaker opened; the open window stands.
	}
}

// RecordFailure records a failed call. Reaching the threshold while closed
// opens the breaker; a failed half-open trial reopens it for a fresh
// recovery window. An already-open breaker keeps its window.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.cfg.FailureThreshold {
			b.logger.Warn().
				Int("failures", b.failureCount).
				Dur("recovery_timeout", b.cfg.RecoveryTimeout).
				Msg("Circuit breaker opening, failure threshold reached")
			b.state = StateOpen
			b.openedAt = time.Now()
		}
	case StateHalfOpen:
		b.logger.Warn().Msg("Circuit breaker reopening, half-open trial failed")
		b.state = StateOpen
		b.openedAt = time.Now()
		b.trialGranted = false
	case StateOpen:
		// Stay open; only one open window at a time.
	}
}

// ReleaseTrial returns an unused half-open trial to the breaker. It is
// called when an admitted request could not be attempted for a reason
// unrelated to the provider (no usable key), so the trial has no outcome.
func (b *Breaker) ReleaseTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialGranted = false
	}
}

// BreakerStatus is a point-in-time view of one breaker for the stats and
// health surfaces.
type BreakerStatus struct {
	Provider     string        `json:"provider"`
	State        string        `json:"state"`
	FailureCount int           `json:"failure_count"`
	RetryAfter   time.Duration `json:"retry_after,omitempty"`
}

// Status returns the current breaker status. RetryAfter is the time left in
// the current open window, zero otherwise.
func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := BreakerStatus{
		Provider:     b.provider,
		State:        b.state.String(),
		FailureCount: b.failureCount,
	}
	if b.state == StateOpen {
		if remaining := time.Until(b.openedAt.Add(b.cfg.RecoveryTimeout)); remaining > 0 {
			status.RetryAfter = remaining
		}
	}
	return status
}
