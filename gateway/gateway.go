// Package gateway implements the multi-provider AI resilience gateway: key
// pool rotation, per-provider circuit breakers, bounded exponential-backoff
// retry, timeout enforcement, and process-wide degradation tracking with
// cross-provider failover.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quotewise/aigate/llm"
	"github.com/rs/zerolog"
)

// Per-provider failure reasons reported in GatewayError.PerProviderErrors.
const (
	ReasonBreakerOpen      = "circuit_breaker_open"
	ReasonNoKeys           = "no_keys_available"
	ReasonDeadlineExceeded = "deadline_exceeded"
)

const (
	// DefaultAttemptTimeout bounds a single provider call.
	DefaultAttemptTimeout = 30 * time.Second
	// DefaultRetryAfterSeconds is the fallback hint when no breaker or
	// cooldown window suggests a better one.
	DefaultRetryAfterSeconds = 60
)

// Config tunes the gateway. Zero values fall back to the documented
// defaults.
type Config struct {
	AttemptTimeout    time.Duration
	Retry             RetryPolicy
	Breaker           BreakerConfig
	RateLimitCooldown time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout:    DefaultAttemptTimeout,
		Retry:             DefaultRetryPolicy(),
		Breaker:           DefaultBreakerConfig(),
		RateLimitCooldown: DefaultRateLimitCooldown,
	}
}

// ExecuteOptions control provider selection for one call.
type ExecuteOptions struct {
	// PreferredProvider, when set, is attempted first.
	PreferredProvider string
	// AllowFallback permits trying the remaining providers after the
	// preferred one is exhausted.
	AllowFallback bool
	// Feature names the caller-visible feature for degradation tracking,
	// e.g. "quote_extraction" or "crm_chat".
	Feature string
}

// DefaultExecuteOptions allows fallback across all providers for the given
// feature.
func DefaultExecuteOptions(feature string) ExecuteOptions {
	return ExecuteOptions{AllowFallback: true, Feature: feature}
}

// Result is the normalized success outcome of an orchestrated call.
type Result struct {
	Content      string     `json:"content"`
	ProviderUsed string     `json:"provider_used"`
	ModelUsed    string     `json:"model_used"`
	Usage        *llm.Usage `json:"-"`
}

// GatewayError is the structured failure surfaced once every provider is
// exhausted or skipped. PerProviderErrors holds an entry for every provider
// that was attempted or skipped, labeled with its reason.
type GatewayError struct {
	Code              string            `json:"error_code"`
	PerProviderErrors map[string]string `json:"per_provider_errors"`
	Retryable         bool              `json:"retryable"`
	RetryAfterSeconds int               `json:"retry_after_seconds"`
}

func (e *GatewayError) Error() string {
	parts := make([]string, 0, len(e.PerProviderErrors))
	for _, provider := range sortedKeys(e.PerProviderErrors) {
		parts = append(parts, provider+": "+e.PerProviderErrors[provider])
	}
	return fmt.Sprintf("%s [%s]", e.Code, strings.Join(parts, "; "))
}

// Gateway composes the key pool, the per-provider breakers, the retry
// policy, and the degradation map into the orchestrated execute operation.
// One Gateway is constructed by the process entry point and shared by
// reference; there are no package-level globals.
type Gateway struct {
	cfg          Config
	pool         *Pool
	adapters     map[string]llm.Adapter
	breakers     map[string]*Breaker
	order        []string
	degradations *Degradations
	logger       zerolog.Logger

	statsMu        sync.Mutex
	totalRequests  uint64
	failedRequests uint64
}

// New creates a gateway over the given adapters and keys. Providers are
// enumerated in llm.ProviderOrder, restricted to those with a registered
// adapter; exactly one breaker is created per provider.
func New(cfg Config, adapters []llm.Adapter, keys []*APIKey, logger zerolog.Logger) *Gateway {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	adapterMap := make(map[string]llm.Adapter, len(adapters))
	for _, a := range adapters {
		adapterMap[a.Provider()] = a
	}

	order := make([]string, 0, len(adapterMap))
	breakers := make(map[string]*Breaker, len(adapterMap))
	for _, provider := range llm.ProviderOrder {
		if _, ok := adapterMap[provider]; !ok {
			continue
		}
		order = append(order, provider)
		breakers[provider] = NewBreaker(provider, cfg.Breaker, logger)
	}

	return &Gateway{
		cfg:          cfg,
		pool:         NewPool(keys, cfg.RateLimitCooldown, logger),
		adapters:     adapterMap,
		breakers:     breakers,
		order:        order,
		degradations: NewDegradations(logger),
		logger:       logger.With().Str("component", "gateway").Logger(),
	}
}

// Degradations exposes the process-wide degradation map for health
// reporting.
func (g *Gateway) Degradations() *Degradations {
	return g.degradations
}

// Providers returns the resolved provider enumeration order.
func (g *Gateway) Providers() []string {
	return g.order
}

// attemptOrder resolves the provider attempt order for one call: the
// preferred provider first if given, then the remaining providers in fixed
// enumeration order, de-duplicated. With fallback disabled, only the
// preferred provider is attempted.
func (g *Gateway) attemptOrder(opts ExecuteOptions) []string {
	if opts.PreferredProvider == "" {
		return g.order
	}
	if _, ok := g.adapters[opts.PreferredProvider]; !ok {
		if opts.AllowFallback {
			return g.order
		}
		return nil
	}
	if !opts.AllowFallback {
		return []string{opts.PreferredProvider}
	}

	order := make([]string, 0, len(g.order))
	order = append(order, opts.PreferredProvider)
	for _, provider := range g.order {
		if provider != opts.PreferredProvider {
			order = append(order, provider)
		}
	}
	return order
}

// Execute runs one orchestrated call: providers are attempted strictly in
// resolved order, each under its breaker, its retry budget, and a bounded
// per-attempt timeout. The first provider success terminates the call. If
// no provider succeeds, the feature is marked degraded and a structured,
// retryable-annotated error is returned. Callers never see a raw transport
// error.
func (g *Gateway) Execute(ctx context.Context, req *llm.Request, opts ExecuteOptions) (*Result, error) {
	g.countRequest()

	feature := opts.Feature
	if feature == "" {
		feature = "ai"
	}

	order := g.attemptOrder(opts)
	if len(order) == 0 {
		g.countFailure()
		return nil, &GatewayError{
			Code:              "unknown_provider",
			PerProviderErrors: map[string]string{opts.PreferredProvider: "no adapter registered"},
			Retryable:         false,
		}
	}

	perProvider := make(map[string]string, len(order))

	for _, provider := range order {
		breaker := g.breakers[provider]
		if !breaker.AllowRequest() {
			perProvider[provider] = ReasonBreakerOpen
			g.logger.Debug().Str("provider", provider).Msg("Skipping provider, circuit breaker open")
			continue
		}

		result, err := g.executeProvider(ctx, provider, breaker, req)
		if err == nil {
			breaker.RecordSuccess()
			g.degradations.Restore(feature)
			return result, nil
		}

		// An expired external deadline aborts the whole orchestration.
		// The aborted attempt carries no provider verdict: a half-open
		// trial goes back unconsumed instead of staying outstanding.
		if ctx.Err() != nil {
			breaker.ReleaseTrial()
			perProvider[provider] = ReasonDeadlineExceeded
			g.countFailure()
			return nil, &GatewayError{
				Code:              ReasonDeadlineExceeded,
				PerProviderErrors: perProvider,
				Retryable:         true,
				RetryAfterSeconds: DefaultRetryAfterSeconds,
			}
		}

		var exhausted *ExhaustedError
		switch {
		case llm.KindOf(err) == llm.KindResourceExhausted:
			// No usable key is not a provider fault: the breaker is not
			// penalized, and a half-open trial goes back unconsumed.
			perProvider[provider] = ReasonNoKeys
			breaker.ReleaseTrial()
		case errors.As(err, &exhausted):
			perProvider[provider] = fmt.Sprintf("retry_exhausted after %d attempts: %s",
				exhausted.Attempts, llm.KindOf(exhausted.Last))
			breaker.RecordFailure()
		default:
			perProvider[provider] = string(llm.KindOf(err))
			// The immediate failure was recorded inside the attempt loop;
			// the loop ending without success adds the aggregate signal.
			breaker.RecordFailure()
		}

		g.logger.Warn().
			Str("provider", provider).
			Str("reason", perProvider[provider]).
			Msg("Provider attempt failed, falling back")
	}

	g.countFailure()
	g.degradations.MarkDegraded(feature, summarize(perProvider), true)

	return nil, &GatewayError{
		Code:              "all_providers_failed",
		PerProviderErrors: perProvider,
		Retryable:         true,
		RetryAfterSeconds: g.suggestRetryAfter(order),
	}
}

// executeProvider drives the retry loop for a single provider. Retries
// operate strictly inside one breaker-allowed window; the breaker itself is
// consulted once per provider, by the caller.
func (g *Gateway) executeProvider(ctx context.Context, provider string, breaker *Breaker, req *llm.Request) (*Result, error) {
	adapter := g.adapters[provider]
	var result *Result

	err := g.cfg.Retry.Do(ctx, func(attempt int) error {
		key := g.pool.SelectNext(provider)
		if key == nil {
			return llm.NewResourceExhaustedError(provider)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		resp, invokeErr := adapter.Invoke(attemptCtx, key.Secret, req)
		cancel()

		if invokeErr == nil {
			g.pool.RecordSuccess(key)
			result = &Result{
				Content:      resp.Content,
				ProviderUsed: provider,
				ModelUsed:    resp.Model,
				Usage:        resp.Usage,
			}
			return nil
		}

		kind := llm.KindOf(invokeErr)
		g.pool.RecordFailure(key, kind)
		g.logger.Debug().
			Str("provider", provider).
			Str("key", key.Label).
			Int("attempt", attempt).
			Str("kind", string(kind)).
			Err(invokeErr).
			Msg("Provider attempt failed")

		if !llm.IsRetryable(invokeErr) {
			// Non-retryable faults trip the breaker immediately.
			breaker.RecordFailure()
		}
		return invokeErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// suggestRetryAfter picks the soonest instant at which a retry could
// plausibly succeed: the smallest remaining breaker recovery window, or the
// rate-limit cooldown when no breaker is open.
func (g *Gateway) suggestRetryAfter(order []string) int {
	best := 0
	for _, provider := range order {
		status := g.breakers[provider].Status()
		if status.RetryAfter <= 0 {
			continue
		}
		secs := int(status.RetryAfter.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		if best == 0 || secs < best {
			best = secs
		}
	}
	if best == 0 {
		return DefaultRetryAfterSeconds
	}
	return best
}

func (g *Gateway) countRequest() {
	g.statsMu.Lock()
	g.totalRequests++
	g.statsMu.Unlock()
}

func (g *Gateway) countFailure() {
	g.statsMu.Lock()
	g.failedRequests++
	g.statsMu.Unlock()
}

func summarize(perProvider map[string]string) string {
	parts := make([]string, 0, len(perProvider))
	for _, provider := range sortedKeys(perProvider) {
		parts = append(parts, provider+"="+perProvider[provider])
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
