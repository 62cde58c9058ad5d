package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/quotewise/aigate/llm"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	// DefaultProbeSchedule runs the background health probe every five
	// minutes.
	DefaultProbeSchedule = "@every 5m"
	// probeMaxRetries bounds the backoff retries of one trial call.
	probeMaxRetries = 2
	// probeTimeout bounds one full provider probe including retries.
	probeTimeout = 30 * time.Second
)

// ProviderHealth is the per-provider result of a health check.
type ProviderHealth struct {
	Provider   string        `json:"provider"`
	Status     string        `json:"status"`
	Available  bool          `json:"available"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// HealthCheck issues one minimal trial call per provider, gated by the same
// breaker and drawing from the same key pool as regular traffic. Providers
// whose breaker is open are reported without any network call.
func (g *Gateway) HealthCheck(ctx context.Context) map[string]ProviderHealth {
	results := make(map[string]ProviderHealth, len(g.order))
	for _, provider := range g.order {
		results[provider] = g.probe(ctx, provider)
	}
	return results
}

// probe performs a single breaker-gated trial call against one provider.
func (g *Gateway) probe(ctx context.Context, provider string) ProviderHealth {
	breaker := g.breakers[provider]
	if !breaker.AllowRequest() {
		status := breaker.Status()
		return ProviderHealth{
			Provider:   provider,
			Status:     ReasonBreakerOpen,
			Available:  false,
			RetryAfter: status.RetryAfter,
		}
	}

	key := g.pool.SelectNext(provider)
	if key == nil {
		breaker.ReleaseTrial()
		return ProviderHealth{
			Provider:   provider,
			Status:     ReasonNoKeys,
			Available:  false,
			RetryAfter: g.cfg.RateLimitCooldown,
		}
	}

	trial := &llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
	_, err := g.adapters[provider].Invoke(attemptCtx, key.Secret, trial)
	cancel()

	if err == nil {
		g.pool.RecordSuccess(key)
		breaker.RecordSuccess()
		return ProviderHealth{Provider: provider, Status: "ok", Available: true}
	}

	kind := llm.KindOf(err)
	g.pool.RecordFailure(key, kind)
	if kind == llm.KindRateLimited {
		// A rate limit is a key-level condition, not a provider outage; the
		// trial ends without an outcome and must not stay outstanding.
		breaker.ReleaseTrial()
	} else {
		breaker.RecordFailure()
	}

	health := ProviderHealth{Provider: provider, Status: string(kind), Available: false}
	if hint := llm.RetryAfterHint(err); hint != nil {
		health.RetryAfter = *hint
	}
	return health
}

// Prober periodically re-probes every provider in the background and keeps
// the per-provider degradation flags current, so an operator health page
// reflects recovery without waiting for live traffic.
type Prober struct {
	gateway *Gateway
	cron    *cron.Cron
	logger  zerolog.Logger
}

// NewProber schedules probeAll on the given cron spec (e.g. "@every 5m").
func NewProber(g *Gateway, schedule string, logger zerolog.Logger) (*Prober, error) {
	if schedule == "" {
		schedule = DefaultProbeSchedule
	}

	p := &Prober{
		gateway: g,
		cron:    cron.New(),
		logger:  logger.With().Str("component", "prober").Logger(),
	}
	if _, err := p.cron.AddFunc(schedule, p.probeAll); err != nil {
		return nil, err
	}
	return p, nil
}

// Start begins the probe schedule in its own goroutine.
func (p *Prober) Start() {
	p.cron.Start()
}

// Stop stops the schedule and waits for a running probe to finish.
func (p *Prober) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}

// probeAll probes each provider, retrying transient probe failures with
// exponential backoff before declaring the provider degraded.
func (p *Prober) probeAll() {
	for _, provider := range p.gateway.Providers() {
		feature := "provider/" + provider

		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		health := p.probeWithBackoff(ctx, provider)
		cancel()

		if health.Available {
			p.gateway.Degradations().Restore(feature)
			continue
		}
		if health.Status == ReasonBreakerOpen || health.Status == ReasonNoKeys {
			// Not probed: leave the degradation flag as-is.
			p.logger.Debug().Str("provider", provider).Str("status", health.Status).Msg("Probe skipped")
			continue
		}
		p.gateway.Degradations().MarkDegraded(feature, health.Status, true)
	}
}

// probeWithBackoff retries a transient probe failure a couple of times so a
// single flaky call does not flip the degradation flag.
func (p *Prober) probeWithBackoff(ctx context.Context, provider string) ProviderHealth {
	var health ProviderHealth

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 1 * time.Second
	eb.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(eb, probeMaxRetries), ctx)

	operation := func() error {
		health = p.gateway.probe(ctx, provider)
		if health.Available {
			return nil
		}
		if health.Status == string(llm.KindUnavailable) {
			return llm.NewUnavailableError("probe failed", 0, nil)
		}
		// Open breakers, missing keys, policy blocks: retrying the probe
		// will not change the answer.
		return backoff.Permanent(llm.NewUnexpectedError("probe failed: "+health.Status, nil))
	}

	if err := backoff.Retry(operation, b); err != nil {
		p.logger.Warn().Str("provider", provider).Str("status", health.Status).Err(err).Msg("Probe failed")
	}
	return health
}
