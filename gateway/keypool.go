package gateway

import (
	"math/rand"
	"sync"
	"time"

	"github.com/quotewise/aigate/llm"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	// DefaultRateLimitCooldown is how long a rate-limited key sits out
	// before it becomes selectable again.
	DefaultRateLimitCooldown = 60 * time.Second
)

// APIKey is a single provider credential tracked by the pool.
// Keys are created at startup from configuration and are never removed;
// a key is only deactivated or put on a rate-limit cooldown.
type APIKey struct {
	Secret           string
	Provider         string
	Label            string
	Active           bool
	LastUsedAt       time.Time
	RequestCount     int64
	ErrorCount       int64
	RateLimitResetAt time.Time // zero means not cooling down
}

// usableAt reports whether the key can be handed out at the given instant.
func (k *APIKey) usableAt(now time.Time) bool {
	if !k.Active {
		return false
	}
	return k.RateLimitResetAt.IsZero() || !now.Before(k.RateLimitResetAt)
}

// Pool holds all provider credentials and rotates them fairly.
// All mutation happens under the pool mutex; no lock is held across I/O.
type Pool struct {
	mu       sync.Mutex
	keys     []*APIKey
	cursor   uint64 // shared rotation counter, monotonically increasing
	cooldown time.Duration
	logger   zerolog.Logger
}

// NewPool creates a pool from the configured keys. The combined list is
// shuffled once at startup so the same key does not become the hot key
// after every process restart.
func NewPool(keys []*APIKey, cooldown time.Duration, logger zerolog.Logger) *Pool {
	if cooldown <= 0 {
		cooldown = DefaultRateLimitCooldown
	}

	shuffled := make([]*APIKey, len(keys))
	copy(shuffled, keys)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return &Pool{
		keys:     shuffled,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "keypool").Logger(),
	}
}

// SelectNext returns the next usable key, round-robining via a shared
// counter. If provider is non-empty, selection is restricted to that
// provider's keys. A nil return means no usable key exists right now;
// callers must treat that as resource exhaustion, not an error.
func (p *Pool) SelectNext(provider string) *APIKey {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	usable := lo.Filter(p.keys, func(k *APIKey, _ int) bool {
		if !k.usableAt(now) {
			return false
		}
		return provider == "" || k.Provider == provider
	})
	if len(usable) == 0 {
		return nil
	}

	key := usable[p.cursor%uint64(len(usable))]
	p.cursor++
	return key
}

// RecordSuccess marks a key as used successfully.
func (p *Pool) RecordSuccess(key *APIKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key.LastUsedAt = time.Now()
	key.RequestCount++
}

// RecordFailure records a failed use of a key. A rate-limited failure puts
// the key on a fixed cooldown window; any other kind leaves the key
// immediately reusable, and sibling keys of the same provider are never
// affected.
func (p *Pool) RecordFailure(key *APIKey, kind llm.ErrorKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key.ErrorCount++
	if kind == llm.KindRateLimited {
		key.RateLimitResetAt = time.Now().Add(p.cooldown)
		p.logger.Warn().
			Str("provider", key.Provider).
			Str("key", key.Label).
			Dur("cooldown", p.cooldown).
			Msg("Key rate limited, cooling down")
	}
}

// KeyUsage is a point-in-time view of one key for the stats surface.
// The secret itself is never exposed.
type KeyUsage struct {
	Provider     string    `json:"provider"`
	Label        string    `json:"label"`
	Active       bool      `json:"active"`
	CoolingDown  bool      `json:"cooling_down"`
	RequestCount int64     `json:"request_count"`
	ErrorCount   int64     `json:"error_count"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// Snapshot returns usage information for every key in the pool.
func (p *Pool) Snapshot() []KeyUsage {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	return lo.Map(p.keys, func(k *APIKey, _ int) KeyUsage {
		return KeyUsage{
			Provider:     k.Provider,
			Label:        k.Label,
			Active:       k.Active,
			CoolingDown:  !k.RateLimitResetAt.IsZero() && now.Before(k.RateLimitResetAt),
			RequestCount: k.RequestCount,
			ErrorCount:   k.ErrorCount,
			LastUsedAt:   k.LastUsedAt,
		}
	})
}
