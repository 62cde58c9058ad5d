package gateway

import (
	"testing"
	"time"

	"github.com/quotewise/aigate/llm"
	"github.com/rs/zerolog"
)

func testKeys(provider string, n int) []*APIKey {
	keys := make([]*APIKey, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, &APIKey{
			Secret:   provider + "-secret",
			Provider: provider,
			Label:    provider + "-" + string(rune('a'+i)),
			Active:   true,
		})
	}
	return keys
}

func TestPoolSelectNextFiltersProvider(t *testing.T) {
	keys := append(testKeys("gemini", 1), testKeys("openrouter", 2)...)
	pool := NewPool(keys, time.Minute, zerolog.Nop())

	key := pool.SelectNext("gemini")
	if key == nil {
		t.Fatal("Expected a gemini key")
	}
	if key.Provider != "gemini" {
		t.Errorf("Expected gemini key, got %s", key.Provider)
	}

	if pool.SelectNext("anthropic") != nil {
		t.Error("Expected nil for provider with no keys")
	}
}

func TestPoolSelectNextSkipsCoolingKeys(t *testing.T) {
	keys := testKeys("gemini", 2)
	pool := NewPool(keys, time.Minute, zerolog.Nop())

	limited := pool.SelectNext("gemini")
	pool.RecordFailure(limited, llm.KindRateLimited)

	for i := 0; i < 10; i++ {
		key := pool.SelectNext("gemini")
		if key == nil {
			t.Fatal("Expected the sibling key to remain usable")
		}
		if key == limited {
			t.Fatal("Selected a key whose cooldown has not elapsed")
		}
	}
}

func TestPoolCooldownExpires(t *testing.T) {
	keys := testKeys("gemini", 1)
	pool := NewPool(keys, 20*time.Millisecond, zerolog.Nop())

	key := pool.SelectNext("gemini")
	pool.RecordFailure(key, llm.KindRateLimited)
	if pool.SelectNext("gemini") != nil {
		t.Fatal("Expected no usable key during cooldown")
	}

	time.Sleep(30 * time.Millisecond)
	if pool.SelectNext("gemini") == nil {
		t.Fatal("Expected key to be usable after cooldown elapsed")
	}
}

func TestPoolNonRateLimitFailureLeavesKeyUsable(t *testing.T) {
	keys := testKeys("gemini", 1)
	pool := NewPool(keys, time.Minute, zerolog.Nop())

	key := pool.SelectNext("gemini")
	pool.RecordFailure(key, llm.KindUnavailable)

	if pool.SelectNext("gemini") == nil {
		t.Error("Expected key to stay usable after a transient failure")
	}
	if key.ErrorCount != 1 {
		t.Errorf("Expected error count 1, got %d", key.ErrorCount)
	}
}

func TestPoolSkipsInactiveKeys(t *testing.T) {
	keys := testKeys("gemini", 2)
	keys[0].Active = false
	keys[1].Active = false
	pool := NewPool(keys, time.Minute, zerolog.Nop())

	if pool.SelectNext("gemini") != nil {
		t.Error("Expected nil when all keys are inactive")
	}
}

func TestPoolRoundRobinFairness(t *testing.T) {
	const n = 3
	const m = 10
	keys := testKeys("gemini", n)
	pool := NewPool(keys, time.Minute, zerolog.Nop())

	counts := make(map[*APIKey]int, n)
	for i := 0; i < m; i++ {
		key := pool.SelectNext("gemini")
		if key == nil {
			t.Fatal("Expected a key")
		}
		counts[key]++
	}

	if len(counts) != n {
		t.Fatalf("Expected all %d keys to be used, got %d", n, len(counts))
	}
	for key, count := range counts {
		if count != m/n && count != m/n+1 {
			t.Errorf("Key %s selected %d times, expected %d or %d", key.Label, count, m/n, m/n+1)
		}
	}
}

func TestPoolRecordSuccess(t *testing.T) {
	keys := testKeys("gemini", 1)
	pool := NewPool(keys, time.Minute, zerolog.Nop())

	key := pool.SelectNext("gemini")
	pool.RecordSuccess(key)

	if key.RequestCount != 1 {
		t.Errorf("Expected request count 1, got %d", key.RequestCount)
	}
	if key.LastUsedAt.IsZero() {
		t.Error("Expected last used timestamp to be set")
	}
}

func TestPoolSnapshotHidesSecrets(t *testing.T) {
	keys := testKeys("gemini", 2)
	pool := NewPool(keys, time.Minute, zerolog.Nop())

	usage := pool.Snapshot()
	if len(usage) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(usage))
	}
	for _, u := range usage {
		if u.Provider != "gemini" {
			t.Errorf("Unexpected provider %s", u.Provider)
		}
		if u.Label == "" {
			t.Error("Expected a label for every key")
		}
	}
}
