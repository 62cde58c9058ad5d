package gateway

import (
	"github.com/samber/lo"
)

// Stats is the operator-facing usage snapshot. Nothing here survives a
// process restart.
type Stats struct {
	TotalRequests  uint64              `json:"total_requests"`
	FailedRequests uint64              `json:"failed_requests"`
	SuccessRate    float64             `json:"success_rate"`
	Keys           []KeyUsage          `json:"keys"`
	Breakers       []BreakerStatus     `json:"breakers"`
	Degraded       []DegradationRecord `json:"degraded_features"`
}

// Stats returns a point-in-time snapshot of request counters, per-key
// usage, per-provider breaker status, and degraded features.
func (g *Gateway) Stats() Stats {
	g.statsMu.Lock()
	total := g.totalRequests
	failed := g.failedRequests
	g.statsMu.Unlock()

	successRate := 1.0
	if total > 0 {
		successRate = float64(total-failed) / float64(total)
	}

	return Stats{
		TotalRequests:  total,
		FailedRequests: failed,
		SuccessRate:    successRate,
		Keys:           g.pool.Snapshot(),
		Breakers: lo.Map(g.order, func(provider string, _ int) BreakerStatus {
			return g.breakers[provider].Status()
		}),
		Degraded: g.degradations.Snapshot(),
	}
}
