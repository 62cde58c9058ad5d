package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DegradationRecord marks one feature as currently running degraded.
type DegradationRecord struct {
	Feature           string    `json:"feature"`
	Reason            string    `json:"reason"`
	MarkedAt          time.Time `json:"marked_at"`
	FallbackAvailable bool      `json:"fallback_available"`
}

// Degradations is the process-wide map of degraded features, consumed by
// health reporting. It holds no provider state of its own.
type Degradations struct {
	mu      sync.RWMutex
	records map[string]DegradationRecord
	logger  zerolog.Logger
}

// NewDegradations creates an empty degradation map.
func NewDegradations(logger zerolog.Logger) *Degradations {
	return &Degradations{
		records: make(map[string]DegradationRecord),
		logger:  logger.With().Str("component", "degradations").Logger(),
	}
}

// MarkDegraded upserts a degradation record for a feature.
func (d *Degradations) MarkDegraded(feature, reason string, fallbackAvailable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.records[feature] = DegradationRecord{
		Feature:           feature,
		Reason:            reason,
		MarkedAt:          time.Now(),
		FallbackAvailable: fallbackAvailable,
	}
	d.logger.Warn().
		Str("feature", feature).
		Str("reason", reason).
		Bool("fallback_available", fallbackAvailable).
		Msg("Feature marked degraded")
}

// Restore clears the degradation flag for a feature. Restoring an
// already-healthy feature is a no-op.
func (d *Degradations) Restore(feature string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.records[feature]; !exists {
		return
	}
	delete(d.records, feature)
	d.logger.Info().Str("feature", feature).Msg("Feature restored")
}

// IsDegraded reports whether a feature is currently degraded.
func (d *Degradations) IsDegraded(feature string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.records[feature]
	return exists
}

// Snapshot returns all degradation records, sorted by feature name.
func (d *Degradations) Snapshot() []DegradationRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records := make([]DegradationRecord, 0, len(d.records))
	for _, rec := range d.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Feature < records[j].Feature
	})
	return records
}
