package gateway

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestDegradationsMarkAndRestore(t *testing.T) {
	d := NewDegradations(zerolog.Nop())

	if d.IsDegraded("quote_extraction") {
		t.Error("Expected feature to start healthy")
	}

	d.MarkDegraded("quote_extraction", "all providers failed", true)
	if !d.IsDegraded("quote_extraction") {
		t.Error("Expected feature to be degraded after mark")
	}

	d.Restore("quote_extraction")
	if d.IsDegraded("quote_extraction") {
		t.Error("Expected feature to be healthy after restore")
	}
}

func TestDegradationsRestoreIsIdempotent(t *testing.T) {
	d := NewDegradations(zerolog.Nop())

	// Restoring an already-healthy feature must be a no-op.
	d.Restore("crm_chat")
	d.Restore("crm_chat")

	if d.IsDegraded("crm_chat") {
		t.Error("Expected feature to remain healthy")
	}
}

func TestDegradationsMarkUpserts(t *testing.T) {
	d := NewDegradations(zerolog.Nop())

	d.MarkDegraded("crm_chat", "first reason", false)
	d.MarkDegraded("crm_chat", "second reason", true)

	records := d.Snapshot()
	if len(records) != 1 {
		t.Fatalf("Expected 1 record after upsert, got %d", len(records))
	}
	if records[0].Reason != "second reason" {
		t.Errorf("Expected upserted reason, got %q", records[0].Reason)
	}
	if !records[0].FallbackAvailable {
		t.Error("Expected upserted fallback flag")
	}
}

func TestDegradationsSnapshotSorted(t *testing.T) {
	d := NewDegradations(zerolog.Nop())

	d.MarkDegraded("zeta", "r", false)
	d.MarkDegraded("alpha", "r", false)
	d.MarkDegraded("mid", "r", false)

	records := d.Snapshot()
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, w := range want {
		if records[i].Feature != w {
			t.Errorf("Record %d: expected %s, got %s", i, w, records[i].Feature)
		}
	}
}
