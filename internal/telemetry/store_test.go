package telemetry

import (
	"testing"
	"time"

	"github.com/line-kiosk/backend/internal/models"
)

func storeLines() []models.LineConfig {
	return []models.LineConfig{
		{ID: "TNK-01", Name: "Tank 1", DataMapping: fullMapping()},
		{ID: "FIL-02", Name: "Filler 2", Topic: "plant/filler2", DataMapping: fullMapping()},
		{ID: "CNV-03", Name: "Conveyor 3"}, // no mapping: normalization skipped
	}
}

func TestStoreApplyBatch(t *testing.T) {
	s := NewStore(0, 0)
	defer s.Close()

	updated := s.ApplyBatch([]models.RawTelemetryMessage{
		{ID: "TNK-01", Payload: map[string]any{"temp_c": 18.5, "status": "RUNNING"}},
	}, storeLines())

	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	rec, ok := s.Record("TNK-01")
	if !ok {
		t.Fatal("record missing")
	}
	if rec.Status != "RUNNING" || rec.Temperature != 18.5 {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Trend) != 1 || rec.Trend[0].Value != 18.5 {
		t.Errorf("trend = %+v", rec.Trend)
	}
	if s.LastHeartbeat().IsZero() {
		t.Error("heartbeat not bumped")
	}
}

func TestStoreResolvesByTopic(t *testing.T) {
	s := NewStore(0, 0)
	defer s.Close()

	updated := s.ApplyBatch([]models.RawTelemetryMessage{
		{Topic: "plant/filler2", Payload: map[string]any{"status": "ALARM"}},
	}, storeLines())

	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	rec, ok := s.Record("FIL-02")
	if !ok || rec.Status != "ALARM" {
		t.Errorf("topic resolution failed: %+v ok=%v", rec, ok)
	}
}

func TestStoreDropsUnknownAndUnmapped(t *testing.T) {
	s := NewStore(0, 0)
	defer s.Close()

	version := s.Version()
	updated := s.ApplyBatch([]models.RawTelemetryMessage{
		{ID: "NOPE-99", Payload: map[string]any{"temp_c": 1.0}},
		{ID: "CNV-03", Payload: map[string]any{"temp_c": 1.0}},
	}, storeLines())

	if updated != 0 {
		t.Fatalf("updated = %d, want 0", updated)
	}
	if s.Version() != version {
		t.Error("no-op batch bumped the version")
	}
	if !s.LastHeartbeat().IsZero() {
		t.Error("no-op batch bumped the heartbeat")
	}
}

func TestStoreBatchAtomicTrendAccumulation(t *testing.T) {
	s := NewStore(0, 0)
	defer s.Close()

	// Two messages for the same line in one batch accumulate trend points
	// within the batch.
	updated := s.ApplyBatch([]models.RawTelemetryMessage{
		{ID: "TNK-01", Payload: map[string]any{"temp_c": 1.0}},
		{ID: "TNK-01", Payload: map[string]any{"temp_c": 2.0}},
	}, storeLines())

	if updated != 1 {
		t.Fatalf("updated = %d, want 1 line", updated)
	}
	rec, _ := s.Record("TNK-01")
	if len(rec.Trend) != 2 {
		t.Fatalf("trend length = %d, want 2", len(rec.Trend))
	}
	if rec.Trend[0].Value != 1 || rec.Trend[1].Value != 2 {
		t.Errorf("trend order wrong: %+v", rec.Trend)
	}
}

func TestStoreTrendAccumulatesAcrossBatches(t *testing.T) {
	s := NewStore(0, 0)
	defer s.Close()

	for i := 0; i < 25; i++ {
		s.ApplyBatch([]models.RawTelemetryMessage{
			{ID: "TNK-01", Payload: map[string]any{"temp_c": float64(i)}},
		}, storeLines())
	}

	rec, _ := s.Record("TNK-01")
	if len(rec.Trend) != DefaultTrendDepth {
		t.Fatalf("trend length = %d, want %d", len(rec.Trend), DefaultTrendDepth)
	}
	if rec.Trend[0].Value != 5 || rec.Trend[19].Value != 24 {
		t.Errorf("trend window wrong: first=%v last=%v", rec.Trend[0].Value, rec.Trend[19].Value)
	}
}

func TestStoreConnectionStatusStoredVerbatim(t *testing.T) {
	s := NewStore(0, 0)
	defer s.Close()

	s.SetConnectionStatus(StatusConnected)
	if s.ConnectionStatus() != StatusConnected {
		t.Errorf("status = %q", s.ConnectionStatus())
	}

	version := s.Version()
	s.SetConnectionStatus(StatusConnected)
	if s.Version() != version {
		t.Error("repeated status bumped the version")
	}
}

func TestStoreErrorAutoClear(t *testing.T) {
	s := NewStore(0, 20*time.Millisecond)
	defer s.Close()

	s.SetError("telemetry connect failed")
	if s.LastError() == "" {
		t.Fatal("error not stored")
	}

	deadline := time.Now().Add(time.Second)
	for s.LastError() != "" {
		if time.Now().After(deadline) {
			t.Fatal("error was not auto-cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStoreErrorClearSkippedWhenReplaced(t *testing.T) {
	s := NewStore(0, 20*time.Millisecond)
	defer s.Close()

	s.SetError("first")
	s.SetError("second")
	time.Sleep(60 * time.Millisecond)
	if got := s.LastError(); got != "" {
		t.Errorf("error = %q, want cleared", got)
	}
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := NewStore(0, 0)
	defer s.Close()

	s.ApplyBatch([]models.RawTelemetryMessage{
		{ID: "TNK-01", Payload: map[string]any{"temp_c": 1.0}},
	}, storeLines())

	snap := s.Snapshot()
	rec := snap["TNK-01"]
	rec.Trend[0].Value = 999

	fresh, _ := s.Record("TNK-01")
	if fresh.Trend[0].Value == 999 {
		t.Error("snapshot shares trend backing array with the store")
	}
}
