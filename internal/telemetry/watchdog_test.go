package telemetry

import (
	"testing"
	"time"

	"github.com/line-kiosk/backend/internal/models"
)

func TestIsStale(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name          string
		lastHeartbeat time.Time
		want          bool
	}{
		{"never heard", time.Time{}, false},
		{"fresh", now.Add(-2 * time.Second), false},
		{"at boundary", now.Add(-10 * time.Second), false},
		{"silent 11s", now.Add(-11 * time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStale(tt.lastHeartbeat, now, DefaultWatchdogTimeout); got != tt.want {
				t.Errorf("IsStale = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatchdogDetectsAndClearsStaleness(t *testing.T) {
	s := NewStore(0, 0)
	defer s.Close()

	w := NewWatchdog(s, 50*time.Millisecond, 10*time.Millisecond)
	w.Start()
	defer w.Stop()

	// No heartbeat yet: the zero-guard keeps it fresh.
	time.Sleep(80 * time.Millisecond)
	if w.Stale() {
		t.Fatal("stale before any message ever arrived")
	}

	lines := []models.LineConfig{{ID: "TNK-01", DataMapping: fullMapping()}}
	apply := func() {
		s.ApplyBatch([]models.RawTelemetryMessage{
			{ID: "TNK-01", Payload: map[string]any{"temp_c": 1.0}},
		}, lines)
	}

	apply()
	time.Sleep(25 * time.Millisecond)
	if w.Stale() {
		t.Fatal("stale immediately after a message")
	}

	// Go silent past the timeout.
	deadline := time.Now().Add(time.Second)
	for !w.Stale() {
		if time.Now().After(deadline) {
			t.Fatal("watchdog never reported stale")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A message arriving resets it within one tick.
	apply()
	deadline = time.Now().Add(time.Second)
	for w.Stale() {
		if time.Now().After(deadline) {
			t.Fatal("watchdog never cleared staleness")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
