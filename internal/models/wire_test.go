package models

import (
	"encoding/json"
	"testing"
)

func TestDecodeTelemetryFrameEnveloped(t *testing.T) {
	batch, err := DecodeTelemetryFrame([]byte(
		`{"id":"TNK-01","topic":"plant/tnk01","timestamp":1700000000000,"payload":{"temp_c":18.5}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("batch len = %d", len(batch))
	}
	m := batch[0]
	if m.ID != "TNK-01" || m.Topic != "plant/tnk01" || m.Timestamp != 1700000000000 {
		t.Errorf("envelope = %+v", m)
	}
	payload, ok := m.Payload.(map[string]any)
	if !ok || payload["temp_c"] != 18.5 {
		t.Errorf("payload = %#v", m.Payload)
	}
}

func TestDecodeTelemetryFrameFlat(t *testing.T) {
	batch, err := DecodeTelemetryFrame([]byte(
		`{"id":"TNK-01","temp_c":18.5,"status":"running"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := batch[0]
	if m.ID != "TNK-01" {
		t.Errorf("id = %q", m.ID)
	}
	payload, ok := m.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %#v", m.Payload)
	}
	// The resolution keys are stripped out of the flat payload.
	if _, present := payload["id"]; present {
		t.Error("id leaked into the payload")
	}
	if payload["temp_c"] != 18.5 || payload["status"] != "running" {
		t.Errorf("payload = %#v", payload)
	}
}

func TestDecodeTelemetryFrameArray(t *testing.T) {
	batch, err := DecodeTelemetryFrame([]byte(
		` [{"id":"a","payload":{}},{"topic":"t","payload":{"v":1}}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(batch) != 2 || batch[0].ID != "a" || batch[1].Topic != "t" {
		t.Errorf("batch = %+v", batch)
	}
}

func TestDecodeTelemetryFramePrimitivePayload(t *testing.T) {
	batch, err := DecodeTelemetryFrame([]byte(`{"id":"a","payload":42.5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if batch[0].Payload != 42.5 {
		t.Errorf("payload = %#v", batch[0].Payload)
	}
}

func TestDecodeTelemetryFrameMalformed(t *testing.T) {
	for _, frame := range []string{`{not json`, `[{"id":1]`, `"`} {
		if _, err := DecodeTelemetryFrame([]byte(frame)); err == nil {
			t.Errorf("frame %q decoded without error", frame)
		}
	}
}

func TestSyncMessageIsLockedAlwaysSerialized(t *testing.T) {
	data, err := json.Marshal(SyncMessage{Type: SyncTypeLockStatus, IsLocked: false})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// LOCK_STATUS frames carry isLocked explicitly even when false.
	if _, ok := raw["isLocked"]; !ok {
		t.Errorf("isLocked omitted: %s", data)
	}
	if _, ok := raw["user"]; ok {
		t.Errorf("empty user serialized: %s", data)
	}
}

func TestResolveLinePrefersID(t *testing.T) {
	doc := LayoutDocument{Lines: []LineConfig{
		{ID: "TNK-01", Topic: "plant/a"},
		{ID: "FIL-02", Topic: "plant/b"},
	}}

	if got := doc.ResolveLine("FIL-02", "plant/a"); got == nil || got.ID != "FIL-02" {
		t.Errorf("id resolution = %+v", got)
	}
	if got := doc.ResolveLine("", "plant/b"); got == nil || got.ID != "FIL-02" {
		t.Errorf("topic resolution = %+v", got)
	}
	if got := doc.ResolveLine("NOPE", "nope"); got != nil {
		t.Errorf("unknown resolution = %+v", got)
	}
}
