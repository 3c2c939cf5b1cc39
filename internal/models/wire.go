package models

import (
	"bytes"
	"encoding/json"
)

// RawTelemetryMessage is one record as received from the telemetry wire. The
// envelope carries a resolution key (`id` preferred over `topic`) and a
// payload that is either a flat object of primitive-valued fields or a bare
// primitive. Frames without an explicit `payload` field are treated as the
// payload themselves.
type RawTelemetryMessage struct {
	ID        string
	Topic     string
	Timestamp int64 // Unix ms, optional
	Payload   any
}

type rawEnvelope struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// UnmarshalJSON accepts both the enveloped form {id, topic, payload, timestamp}
// and the flat form where the object itself is the payload.
func (m *RawTelemetryMessage) UnmarshalJSON(data []byte) error {
	var env rawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	m.ID = env.ID
	m.Topic = env.Topic
	m.Timestamp = env.Timestamp

	if len(env.Payload) > 0 && !bytes.Equal(env.Payload, []byte("null")) {
		var payload any
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		m.Payload = payload
		return nil
	}

	// No payload field: the frame itself is the payload.
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	delete(flat, "id")
	delete(flat, "topic")
	delete(flat, "timestamp")
	m.Payload = flat
	return nil
}

// DecodeTelemetryFrame decodes one wire frame into a batch of messages. Both
// a single record and an array of records are supported transparently.
func DecodeTelemetryFrame(data []byte) ([]RawTelemetryMessage, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []RawTelemetryMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	var single RawTelemetryMessage
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []RawTelemetryMessage{single}, nil
}

// Layout-sync frame types, client -> server.
const (
	SyncTypeRequestLock = "REQUEST_LOCK"
	SyncTypeReleaseLock = "RELEASE_LOCK"
	SyncTypeSaveLayout  = "SAVE_LAYOUT"
)

// Layout-sync frame types, server -> client.
const (
	SyncTypeLockStatus    = "LOCK_STATUS"
	SyncTypeLockGranted   = "LOCK_GRANTED"
	SyncTypeLockDenied    = "LOCK_DENIED"
	SyncTypeLayoutUpdated = "LAYOUT_UPDATED"
	SyncTypeError         = "ERROR"
)

// SyncMessage is the single frame shape used on the layout-coordination
// socket in both directions. Unused fields are omitted per type.
type SyncMessage struct {
	Type     string          `json:"type"`
	User     string          `json:"user,omitempty"`
	IsLocked bool            `json:"isLocked"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Message  string          `json:"message,omitempty"`
}
