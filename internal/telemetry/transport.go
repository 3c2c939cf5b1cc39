package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/line-kiosk/backend/internal/models"
)

// DefaultReconnectDelay is the fixed delay before a reconnect attempt after
// an unexpected close.
const DefaultReconnectDelay = 5 * time.Second

// Listener callback types. Message listeners receive decoded batches; raw
// listeners receive every inbound frame unfiltered for diagnostics,
// including a marker line when a frame fails to parse.
type (
	MessageFunc func(batch []models.RawTelemetryMessage)
	StatusFunc  func(status string)
	ErrorFunc   func(msg string)
	RawFunc     func(frame []byte)
)

// Transport manages one persistent socket connection to a telemetry source.
// It owns reconnect scheduling and fans out raw frames, decoded batches and
// connection-status transitions to its subscribers. The transport holds no
// domain state.
type Transport struct {
	mu             sync.Mutex
	endpoint       string
	dialer         *websocket.Dialer
	conn           *websocket.Conn
	status         string
	intentional    bool
	reconnectDelay time.Duration
	reconnectTimer *time.Timer

	nextID          int
	msgListeners    map[int]MessageFunc
	statusListeners map[int]StatusFunc
	errListeners    map[int]ErrorFunc
	rawListeners    map[int]RawFunc
}

// NewTransport creates a transport for the given ws:// endpoint. A zero
// reconnect delay falls back to the default.
func NewTransport(endpoint string, reconnectDelay time.Duration) *Transport {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Transport{
		endpoint:        endpoint,
		dialer:          websocket.DefaultDialer,
		status:          StatusDisconnected,
		reconnectDelay:  reconnectDelay,
		msgListeners:    make(map[int]MessageFunc),
		statusListeners: make(map[int]StatusFunc),
		errListeners:    make(map[int]ErrorFunc),
		rawListeners:    make(map[int]RawFunc),
	}
}

// Connect opens the socket if it is not already open. Calling Connect on an
// open transport is a no-op. On dial failure the error is reported to error
// listeners and a reconnect is scheduled.
func (t *Transport) Connect() error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	t.intentional = false
	endpoint := t.endpoint
	t.mu.Unlock()

	conn, _, err := t.dialer.Dial(endpoint, nil)
	if err != nil {
		t.setStatus(StatusError)
		t.emitError(fmt.Sprintf("telemetry connect failed: %v", err))
		t.scheduleReconnect()
		return fmt.Errorf("dialing %s: %w", endpoint, err)
	}

	t.mu.Lock()
	// Another Connect may have raced us; keep the first connection.
	if t.conn != nil {
		t.mu.Unlock()
		conn.Close()
		return nil
	}
	t.conn = conn
	t.mu.Unlock()

	t.setStatus(StatusConnected)
	go t.readLoop(conn)
	return nil
}

// OnMessage registers a decoded-batch listener. The returned function
// removes the listener and is safe to call at any time, including from
// within a callback.
func (t *Transport) OnMessage(fn MessageFunc) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.msgListeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.msgListeners, id)
		t.mu.Unlock()
	}
}

// OnStatus registers a status listener. The current status is delivered
// immediately, so a subscriber attaching to an already-open transport sees
// CONNECTED without waiting for a transition.
func (t *Transport) OnStatus(fn StatusFunc) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.statusListeners[id] = fn
	current := t.status
	t.mu.Unlock()
	fn(current)
	return func() {
		t.mu.Lock()
		delete(t.statusListeners, id)
		t.mu.Unlock()
	}
}

// OnError registers a listener for human-readable transport errors.
func (t *Transport) OnError(fn ErrorFunc) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.errListeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.errListeners, id)
		t.mu.Unlock()
	}
}

// OnRaw registers an unfiltered frame listener for diagnostics.
func (t *Transport) OnRaw(fn RawFunc) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.rawListeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.rawListeners, id)
		t.mu.Unlock()
	}
}

// UpdateEndpoint switches the transport to a new endpoint. Idempotent when
// the endpoint is unchanged; otherwise the current connection is torn down
// and a connection to the new endpoint is opened.
func (t *Transport) UpdateEndpoint(endpoint string) error {
	t.mu.Lock()
	if endpoint == t.endpoint {
		t.mu.Unlock()
		return nil
	}
	t.endpoint = endpoint
	t.mu.Unlock()

	t.teardown()
	return t.Connect()
}

// Close tears down the connection and suppresses auto-reconnect.
func (t *Transport) Close() {
	t.teardown()
	t.setStatus(StatusDisconnected)
}

// Status returns the last emitted connection status.
func (t *Transport) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Transport) teardown() {
	t.mu.Lock()
	t.intentional = true
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			intentional := t.intentional
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()

			if !intentional {
				fmt.Printf("[Telemetry] Connection lost: %v\n", err)
				t.setStatus(StatusDisconnected)
				t.scheduleReconnect()
			}
			return
		}
		t.dispatch(data)
	}
}

func (t *Transport) dispatch(data []byte) {
	for _, fn := range t.snapshotRaw() {
		fn(data)
	}

	batch, err := models.DecodeTelemetryFrame(data)
	if err != nil {
		// Malformed frames go to the debug channel only.
		marker := []byte(fmt.Sprintf("PARSE_ERROR: %v", err))
		for _, fn := range t.snapshotRaw() {
			fn(marker)
		}
		return
	}

	t.mu.Lock()
	listeners := make([]MessageFunc, 0, len(t.msgListeners))
	for _, fn := range t.msgListeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(batch)
	}
}

func (t *Transport) snapshotRaw() []RawFunc {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RawFunc, 0, len(t.rawListeners))
	for _, fn := range t.rawListeners {
		out = append(out, fn)
	}
	return out
}

func (t *Transport) setStatus(status string) {
	t.mu.Lock()
	t.status = status
	listeners := make([]StatusFunc, 0, len(t.statusListeners))
	for _, fn := range t.statusListeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(status)
	}
}

func (t *Transport) emitError(msg string) {
	t.mu.Lock()
	listeners := make([]ErrorFunc, 0, len(t.errListeners))
	for _, fn := range t.errListeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(msg)
	}
}

// scheduleReconnect arms exactly one pending reconnect attempt. A pending
// timer or an intentional close suppresses scheduling.
func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reconnectTimer != nil || t.intentional {
		return
	}
	t.reconnectTimer = time.AfterFunc(t.reconnectDelay, func() {
		t.mu.Lock()
		t.reconnectTimer = nil
		intentional := t.intentional
		t.mu.Unlock()
		if intentional {
			return
		}
		if err := t.Connect(); err != nil {
			fmt.Printf("[Telemetry] Reconnect failed: %v\n", err)
		}
	})
}
