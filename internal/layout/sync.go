package layout

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/line-kiosk/backend/internal/models"
)

// DefaultSyncReconnectDelay matches the telemetry transport's fixed
// reconnect delay so both realtime connections recover uniformly.
const DefaultSyncReconnectDelay = 5 * time.Second

// SyncClient maintains the persistent connection to the layout-coordination
// endpoint. It forwards lock protocol frames into the state machine, applies
// LAYOUT_UPDATED broadcasts to the document store, and sends the three
// command frames.
type SyncClient struct {
	mu             sync.Mutex
	endpoint       string
	identity       string
	dialer         *websocket.Dialer
	conn           *websocket.Conn
	writeMu        sync.Mutex
	intentional    bool
	reconnectDelay time.Duration
	reconnectTimer *time.Timer

	machine *LockMachine
	docs    *DocumentStore
	onError func(msg string)
}

// NewSyncClient creates a sync client bound to a lock machine and document
// store. identity is the user name carried in REQUEST_LOCK frames.
func NewSyncClient(endpoint, identity string, machine *LockMachine, docs *DocumentStore) *SyncClient {
	return &SyncClient{
		endpoint:       endpoint,
		identity:       identity,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: DefaultSyncReconnectDelay,
		machine:        machine,
		docs:           docs,
	}
}

// OnError registers a callback for protocol and transport errors surfaced as
// dismissible notices.
func (c *SyncClient) OnError(fn func(msg string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Connect opens the coordination socket if it is not already open.
func (c *SyncClient) Connect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.intentional = false
	endpoint := c.endpoint
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(endpoint, nil)
	if err != nil {
		c.emitError(fmt.Sprintf("layout sync connect failed: %v", err))
		c.scheduleReconnect()
		return fmt.Errorf("dialing %s: %w", endpoint, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// RequestLock sends a lock request carrying this client's identity.
func (c *SyncClient) RequestLock() error {
	c.machine.RequestSent()
	return c.send(models.SyncMessage{Type: models.SyncTypeRequestLock, User: c.identity})
}

// ReleaseLock gives up a held lock. The local machine transitions
// immediately; the broker broadcast informs everyone else.
func (c *SyncClient) ReleaseLock() error {
	c.machine.Release()
	return c.send(models.SyncMessage{Type: models.SyncTypeReleaseLock})
}

// SaveLayout pushes the full local document to the broker for persistence
// and broadcast. The broker answers with LAYOUT_UPDATED on success or an
// error frame when the sender does not hold the lock.
func (c *SyncClient) SaveLayout() error {
	doc := c.docs.Document()
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding layout document: %w", err)
	}
	return c.send(models.SyncMessage{Type: models.SyncTypeSaveLayout, Payload: payload})
}

// Close tears down the connection and suppresses auto-reconnect.
func (c *SyncClient) Close() {
	c.mu.Lock()
	c.intentional = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *SyncClient) send(msg models.SyncMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("layout sync: not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (c *SyncClient) readLoop(conn *websocket.Conn) {
	for {
		var msg models.SyncMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			intentional := c.intentional
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()

			if !intentional {
				fmt.Printf("[LayoutSync] Connection lost: %v\n", err)
				c.machine.ConnectionLost()
				c.scheduleReconnect()
			}
			return
		}
		c.handle(msg)
	}
}

func (c *SyncClient) handle(msg models.SyncMessage) {
	switch msg.Type {
	case models.SyncTypeLockGranted:
		c.machine.HandleGranted()
	case models.SyncTypeLockDenied:
		c.machine.HandleDenied(msg.User)
	case models.SyncTypeLockStatus:
		c.machine.HandleLockStatus(msg.IsLocked, msg.User)
	case models.SyncTypeLayoutUpdated:
		if err := c.docs.ApplyFullSync(msg.Payload); err != nil {
			c.emitError(fmt.Sprintf("layout update rejected: %v", err))
		}
	case models.SyncTypeError:
		c.emitError(msg.Message)
	default:
		fmt.Printf("[LayoutSync] Ignoring unknown frame type %q\n", msg.Type)
	}
}

func (c *SyncClient) emitError(msg string) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (c *SyncClient) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconnectTimer != nil || c.intentional {
		return
	}
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		intentional := c.intentional
		c.mu.Unlock()
		if intentional {
			return
		}
		if err := c.Connect(); err != nil {
			fmt.Printf("[LayoutSync] Reconnect failed: %v\n", err)
		}
	})
}
