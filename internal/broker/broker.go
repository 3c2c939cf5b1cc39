// Package broker implements the server-side lock broker: single-writer
// coordination over the shared layout document and its save/broadcast path.
package broker

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/line-kiosk/backend/internal/models"
	"github.com/line-kiosk/backend/internal/observability"
)

// Persistence is the slice of the layout store the broker needs.
type Persistence interface {
	LoadRaw() ([]byte, error)
	SaveRaw(data []byte) error
}

// client is one connected layout-sync session.
type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) send(msg models.SyncMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Broker owns the process-wide lock state: at most one holder at any time,
// holder identity tied to the granting connection. A holder's disconnect
// force-releases the lock exactly like an explicit release.
type Broker struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	lockHeld   bool
	lockHolder string
	lockConn   *client

	store            Persistence
	metrics          *observability.Metrics
	saveRequiresLock bool
}

// New creates a broker over the given layout persistence.
func New(store Persistence, metrics *observability.Metrics, saveRequiresLock bool) *Broker {
	return &Broker{
		clients:          make(map[*client]struct{}),
		store:            store,
		metrics:          metrics,
		saveRequiresLock: saveRequiresLock,
	}
}

// LockState returns the current lock state and holder for diagnostics.
func (b *Broker) LockState() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lockHeld, b.lockHolder
}

// Serve runs the protocol loop for one upgraded connection. Blocks until the
// peer disconnects; the caller owns the upgrade.
func (b *Broker) Serve(conn *websocket.Conn) {
	c := &client{id: uuid.New().String()[:8], conn: conn}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	locked, holder := b.lockHeld, b.lockHolder
	count := len(b.clients)
	b.mu.Unlock()
	b.metrics.SyncClients.Set(float64(count))

	fmt.Printf("[LockBroker] Client %s connected (%d total)\n", c.id, count)

	// Push lock status immediately so a reconnecting client leaves its
	// LOCK_UNKNOWN state without waiting for the next transition.
	if err := c.send(models.SyncMessage{Type: models.SyncTypeLockStatus, IsLocked: locked, User: holder}); err != nil {
		fmt.Printf("[LockBroker] Failed to send initial status to %s: %v\n", c.id, err)
	}

	for {
		var msg models.SyncMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("[LockBroker] Client %s read error: %v\n", c.id, err)
			}
			break
		}

		switch msg.Type {
		case models.SyncTypeRequestLock:
			b.handleRequestLock(c, msg.User)
		case models.SyncTypeReleaseLock:
			b.handleReleaseLock(c)
		case models.SyncTypeSaveLayout:
			b.handleSaveLayout(c, msg.Payload)
		default:
			c.send(models.SyncMessage{
				Type:    models.SyncTypeError,
				Message: "unknown frame type: " + msg.Type,
			})
		}
	}

	b.disconnect(c)
}

// handleRequestLock grants the lock when it is free or already held by the
// requesting connection (idempotent duplicate); any other holder denies.
func (b *Broker) handleRequestLock(c *client, user string) {
	b.mu.Lock()
	if b.lockHeld && b.lockConn != c {
		holder := b.lockHolder
		b.mu.Unlock()
		b.metrics.LockDenials.Inc()
		fmt.Printf("[LockBroker] Denied lock to %s: held by %s\n", c.id, holder)
		c.send(models.SyncMessage{Type: models.SyncTypeLockDenied, User: holder})
		return
	}
	b.lockHeld = true
	b.lockHolder = user
	b.lockConn = c
	b.mu.Unlock()

	b.metrics.LockGrants.Inc()
	b.metrics.LockHeld.Set(1)
	fmt.Printf("[LockBroker] Granted lock to %s (%s)\n", user, c.id)

	c.send(models.SyncMessage{Type: models.SyncTypeLockGranted})
	b.broadcastExcept(c, models.SyncMessage{
		Type:     models.SyncTypeLockStatus,
		IsLocked: true,
		User:     user,
	})
}

func (b *Broker) handleReleaseLock(c *client) {
	b.mu.Lock()
	if b.lockConn != c {
		b.mu.Unlock()
		return
	}
	user := b.lockHolder
	b.clearLockLocked()
	b.mu.Unlock()

	b.metrics.LockHeld.Set(0)
	fmt.Printf("[LockBroker] Lock released by %s (%s)\n", user, c.id)

	b.broadcastExcept(c, models.SyncMessage{Type: models.SyncTypeLockStatus, IsLocked: false})
}

// handleSaveLayout persists the pushed document and broadcasts it to every
// connection, the saver included. Saves from a connection that does not hold
// the lock are rejected when lock enforcement is on.
func (b *Broker) handleSaveLayout(c *client, payload []byte) {
	if b.saveRequiresLock {
		b.mu.Lock()
		holderConn := b.lockConn
		b.mu.Unlock()
		if holderConn != c {
			c.send(models.SyncMessage{
				Type:    models.SyncTypeError,
				Message: "layout save rejected: edit lock not held",
			})
			return
		}
	}

	if err := b.store.SaveRaw(payload); err != nil {
		fmt.Printf("[LockBroker] Save from %s failed: %v\n", c.id, err)
		c.send(models.SyncMessage{
			Type:    models.SyncTypeError,
			Message: "layout save failed: " + err.Error(),
		})
		return
	}

	b.metrics.LayoutSaves.Inc()
	fmt.Printf("[LockBroker] Layout saved by %s (%d bytes)\n", c.id, len(payload))

	b.broadcast(models.SyncMessage{Type: models.SyncTypeLayoutUpdated, Payload: payload})
}

// disconnect unregisters a connection and force-releases its lock, if held,
// exactly like an explicit release.
func (b *Broker) disconnect(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	heldLock := b.lockConn == c
	if heldLock {
		b.clearLockLocked()
	}
	count := len(b.clients)
	b.mu.Unlock()

	b.metrics.SyncClients.Set(float64(count))
	fmt.Printf("[LockBroker] Client %s disconnected (%d total)\n", c.id, count)

	if heldLock {
		b.metrics.LockHeld.Set(0)
		fmt.Printf("[LockBroker] Lock force-released: holder %s disconnected\n", c.id)
		b.broadcast(models.SyncMessage{Type: models.SyncTypeLockStatus, IsLocked: false})
	}
}

func (b *Broker) clearLockLocked() {
	b.lockHeld = false
	b.lockHolder = ""
	b.lockConn = nil
}

func (b *Broker) broadcast(msg models.SyncMessage) {
	b.broadcastExcept(nil, msg)
}

func (b *Broker) broadcastExcept(skip *client, msg models.SyncMessage) {
	b.mu.Lock()
	targets := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		if c != skip {
			targets = append(targets, c)
		}
	}
	b.mu.Unlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			fmt.Printf("[LockBroker] Broadcast to %s failed: %v\n", c.id, err)
		}
	}
}
