package layout

import (
	"sync"
)

// LockState is the client-side view of the edit lock.
type LockState string

const (
	// StateUnlocked: nobody holds the lock as far as this client knows.
	StateUnlocked LockState = "UNLOCKED"
	// StateLockPending: a request was sent, awaiting grant or deny.
	StateLockPending LockState = "LOCK_PENDING"
	// StateEditing: this client holds the lock.
	StateEditing LockState = "EDITING"
	// StateLockedByOther: the lock is observed held elsewhere.
	StateLockedByOther LockState = "LOCKED_BY_OTHER"
	// StateLockUnknown: the sync connection is down; lock status cannot be
	// trusted until the broker pushes it again.
	StateLockUnknown LockState = "LOCK_UNKNOWN"
)

// LockMachine is the client-side edit-lock state machine. Callbacks fire
// outside the internal lock and may call back into the machine.
type LockMachine struct {
	mu     sync.Mutex
	state  LockState
	holder string
	self   string

	onChange func(state LockState, holder string)
	onDeny   func(holder string)
	onEvict  func()
}

// NewLockMachine creates a machine for the given client identity.
func NewLockMachine(self string) *LockMachine {
	return &LockMachine{state: StateUnlocked, self: self}
}

// OnChange registers the state-transition callback.
func (m *LockMachine) OnChange(fn func(state LockState, holder string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// OnDeny registers the callback surfaced as an auto-dismissing notice naming
// the current holder.
func (m *LockMachine) OnDeny(fn func(holder string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDeny = fn
}

// OnEvict registers the callback fired when an externally held lock forces
// this client out of edit mode (close settings surfaces, drop pending edits).
func (m *LockMachine) OnEvict(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// State returns the current state and observed holder.
func (m *LockMachine) State() (LockState, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.holder
}

// Editing reports whether this client currently holds the lock.
func (m *LockMachine) Editing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateEditing
}

// RequestSent records that a lock request is in flight.
func (m *LockMachine) RequestSent() {
	m.transition(StateLockPending, m.selfLocked())
}

// HandleGranted moves a pending request into editing.
func (m *LockMachine) HandleGranted() {
	m.transition(StateEditing, m.selfLocked())
}

// HandleDenied returns a pending request to unlocked and surfaces the
// current holder.
func (m *LockMachine) HandleDenied(holder string) {
	m.mu.Lock()
	deny := m.onDeny
	m.mu.Unlock()
	m.transition(StateUnlocked, "")
	if deny != nil {
		deny(holder)
	}
}

// Release moves editing back to unlocked.
func (m *LockMachine) Release() {
	m.transition(StateUnlocked, "")
}

// HandleLockStatus applies a broadcast lock-status observation. A lock held
// by another identity forces this client out of edit mode from any state.
func (m *LockMachine) HandleLockStatus(isLocked bool, holder string) {
	m.mu.Lock()
	self := m.self
	wasEditing := m.state == StateEditing || m.state == StateLockPending
	evict := m.onEvict
	m.mu.Unlock()

	switch {
	case isLocked && holder != self:
		m.transition(StateLockedByOther, holder)
		if wasEditing && evict != nil {
			evict()
		}
	case isLocked && holder == self:
		m.transition(StateEditing, holder)
	default:
		m.transition(StateUnlocked, "")
	}
}

// ConnectionLost marks the lock status as unknown until the broker pushes it
// again after reconnect. The client must not assume UNLOCKED here.
func (m *LockMachine) ConnectionLost() {
	m.transition(StateLockUnknown, "")
}

func (m *LockMachine) selfLocked() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.self
}

func (m *LockMachine) transition(state LockState, holder string) {
	m.mu.Lock()
	if m.state == state && m.holder == holder {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.holder = holder
	notify := m.onChange
	m.mu.Unlock()
	if notify != nil {
		notify(state, holder)
	}
}
