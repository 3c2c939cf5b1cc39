package layout

import (
	"testing"
)

func TestLockMachineGrantFlow(t *testing.T) {
	m := NewLockMachine("alice")

	if state, _ := m.State(); state != StateUnlocked {
		t.Fatalf("initial state = %s", state)
	}

	m.RequestSent()
	if state, _ := m.State(); state != StateLockPending {
		t.Fatalf("state after request = %s", state)
	}

	m.HandleGranted()
	if state, _ := m.State(); state != StateEditing {
		t.Fatalf("state after grant = %s", state)
	}
	if !m.Editing() {
		t.Error("Editing() = false while holding the lock")
	}

	m.Release()
	if state, _ := m.State(); state != StateUnlocked {
		t.Fatalf("state after release = %s", state)
	}
}

func TestLockMachineDenySurfacesHolder(t *testing.T) {
	m := NewLockMachine("alice")

	var denied string
	m.OnDeny(func(holder string) { denied = holder })

	m.RequestSent()
	m.HandleDenied("bob")

	if state, _ := m.State(); state != StateUnlocked {
		t.Fatalf("state after deny = %s", state)
	}
	if denied != "bob" {
		t.Errorf("deny callback holder = %q, want bob", denied)
	}
}

func TestLockMachineObservedLockEvicts(t *testing.T) {
	m := NewLockMachine("alice")

	evicted := false
	m.OnEvict(func() { evicted = true })

	m.RequestSent()
	m.HandleGranted()

	// Another client somehow took the lock: forced out of edit mode.
	m.HandleLockStatus(true, "bob")

	state, holder := m.State()
	if state != StateLockedByOther || holder != "bob" {
		t.Fatalf("state = %s holder = %q", state, holder)
	}
	if !evicted {
		t.Error("eviction callback did not fire")
	}

	m.HandleLockStatus(false, "")
	if state, _ := m.State(); state != StateUnlocked {
		t.Fatalf("state after unlock broadcast = %s", state)
	}
}

func TestLockMachineOwnLockStatusKeepsEditing(t *testing.T) {
	m := NewLockMachine("alice")
	m.RequestSent()
	m.HandleGranted()

	// The broker may echo our own lock back on reconnect.
	m.HandleLockStatus(true, "alice")
	if state, _ := m.State(); state != StateEditing {
		t.Fatalf("state = %s, want EDITING for own lock", state)
	}
}

func TestLockMachineConnectionLostIsExplicitUnknown(t *testing.T) {
	m := NewLockMachine("alice")
	m.HandleLockStatus(true, "bob")

	m.ConnectionLost()
	if state, _ := m.State(); state != StateLockUnknown {
		t.Fatalf("state = %s, want LOCK_UNKNOWN", state)
	}
	if m.Editing() {
		t.Error("editing while lock status unknown")
	}

	// Reconnect: broker pushes current status, resolving the unknown.
	m.HandleLockStatus(false, "")
	if state, _ := m.State(); state != StateUnlocked {
		t.Fatalf("state = %s after status push", state)
	}
}

func TestLockMachineChangeCallback(t *testing.T) {
	m := NewLockMachine("alice")

	var transitions []LockState
	m.OnChange(func(state LockState, _ string) { transitions = append(transitions, state) })

	m.RequestSent()
	m.RequestSent() // duplicate: no transition
	m.HandleGranted()
	m.Release()

	want := []LockState{StateLockPending, StateEditing, StateUnlocked}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}
