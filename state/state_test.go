package state

import (
	"testing"
)

func TestMachine_InitialStatus(t *testing.T) {
	m := NewMachine()
	if m.Current() != StatusWaiting {
		t.Errorf("Expected initial status %q, got %q", StatusWaiting, m.Current())
	}
}

func TestMachine_SessionLifecycle(t *testing.T) {
	m := NewMachine()

	steps := []Status{StatusSelecting, StatusPlaying, StatusWaiting, StatusPlaying, StatusWaiting}
	for _, to := range steps {
		if err := m.Transition(to); err != nil {
			t.Fatalf("Transition to %q failed: %v", to, err)
		}
		if m.Current() != to {
			t.Fatalf("Expected status %q, got %q", to, m.Current())
		}
	}
}

func TestMachine_BlockedTransitions(t *testing.T) {
	m := NewMachine()

	if err := m.Transition(StatusPlaying); err != nil {
		t.Fatalf("waiting -> playing should be allowed: %v", err)
	}
	if err := m.Transition(StatusSelecting); err != ErrTransitionNotAllowed {
		t.Errorf("playing -> selecting should be blocked, got %v", err)
	}
	if m.Current() != StatusPlaying {
		t.Errorf("Blocked transition must not change status, got %q", m.Current())
	}
}

func TestMachine_SelfTransitionIsNoop(t *testing.T) {
	m := NewMachine()
	if err := m.Transition(StatusWaiting); err != nil {
		t.Errorf("Self transition should be a no-op, got %v", err)
	}
}

func TestMachine_ClosedIsTerminal(t *testing.T) {
	m := NewMachine()

	if err := m.Transition(StatusClosed); err != nil {
		t.Fatalf("waiting -> closed should be allowed: %v", err)
	}
	if err := m.Transition(StatusWaiting); err != ErrTransitionNotAllowed {
		t.Errorf("closed must be terminal, got %v", err)
	}
}
