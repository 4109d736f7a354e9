package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAddTimer_FiresOnce(t *testing.T) {
	manager := NewManager()
	defer manager.Stop()

	var fired atomic.Int32
	manager.AddTimer(50*time.Millisecond, 0, func() {
		fired.Add(1)
	})

	time.Sleep(400 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("Expected one firing, got %d", got)
	}
}

func TestAddTimer_RepeatsOnInterval(t *testing.T) {
	manager := NewManager()
	defer manager.Stop()

	var fired atomic.Int32
	manager.AddTimer(50*time.Millisecond, 150*time.Millisecond, func() {
		fired.Add(1)
	})

	time.Sleep(600 * time.Millisecond)
	if got := fired.Load(); got < 2 {
		t.Errorf("Expected repeated firings, got %d", got)
	}
}

func TestRemoveTimer_CancelsPendingTask(t *testing.T) {
	manager := NewManager()
	defer manager.Stop()

	var fired atomic.Int32
	id := manager.AddTimer(300*time.Millisecond, 0, func() {
		fired.Add(1)
	})
	manager.RemoveTimer(id)

	time.Sleep(600 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("Removed timer should not fire, got %d firings", got)
	}
}

func TestStop_HaltsScheduling(t *testing.T) {
	manager := NewManager()

	var fired atomic.Int32
	manager.AddTimer(200*time.Millisecond, 0, func() {
		fired.Add(1)
	})
	manager.Stop()
	manager.Stop() // idempotent

	time.Sleep(500 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("Stopped manager should not fire tasks, got %d", got)
	}
}
