package room

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/wfunc/cardroom/engine"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/state"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockChannel is a test double for the engine.Channel interface.
type MockChannel struct {
	ShutdownCalled bool
}

func (m *MockChannel) Send(ctx context.Context, command string, lineCount int) ([]string, error) {
	return nil, nil
}
func (m *MockChannel) Shutdown()    { m.ShutdownCalled = true }
func (m *MockChannel) Closed() bool { return false }

func okSpawn(roomID, mode string) (engine.Channel, error) {
	return &MockChannel{}, nil
}

func TestRegistry_CreateAndGet(t *testing.T) {
	registry := NewRegistry(okSpawn)

	r := registry.Create("tractor", "alice")
	if r == nil {
		t.Fatal("Create should not return nil")
	}
	if r.Mode != "tractor" || r.Host != "alice" {
		t.Errorf("Unexpected room fields: mode=%q host=%q", r.Mode, r.Host)
	}
	if r.Warning != "" {
		t.Errorf("Expected no warning, got %q", r.Warning)
	}
	if r.Channel == nil {
		t.Error("Expected a live engine channel")
	}
	if r.Status() != state.StatusWaiting {
		t.Errorf("Expected waiting status, got %q", r.Status())
	}
	if len(r.Players) != 1 || r.Players[0].Name != "alice" {
		t.Errorf("Host should be seated at creation, players: %v", r.Players)
	}

	got, err := registry.Get(r.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != r {
		t.Error("Get should return the same room instance")
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	registry := NewRegistry(okSpawn)

	_, err := registry.Get("no-such-room")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestRegistry_SpawnFailureStillCreatesRoom(t *testing.T) {
	registry := NewRegistry(func(roomID, mode string) (engine.Channel, error) {
		return nil, errors.New("binary not found")
	})

	r := registry.Create("holdem", "bob")
	if r.Warning != WarningEngineDown {
		t.Errorf("Expected engine warning, got %q", r.Warning)
	}
	if r.Channel != nil {
		t.Error("Channel should be nil when spawn fails")
	}

	if _, err := registry.Get(r.ID); err != nil {
		t.Errorf("Degraded room should still be registered: %v", err)
	}
}

func TestRegistry_Remove(t *testing.T) {
	registry := NewRegistry(okSpawn)
	r := registry.Create("tractor", "alice")

	registry.Remove(r.ID)
	if _, err := registry.Get(r.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound after Remove, got %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Expected zero rooms, got %d", registry.Count())
	}
}

func TestRegistry_ListFiltersByMode(t *testing.T) {
	registry := NewRegistry(okSpawn)
	registry.Create("tractor", "alice")
	registry.Create("tractor", "bob")
	registry.Create("holdem", "carol")

	if got := len(registry.List("")); got != 3 {
		t.Errorf("Expected 3 rooms unfiltered, got %d", got)
	}
	if got := len(registry.List("tractor")); got != 2 {
		t.Errorf("Expected 2 tractor rooms, got %d", got)
	}
	if got := len(registry.List("go-fish")); got != 0 {
		t.Errorf("Expected 0 go-fish rooms, got %d", got)
	}
}

func TestRoom_AddPlayerKeepsOrderAndUniqueness(t *testing.T) {
	r := NewRoom("room1", "tractor", "alice", &MockChannel{}, "")

	r.AddPlayer("bob")
	r.AddPlayer("carol")
	r.AddPlayer("bob") // duplicate join is a no-op

	if len(r.Players) != 3 {
		t.Fatalf("Expected 3 unique players, got %d", len(r.Players))
	}
	for i, expected := range []string{"alice", "bob", "carol"} {
		if r.Players[i].Name != expected {
			t.Errorf("Seat %d: expected %q, got %q", i, expected, r.Players[i].Name)
		}
	}
}

func TestRoom_RemovePlayer(t *testing.T) {
	r := NewRoom("room1", "tractor", "alice", &MockChannel{}, "")
	r.AddPlayer("bob")

	if !r.RemovePlayer("bob") {
		t.Fatal("RemovePlayer should report success for a member")
	}
	if r.RemovePlayer("bob") {
		t.Error("RemovePlayer should report failure for a non-member")
	}
	if len(r.Players) != 1 {
		t.Errorf("Expected 1 player left, got %d", len(r.Players))
	}
}

func TestRoom_SessionLifecycle(t *testing.T) {
	r := NewRoom("room1", "tractor", "alice", &MockChannel{}, "")
	r.AddPlayer("bob")
	for _, p := range r.Players {
		p.Ready = true
	}

	r.SetStatus(state.StatusPlaying)
	r.BeginSession(r.ReadyPlayers())
	r.CurrentTurn = 1

	if len(r.Active) != 2 {
		t.Fatalf("Expected 2 seats, got %d", len(r.Active))
	}

	r.AddScore(0, 5)
	r.AddScore(1, -2)
	r.AddScore(7, 100) // out of range, ignored

	if r.Active[0].Score != 5 || r.Active[1].Score != -2 {
		t.Errorf("Unexpected seat scores: %d, %d", r.Active[0].Score, r.Active[1].Score)
	}
	if r.Players[0].Score != 5 {
		t.Errorf("Lobby score should track seat score, got %d", r.Players[0].Score)
	}

	r.EndSession()
	if r.Status() != state.StatusWaiting {
		t.Errorf("Expected waiting after session end, got %q", r.Status())
	}
	if r.Active != nil {
		t.Error("Active seats should be cleared at session end")
	}
	if r.CurrentTurn != -1 {
		t.Errorf("Current turn should reset, got %d", r.CurrentTurn)
	}
	if r.Players[1].Score != -2 {
		t.Errorf("Score must persist across sessions, got %d", r.Players[1].Score)
	}
}

func TestRoom_SnapshotHidesHands(t *testing.T) {
	r := NewRoom("room1", "tractor", "alice", &MockChannel{}, "")
	r.Players[0].Ready = true
	r.SetStatus(state.StatusPlaying)
	r.BeginSession(r.ReadyPlayers())
	r.Active[0].Hand = []string{"a", "b"}
	r.CurrentTurn = 0

	view := r.Snapshot()
	if view.Status != "playing" {
		t.Errorf("Expected playing status, got %q", view.Status)
	}
	if view.CurrentTurn == nil || *view.CurrentTurn != 0 {
		t.Errorf("Expected current turn 0, got %v", view.CurrentTurn)
	}
	if len(view.Players) != 1 || view.Players[0].Name != "alice" {
		t.Errorf("Unexpected players in snapshot: %v", view.Players)
	}

	actives := r.ActiveViews()
	if len(actives) != 1 || len(actives[0].Hand) != 2 {
		t.Errorf("ActiveViews should carry hands, got %v", actives)
	}
}
