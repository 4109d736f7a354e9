package broadcast

import (
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/network"
	"github.com/wfunc/cardroom/session"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockConnection records sent packets; it can be told to fail every send.
type MockConnection struct {
	mutex sync.Mutex
	Sent  []uint16
	Fail  bool
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.Fail {
		return errors.New("connection gone")
	}
	m.Sent = append(m.Sent, msgID)
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) sentCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.Sent)
}

func newWatcher(id string) (*session.Session, *MockConnection) {
	conn := &MockConnection{}
	return session.NewSession(id, conn), conn
}

func TestHub_PublishReachesAllWatchers(t *testing.T) {
	hub := NewHub()

	s1, c1 := newWatcher("w1")
	s2, c2 := newWatcher("w2")
	hub.Subscribe("room1", s1)
	hub.Subscribe("room1", s2)

	hub.Publish("room1", network.MsgTypeRoomState, map[string]string{"hello": "world"})

	if c1.sentCount() != 1 || c2.sentCount() != 1 {
		t.Errorf("Expected both watchers to receive the event, got %d and %d", c1.sentCount(), c2.sentCount())
	}
}

func TestHub_PublishSkipsFailedConnections(t *testing.T) {
	hub := NewHub()

	s1, c1 := newWatcher("w1")
	c1.Fail = true
	s2, c2 := newWatcher("w2")
	hub.Subscribe("room1", s1)
	hub.Subscribe("room1", s2)

	hub.Publish("room1", network.MsgTypePlay, map[string]string{})

	if c2.sentCount() != 1 {
		t.Errorf("Healthy watcher should still receive the event, got %d sends", c2.sentCount())
	}
}

func TestHub_PublishToUnknownRoomIsNoop(t *testing.T) {
	hub := NewHub()
	// Must not panic or block.
	hub.Publish("missing", network.MsgTypeRoomState, map[string]string{})
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()

	s1, c1 := newWatcher("w1")
	hub.Subscribe("room1", s1)
	hub.Unsubscribe(s1)

	hub.Publish("room1", network.MsgTypeRoomState, map[string]string{})
	if c1.sentCount() != 0 {
		t.Errorf("Unsubscribed watcher should not receive events, got %d", c1.sentCount())
	}
	if s1.RoomID != "" {
		t.Errorf("Unsubscribe should clear the session's room, got %q", s1.RoomID)
	}

	// Safe for sessions that never subscribed.
	s2, _ := newWatcher("w2")
	hub.Unsubscribe(s2)
}

func TestHub_SubscribeMovesBetweenRooms(t *testing.T) {
	hub := NewHub()

	s1, c1 := newWatcher("w1")
	hub.Subscribe("room1", s1)
	hub.Subscribe("room2", s1)

	hub.Publish("room1", network.MsgTypeRoomState, map[string]string{})
	if c1.sentCount() != 0 {
		t.Error("Watcher should have left room1")
	}

	hub.Publish("room2", network.MsgTypeRoomState, map[string]string{})
	if c1.sentCount() != 1 {
		t.Errorf("Watcher should receive room2 events, got %d", c1.sentCount())
	}
}

func TestHub_DropRoom(t *testing.T) {
	hub := NewHub()

	s1, c1 := newWatcher("w1")
	hub.Subscribe("room1", s1)
	hub.DropRoom("room1")

	if s1.RoomID != "" {
		t.Errorf("DropRoom should detach watchers, session still in %q", s1.RoomID)
	}
	hub.Publish("room1", network.MsgTypeRoomClosed, map[string]string{})
	if c1.sentCount() != 0 {
		t.Errorf("Dropped room should have no watchers, got %d sends", c1.sentCount())
	}
	if hub.Watchers("room1") != 0 {
		t.Errorf("Expected zero watchers, got %d", hub.Watchers("room1"))
	}
}
