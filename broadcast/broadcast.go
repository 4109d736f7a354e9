// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/session"
)

// Publisher fans room events out to live watchers.
type Publisher interface {
	Publish(roomID string, msgID uint16, payload interface{})
}

// Hub maintains the roomID -> watcher set relation. The hub never owns
// connection lifetime; sessions unsubscribe themselves on close.
type Hub struct {
	subscribers map[string]map[string]*session.Session
	mutex       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[string]*session.Session),
	}
}

// Subscribe attaches a session to one room, detaching it from any previous
// subscription first.
func (h *Hub) Subscribe(roomID string, s *session.Session) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if s.RoomID != "" && s.RoomID != roomID {
		h.drop(s.RoomID, s.ID)
	}
	watchers, exists := h.subscribers[roomID]
	if !exists {
		watchers = make(map[string]*session.Session)
		h.subscribers[roomID] = watchers
	}
	watchers[s.ID] = s
	s.RoomID = roomID
}

// Unsubscribe detaches a session. Safe to call for sessions that never
// subscribed or whose room is already gone.
func (h *Hub) Unsubscribe(s *session.Session) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if s.RoomID == "" {
		return
	}
	h.drop(s.RoomID, s.ID)
	s.RoomID = ""
}

func (h *Hub) drop(roomID, sessionID string) {
	if watchers, exists := h.subscribers[roomID]; exists {
		delete(watchers, sessionID)
		if len(watchers) == 0 {
			delete(h.subscribers, roomID)
		}
	}
}

// DropRoom clears the subscriber set of a closed room. Sessions keep their
// connections; they just stop receiving events.
func (h *Hub) DropRoom(roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, s := range h.subscribers[roomID] {
		s.RoomID = ""
	}
	delete(h.subscribers, roomID)
}

// Publish delivers one event to every current watcher of the room. Delivery
// is fire and forget: a failed send never blocks the others.
func (h *Hub) Publish(roomID string, msgID uint16, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("broadcast marshal failed for room %s: %v", roomID, err)
		return
	}

	for _, s := range h.watchers(roomID) {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("broadcast to session %s failed: %v", s.GetID(), err)
			continue
		}
	}
}

// watchers returns a snapshot copy so delivery happens outside the lock.
func (h *Hub) watchers(roomID string) []*session.Session {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	watchers := make([]*session.Session, 0, len(h.subscribers[roomID]))
	for _, s := range h.subscribers[roomID] {
		watchers = append(watchers, s)
	}
	return watchers
}

// Watchers reports the current subscriber count of a room, for metrics.
func (h *Hub) Watchers(roomID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subscribers[roomID])
}
