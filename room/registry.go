// room/registry.go
package room

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/wfunc/cardroom/engine"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
)

var ErrRoomNotFound = errors.New("room not found")

// WarningEngineDown flags a room whose rules engine failed to start. The room
// stays visible in the lobby; session actions fail until the host ends it.
const WarningEngineDown = "rules engine failed to start"

// SpawnFunc launches the rules-engine process for one room.
type SpawnFunc func(roomID, mode string) (engine.Channel, error)

// Registry owns every live room, keyed by id.
type Registry struct {
	rooms map[string]*Room
	spawn SpawnFunc
	mutex sync.RWMutex
}

func NewRegistry(spawn SpawnFunc) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		spawn: spawn,
	}
}

// Create allocates a room and spawns its engine channel. A spawn failure
// still creates the room, flagged with a warning, so the lobby stays visible.
func (reg *Registry) Create(mode, host string) *Room {
	id := uuid.New().String()

	var warning string
	channel, err := reg.spawn(id, mode)
	if err != nil {
		logger.Log.Warnf("room %s: engine spawn failed: %v", id, err)
		channel = nil
		warning = WarningEngineDown
	}

	r := NewRoom(id, mode, host, channel, warning)

	reg.mutex.Lock()
	reg.rooms[id] = r
	reg.mutex.Unlock()
	return r
}

func (reg *Registry) Get(id string) (*Room, error) {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()

	r, exists := reg.rooms[id]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove detaches the room. The caller shuts down the engine channel first.
func (reg *Registry) Remove(id string) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	delete(reg.rooms, id)
}

// List returns lobby snapshots, optionally filtered by mode.
func (reg *Registry) List(modeFilter string) []models.RoomView {
	reg.mutex.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mutex.RUnlock()

	views := make([]models.RoomView, 0, len(rooms))
	for _, r := range rooms {
		if modeFilter != "" && r.Mode != modeFilter {
			continue
		}
		r.Lock()
		views = append(views, r.Snapshot())
		r.Unlock()
	}
	return views
}

// Count reports the number of live rooms, for metrics.
func (reg *Registry) Count() int {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	return len(reg.rooms)
}
