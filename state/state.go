package state

import (
	"errors"
	"sync"
)

// Status is the lifecycle phase of a room.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusSelecting Status = "selecting"
	StatusPlaying   Status = "playing"
	StatusClosed    Status = "closed"
)

// ErrTransitionNotAllowed is returned when a lifecycle transition is not allowed.
var ErrTransitionNotAllowed = errors.New("status transition not allowed")

// Machine guards room status changes against the allowed lifecycle:
// waiting -> selecting -> playing, playing/selecting back to waiting when a
// session ends or is abandoned, and any status to closed.
type Machine struct {
	current     Status
	transitions map[Status]map[Status]bool
	mutex       sync.RWMutex
}

func NewMachine() *Machine {
	return &Machine{
		current: StatusWaiting,
		transitions: map[Status]map[Status]bool{
			StatusWaiting: {
				StatusSelecting: true,
				StatusPlaying:   true,
				StatusClosed:    true,
			},
			StatusSelecting: {
				StatusWaiting: true,
				StatusPlaying: true,
				StatusClosed:  true,
			},
			StatusPlaying: {
				StatusWaiting: true,
				StatusClosed:  true,
			},
			StatusClosed: {},
		},
	}
}

func (m *Machine) Current() Status {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

func (m *Machine) Transition(to Status) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if to == m.current {
		return nil
	}
	if allowed, exists := m.transitions[m.current]; !exists || !allowed[to] {
		return ErrTransitionNotAllowed
	}

	m.current = to
	return nil
}
