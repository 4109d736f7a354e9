// room/room.go
package room

import (
	"math/rand"
	"sync"

	"github.com/wfunc/cardroom/engine"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/state"
)

// Player is a lobby member of a room. Score accumulates across sessions and
// resets only at room creation.
type Player struct {
	Name  string
	Ready bool
	Color string
	Score int
}

// ActivePlayer is one seat of a running session. The slice index in
// Room.Active is the seat number.
type ActivePlayer struct {
	Player
	Hand    []string
	Discard []string
	History []string
}

var palette = []string{
	"#e57373", "#64b5f6", "#81c784", "#ffb74d",
	"#ba68c8", "#4db6ac", "#f06292", "#7986cb",
}

func pickColor() string {
	return palette[rand.Intn(len(palette))]
}

// Room is the authoritative record of one lobby. All mutation happens under
// the room lock, held by the service layer for the whole action including the
// engine round-trip.
type Room struct {
	ID      string
	Mode    string
	Host    string
	Warning string

	Players     []*Player
	Active      []*ActivePlayer
	CurrentTurn int // seat index, -1 outside a session

	Channel   engine.Channel
	lifecycle *state.Machine
	mutex     sync.Mutex
}

func NewRoom(id, mode, host string, channel engine.Channel, warning string) *Room {
	r := &Room{
		ID:          id,
		Mode:        mode,
		Host:        host,
		Warning:     warning,
		Channel:     channel,
		CurrentTurn: -1,
		lifecycle:   state.NewMachine(),
	}
	r.addPlayer(host)
	return r
}

func (r *Room) Lock()   { r.mutex.Lock() }
func (r *Room) Unlock() { r.mutex.Unlock() }

func (r *Room) Status() state.Status {
	return r.lifecycle.Current()
}

func (r *Room) SetStatus(to state.Status) error {
	return r.lifecycle.Transition(to)
}

// AddPlayer registers a new player, preserving insertion order. Joining twice
// is a no-op returning the existing entry.
func (r *Room) AddPlayer(name string) *Player {
	return r.addPlayer(name)
}

func (r *Room) addPlayer(name string) *Player {
	if p, ok := r.FindPlayer(name); ok {
		return p
	}
	p := &Player{Name: name, Color: pickColor()}
	r.Players = append(r.Players, p)
	return p
}

func (r *Room) RemovePlayer(name string) bool {
	for i, p := range r.Players {
		if p.Name == name {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) FindPlayer(name string) (*Player, bool) {
	for _, p := range r.Players {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func (r *Room) FindActive(name string) (*ActivePlayer, int) {
	for i, p := range r.Active {
		if p.Name == name {
			return p, i
		}
	}
	return nil, -1
}

func (r *Room) ReadyPlayers() []*Player {
	var ready []*Player
	for _, p := range r.Players {
		if p.Ready {
			ready = append(ready, p)
		}
	}
	return ready
}

// BeginSession seats the given players in order. Seat index is the position
// in the slice.
func (r *Room) BeginSession(players []*Player) {
	r.Active = make([]*ActivePlayer, 0, len(players))
	for _, p := range players {
		r.Active = append(r.Active, &ActivePlayer{Player: *p})
	}
}

// AddScore applies one score delta to a seat, keeping the lobby player's
// cumulative score in step.
func (r *Room) AddScore(seat, delta int) {
	if seat < 0 || seat >= len(r.Active) {
		return
	}
	active := r.Active[seat]
	active.Score += delta
	if p, ok := r.FindPlayer(active.Name); ok {
		p.Score = active.Score
	}
}

// EndSession discards the seats and returns the room to the lobby phase.
// Cumulative scores are copied back to the lobby players first.
func (r *Room) EndSession() {
	for _, active := range r.Active {
		if p, ok := r.FindPlayer(active.Name); ok {
			p.Score = active.Score
		}
	}
	r.Active = nil
	r.CurrentTurn = -1
	r.SetStatus(state.StatusWaiting)
}

// Snapshot is the read-only lobby projection of the room. Hands are never
// included.
func (r *Room) Snapshot() models.RoomView {
	view := models.RoomView{
		ID:      r.ID,
		Mode:    r.Mode,
		Host:    r.Host,
		Status:  string(r.Status()),
		Warning: r.Warning,
		Players: make([]models.PlayerView, 0, len(r.Players)),
	}
	for _, p := range r.Players {
		view.Players = append(view.Players, models.PlayerView{
			Name:  p.Name,
			Ready: p.Ready,
			Color: p.Color,
			Score: p.Score,
		})
	}
	if r.CurrentTurn >= 0 {
		turn := r.CurrentTurn
		view.CurrentTurn = &turn
	}
	return view
}

// ActiveViews copies the seated players, hands included.
func (r *Room) ActiveViews() []models.ActivePlayerView {
	views := make([]models.ActivePlayerView, 0, len(r.Active))
	for _, p := range r.Active {
		views = append(views, models.ActivePlayerView{
			PlayerView: models.PlayerView{
				Name:  p.Name,
				Ready: p.Ready,
				Color: p.Color,
				Score: p.Score,
			},
			Hand:    append([]string(nil), p.Hand...),
			Discard: append([]string(nil), p.Discard...),
			History: append([]string(nil), p.History...),
		})
	}
	return views
}
