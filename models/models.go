// models/models.go
package models

import (
	"time"
)

// PlayerView is the lobby-visible projection of a seated player.
type PlayerView struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Color string `json:"color"`
	Score int    `json:"score"`
}

// ActivePlayerView exposes one seat of a running session, including the
// private hand. The request layer decides who gets to see it.
type ActivePlayerView struct {
	PlayerView
	Hand    []string `json:"hand"`
	Discard []string `json:"discard"`
	History []string `json:"history"`
}

// RoomView is the snapshot returned by every room action and pushed on every
// state broadcast. CurrentTurn is nil outside a session.
type RoomView struct {
	ID          string       `json:"id"`
	Mode        string       `json:"mode"`
	Host        string       `json:"host"`
	Status      string       `json:"status"`
	Players     []PlayerView `json:"players"`
	CurrentTurn *int         `json:"current_turn,omitempty"`
	Warning     string       `json:"warning,omitempty"`
}

// StartResult reports the outcome of a start action. When the ready count
// exceeds the engine's maximum and no subset was supplied, NeedsSelection is
// set together with the allowed range and the ready names.
type StartResult struct {
	Room           RoomView           `json:"room"`
	ActivePlayers  []ActivePlayerView `json:"active_players,omitempty"`
	CurrentTurn    *int               `json:"current_turn,omitempty"`
	StartSeat      *int               `json:"start_seat,omitempty"`
	NeedsSelection bool               `json:"needs_selection,omitempty"`
	MinPlayers     int                `json:"min_players,omitempty"`
	MaxPlayers     int                `json:"max_players,omitempty"`
	ReadyPlayers   []string           `json:"ready_players,omitempty"`
}

// PlayResult reports the outcome of a play action.
type PlayResult struct {
	Room          RoomView           `json:"room"`
	ActivePlayers []ActivePlayerView `json:"active_players,omitempty"`
	Ended         bool               `json:"ended,omitempty"`
}

// PointResult reports a score round.
type PointResult struct {
	Room          RoomView           `json:"room"`
	ActivePlayers []ActivePlayerView `json:"active_players,omitempty"`
	Scores        []int              `json:"scores"`
	CurrentTurn   *int               `json:"current_turn,omitempty"`
	Ended         bool               `json:"ended"`
}

// Live-update event payloads, one per broadcast message ID.

type StateEvent struct {
	Room    RoomView `json:"room"`
	Warning string   `json:"warning,omitempty"`
}

type SessionStartEvent struct {
	Room          RoomView           `json:"room"`
	ActivePlayers []ActivePlayerView `json:"active_players"`
	CurrentTurn   *int               `json:"current_turn"`
	StartSeat     int                `json:"start_seat"`
}

type PlayEvent struct {
	Room          RoomView           `json:"room"`
	Player        string             `json:"player"`
	Cards         []string           `json:"cards"`
	ActivePlayers []ActivePlayerView `json:"active_players"`
}

type ScoreRoundEvent struct {
	Room          RoomView           `json:"room"`
	Scores        []int              `json:"scores"`
	Ended         bool               `json:"ended"`
	ActivePlayers []ActivePlayerView `json:"active_players"`
	CurrentTurn   *int               `json:"current_turn,omitempty"`
}

type RoomClosedEvent struct {
	Reason string `json:"reason"`
}

type RedirectEvent struct {
	Players []string `json:"players"`
}

// PlayerResult is one row of a persisted game record.
type PlayerResult struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// GameRecord is the persisted summary of one finished session.
type GameRecord struct {
	RoomID    string         `json:"room_id"`
	Mode      string         `json:"mode"`
	Players   []PlayerResult `json:"players"`
	CreatedAt time.Time      `json:"created_at"`
}
