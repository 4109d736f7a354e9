// services/room_service.go
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/cardroom/broadcast"
	"github.com/wfunc/cardroom/engine"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/monitor"
	"github.com/wfunc/cardroom/network"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/room"
	"github.com/wfunc/cardroom/state"
)

var (
	ErrNotInRoom           = errors.New("player not in room")
	ErrForbidden           = errors.New("host-only action")
	ErrInsufficientPlayers = errors.New("not enough ready players")
	ErrInvalidSelection    = errors.New("invalid player selection")
	ErrIllegalPlay         = errors.New("illegal play")
	ErrNoSession           = errors.New("no session in progress")
	ErrSessionInProgress   = errors.New("session already in progress")
	ErrNoCards             = errors.New("no cards submitted")
)

// Engine response literals.
const (
	respFail = "fail"
	respEnd  = "end"
)

// RoomService orchestrates every room action: it validates against the room
// state, performs at most one engine exchange, mutates the room and fans the
// change out to watchers. Nothing else mutates rooms.
type RoomService struct {
	registry *room.Registry
	hub      broadcast.Publisher
	store    persistence.Store
	metrics  *monitor.Monitor
}

func NewRoomService(registry *room.Registry, hub broadcast.Publisher, store persistence.Store, metrics *monitor.Monitor) *RoomService {
	return &RoomService{
		registry: registry,
		hub:      hub,
		store:    store,
		metrics:  metrics,
	}
}

func (s *RoomService) CreateRoom(mode, host string) models.RoomView {
	r := s.registry.Create(mode, host)

	r.Lock()
	view := r.Snapshot()
	r.Unlock()

	s.saveSnapshot(r)
	s.updateRoomGauge()
	s.hub.Publish(r.ID, network.MsgTypeRoomState, models.StateEvent{Room: view, Warning: r.Warning})
	return view
}

func (s *RoomService) ListRooms(modeFilter string) []models.RoomView {
	return s.registry.List(modeFilter)
}

func (s *RoomService) GetRoom(roomID string) (models.RoomView, error) {
	r, err := s.registry.Get(roomID)
	if err != nil {
		return models.RoomView{}, err
	}
	r.Lock()
	defer r.Unlock()
	return r.Snapshot(), nil
}

func (s *RoomService) Join(roomID, username string) (models.RoomView, error) {
	r, err := s.registry.Get(roomID)
	if err != nil {
		return models.RoomView{}, err
	}

	r.Lock()
	r.AddPlayer(username)
	view := r.Snapshot()
	r.Unlock()

	s.saveSnapshot(r)
	s.hub.Publish(r.ID, network.MsgTypeRoomState, models.StateEvent{Room: view})
	return view, nil
}

// Leave removes the player. The host leaving, or the room emptying, closes
// the room entirely.
func (s *RoomService) Leave(roomID, username string) (models.RoomView, bool, error) {
	r, err := s.registry.Get(roomID)
	if err != nil {
		return models.RoomView{}, false, err
	}

	r.Lock()
	r.RemovePlayer(username)
	if username == r.Host || len(r.Players) == 0 {
		view := r.Snapshot()
		s.closeRoomLocked(r, "host left, room closed")
		r.Unlock()
		return view, true, nil
	}
	view := r.Snapshot()
	r.Unlock()

	s.saveSnapshot(r)
	s.hub.Publish(r.ID, network.MsgTypeRoomState, models.StateEvent{Room: view})
	return view, false, nil
}

func (s *RoomService) ToggleReady(roomID, username string, ready bool) (models.RoomView, error) {
	r, err := s.registry.Get(roomID)
	if err != nil {
		return models.RoomView{}, err
	}

	r.Lock()
	p, exists := r.FindPlayer(username)
	if !exists {
		r.Unlock()
		return models.RoomView{}, ErrNotInRoom
	}
	p.Ready = ready
	view := r.Snapshot()
	r.Unlock()

	s.hub.Publish(r.ID, network.MsgTypeRoomState, models.StateEvent{Room: view})
	return view, nil
}

// Start runs the host's start action: min/max query, optional subset
// selection, then the deal. With an oversubscribed ready set and no subset
// the room moves to selecting and the caller gets the allowed range back.
func (s *RoomService) Start(ctx context.Context, roomID, username string, selected []string) (*models.StartResult, error) {
	r, err := s.registry.Get(roomID)
	if err != nil {
		return nil, err
	}

	r.Lock()
	defer r.Unlock()

	if r.Host != username {
		return nil, ErrForbidden
	}
	if r.Status() == state.StatusPlaying {
		return nil, ErrSessionInProgress
	}
	if r.Channel == nil || r.Channel.Closed() {
		return nil, engine.ErrEngineUnavailable
	}

	ready := r.ReadyPlayers()
	if len(ready) == 0 {
		return nil, ErrInsufficientPlayers
	}

	// The engine owns the seat-count policy.
	minPlayers, maxPlayers := 0, len(ready)
	lines, err := s.exchange(ctx, r, engine.CmdPlayerNumber, 1)
	if err != nil {
		return nil, err
	}
	if min, max, ok := parsePlayerRange(lines[0]); ok {
		minPlayers, maxPlayers = min, max
	} else {
		logger.Log.Warnf("room %s: malformed player_number response %q", r.ID, lines[0])
	}

	if len(ready) < minPlayers {
		return nil, ErrInsufficientPlayers
	}

	active := ready
	if len(ready) > maxPlayers {
		if len(selected) == 0 {
			r.SetStatus(state.StatusSelecting)
			view := r.Snapshot()
			s.hub.Publish(r.ID, network.MsgTypeRoomState, models.StateEvent{Room: view})
			return &models.StartResult{
				Room:           view,
				NeedsSelection: true,
				MinPlayers:     minPlayers,
				MaxPlayers:     maxPlayers,
				ReadyPlayers:   playerNames(ready),
			}, nil
		}

		if len(selected) < minPlayers || len(selected) > maxPlayers {
			return nil, ErrInvalidSelection
		}
		allowed := make(map[string]bool, len(selected))
		for _, name := range selected {
			allowed[name] = true
		}

		active = nil
		var excluded []string
		for _, p := range ready {
			if allowed[p.Name] {
				active = append(active, p)
				delete(allowed, p.Name)
			} else {
				excluded = append(excluded, p.Name)
			}
		}
		// Names that matched no ready player, or duplicates in the subset.
		if len(allowed) > 0 || len(active) != len(selected) {
			return nil, ErrInvalidSelection
		}

		// Excluded players stay registered in the room; they are only told to
		// go back to the lobby view.
		if len(excluded) > 0 {
			s.hub.Publish(r.ID, network.MsgTypeRedirect, models.RedirectEvent{Players: excluded})
		}
	}

	// Deal before mutating, so an engine failure leaves the room untouched.
	lines, err = s.exchange(ctx, r, engine.CmdInitHand, 2)
	if err != nil {
		return nil, err
	}
	deck := strings.Fields(lines[0])
	startSeat := normalizeSeat(lines[1], len(active))

	r.SetStatus(state.StatusPlaying)
	r.BeginSession(active)
	for idx, card := range deck {
		seat := (startSeat + idx) % len(active)
		r.Active[seat].Hand = append(r.Active[seat].Hand, card)
	}
	r.CurrentTurn = startSeat

	view := r.Snapshot()
	actives := r.ActiveViews()
	turn := r.CurrentTurn
	s.saveSnapshot(r)
	s.hub.Publish(r.ID, network.MsgTypeSessionStart, models.SessionStartEvent{
		Room:          view,
		ActivePlayers: actives,
		CurrentTurn:   &turn,
		StartSeat:     startSeat,
	})

	seat := startSeat
	return &models.StartResult{
		Room:          view,
		ActivePlayers: actives,
		CurrentTurn:   &turn,
		StartSeat:     &seat,
	}, nil
}

// Play submits the actor's cards to the engine. The engine alone judges
// legality; a "fail" leaves the hand untouched, an "end" closes the session.
func (s *RoomService) Play(ctx context.Context, roomID, username string, cards []string) (*models.PlayResult, error) {
	r, err := s.registry.Get(roomID)
	if err != nil {
		return nil, err
	}

	r.Lock()
	defer r.Unlock()

	if r.Status() != state.StatusPlaying {
		return nil, ErrNoSession
	}
	actor, seat := r.FindActive(username)
	if seat < 0 {
		return nil, ErrNotInRoom
	}

	command := strings.TrimSpace(strings.Join(cards, " "))
	if command == "" {
		return nil, ErrNoCards
	}
	played := strings.Fields(command)

	lines, err := s.exchange(ctx, r, command, 1)
	if err != nil {
		return nil, err
	}

	switch lines[0] {
	case respFail:
		return nil, ErrIllegalPlay
	case respEnd:
		s.endSessionLocked(r)
		view := r.Snapshot()
		s.hub.Publish(r.ID, network.MsgTypeScoreRound, models.ScoreRoundEvent{
			Room:          view,
			Ended:         true,
			ActivePlayers: []models.ActivePlayerView{},
		})
		return &models.PlayResult{Room: view, Ended: true}, nil
	}

	actor.Hand = removeCards(actor.Hand, played)
	actor.Discard = append(actor.Discard, played...)

	view := r.Snapshot()
	actives := r.ActiveViews()
	s.hub.Publish(r.ID, network.MsgTypePlay, models.PlayEvent{
		Room:          view,
		Player:        username,
		Cards:         played,
		ActivePlayers: actives,
	})
	return &models.PlayResult{Room: view, ActivePlayers: actives}, nil
}

// Point asks the engine for a score round: per-seat deltas plus the next
// starting seat, either of which may instead report session end.
func (s *RoomService) Point(ctx context.Context, roomID string) (*models.PointResult, error) {
	r, err := s.registry.Get(roomID)
	if err != nil {
		return nil, err
	}

	r.Lock()
	defer r.Unlock()

	if r.Status() != state.StatusPlaying {
		return nil, ErrNoSession
	}

	lines, err := s.exchange(ctx, r, engine.CmdPoint, 2)
	if err != nil {
		return nil, err
	}

	scoreLine, starterLine := lines[0], strings.TrimSpace(lines[1])

	if scoreLine == respEnd {
		s.endSessionLocked(r)
		view := r.Snapshot()
		s.hub.Publish(r.ID, network.MsgTypeScoreRound, models.ScoreRoundEvent{
			Room:          view,
			Scores:        []int{},
			Ended:         true,
			ActivePlayers: []models.ActivePlayerView{},
		})
		return &models.PointResult{Room: view, Scores: []int{}, Ended: true}, nil
	}

	for idx, field := range strings.Fields(scoreLine) {
		delta, err := strconv.Atoi(field)
		if err != nil {
			logger.Log.Warnf("room %s: malformed score field %q", r.ID, field)
			continue
		}
		r.AddScore(idx, delta)
	}

	ended := starterLine == respEnd
	if ended {
		scores := activeScores(r)
		s.endSessionLocked(r)
		view := r.Snapshot()
		s.hub.Publish(r.ID, network.MsgTypeScoreRound, models.ScoreRoundEvent{
			Room:          view,
			Scores:        scores,
			Ended:         true,
			ActivePlayers: []models.ActivePlayerView{},
		})
		return &models.PointResult{Room: view, Scores: scores, Ended: true}, nil
	}

	if next, err := strconv.Atoi(starterLine); err == nil {
		r.CurrentTurn = next
	} else {
		logger.Log.Warnf("room %s: malformed starter line %q", r.ID, starterLine)
	}
	// Round boundary: played cards move from the table into the history log.
	for _, p := range r.Active {
		if len(p.Discard) > 0 {
			p.History = append(p.History, p.Discard...)
			p.Discard = nil
		}
	}

	scores := activeScores(r)
	view := r.Snapshot()
	actives := r.ActiveViews()
	turn := r.CurrentTurn
	s.saveSnapshot(r)
	s.hub.Publish(r.ID, network.MsgTypeScoreRound, models.ScoreRoundEvent{
		Room:          view,
		Scores:        scores,
		Ended:         false,
		ActivePlayers: actives,
		CurrentTurn:   &turn,
	})
	return &models.PointResult{Room: view, Scores: scores, ActivePlayers: actives, CurrentTurn: &turn, Ended: false}, nil
}

// End is the host's confirmed teardown: ends any session and destroys the
// room regardless of status.
func (s *RoomService) End(roomID, username string, confirm bool) error {
	r, err := s.registry.Get(roomID)
	if err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()

	if r.Host != username || !confirm {
		return ErrForbidden
	}

	if len(r.Active) > 0 {
		s.endSessionLocked(r)
	}
	s.closeRoomLocked(r, "host ended the game")
	return nil
}

// endSessionLocked persists the final scores and returns the room to the
// lobby phase. Caller holds the room lock.
func (s *RoomService) endSessionLocked(r *room.Room) {
	s.saveRecord(r)
	r.EndSession()
	s.saveSnapshot(r)
}

// closeRoomLocked tears the room down: engine first, then registry, then the
// watchers. Caller holds the room lock.
func (s *RoomService) closeRoomLocked(r *room.Room, reason string) {
	if r.Channel != nil {
		r.Channel.Shutdown()
	}
	r.SetStatus(state.StatusClosed)
	s.registry.Remove(r.ID)
	s.updateRoomGauge()
	s.hub.Publish(r.ID, network.MsgTypeRoomClosed, models.RoomClosedEvent{Reason: reason})
	if hub, ok := s.hub.(*broadcast.Hub); ok {
		hub.DropRoom(r.ID)
	}
}

// exchange performs one engine round-trip under the room lock, so actions on
// the same room serialize while other rooms continue.
func (s *RoomService) exchange(ctx context.Context, r *room.Room, command string, lineCount int) ([]string, error) {
	if r.Channel == nil {
		return nil, engine.ErrEngineUnavailable
	}
	started := time.Now()
	lines, err := r.Channel.Send(ctx, command, lineCount)
	if s.metrics != nil {
		s.metrics.ObserveExchange(time.Since(started), err == nil)
	}
	if err != nil {
		return nil, err
	}
	if len(lines) < lineCount {
		return nil, engine.ErrEngineUnavailable
	}
	return lines, nil
}

func (s *RoomService) saveSnapshot(r *room.Room) {
	if s.store == nil {
		return
	}
	view := r.Snapshot()
	if err := s.store.SaveRoomSnapshot(r.ID, r.Mode, view.Status, view.Players); err != nil {
		logger.Log.Warnf("room %s: snapshot persist failed: %v", r.ID, err)
	}
}

func (s *RoomService) saveRecord(r *room.Room) {
	if s.store == nil || len(r.Active) == 0 {
		return
	}
	record := &models.GameRecord{
		RoomID:    r.ID,
		Mode:      r.Mode,
		CreatedAt: time.Now(),
	}
	for _, p := range r.Active {
		record.Players = append(record.Players, models.PlayerResult{Name: p.Name, Score: p.Score})
	}
	if err := s.store.SaveGameRecord(record); err != nil {
		logger.Log.Warnf("room %s: game record persist failed: %v", r.ID, err)
	}
}

func (s *RoomService) updateRoomGauge() {
	if s.metrics != nil {
		s.metrics.SetActiveRooms(s.registry.Count())
	}
}

// parsePlayerRange reads "min max" from the player_number response.
func parsePlayerRange(line string) (int, int, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, 0, false
	}
	min, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, false
	}
	max, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, false
	}
	return min, max, true
}

// normalizeSeat clamps the engine's starting seat into [0, n), tolerating
// negative, overflowing and unparsable values.
func normalizeSeat(line string, n int) int {
	if n <= 0 {
		return 0
	}
	raw, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		logger.Log.Warnf("malformed starting seat %q", line)
		return 0
	}
	return ((raw % n) + n) % n
}

// removeCards drops each played card from the hand once, duplicates removed
// one occurrence per submission.
func removeCards(hand []string, played []string) []string {
	result := append([]string(nil), hand...)
	for _, card := range played {
		for i, held := range result {
			if held == card {
				result = append(result[:i], result[i+1:]...)
				break
			}
		}
	}
	return result
}

func playerNames(players []*room.Player) []string {
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
	}
	return names
}

func activeScores(r *room.Room) []int {
	scores := make([]int, 0, len(r.Active))
	for _, p := range r.Active {
		scores = append(scores, p.Score)
	}
	return scores
}
