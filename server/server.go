package server

import (
	"encoding/json"
	"errors"
	"net/http"
	gorpc "net/rpc"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/cardroom/broadcast"
	"github.com/wfunc/cardroom/config"
	"github.com/wfunc/cardroom/engine"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/monitor"
	"github.com/wfunc/cardroom/network"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/room"
	cardroom_rpc "github.com/wfunc/cardroom/rpc"
	"github.com/wfunc/cardroom/services"
	"github.com/wfunc/cardroom/session"
	"github.com/wfunc/cardroom/timer"
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	registry       *room.Registry
	sessionManager *session.Manager
	hub            *broadcast.Hub
	rooms          *services.RoomService
	accounts       *services.AccountService
	metrics        *monitor.Monitor
	timers         *timer.Manager
	rpcServer      *cardroom_rpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, store persistence.Store) *GameServer {
	timers := timer.NewManager()

	spawn := func(roomID, mode string) (engine.Channel, error) {
		return engine.Spawn(roomID, cfg.Engine.Binary, cfg.Engine.WorkDir, mode, timers, cfg.Engine.ExchangeTimeout)
	}

	registry := room.NewRegistry(spawn)
	hub := broadcast.NewHub()
	metrics := monitor.NewMonitor("cardroom")

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		registry:       registry,
		sessionManager: session.NewManager(),
		hub:            hub,
		rooms:          services.NewRoomService(registry, hub, store, metrics),
		accounts:       services.NewAccountService(store),
		metrics:        metrics,
		timers:         timers,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	rpcServer, err := cardroom_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	gorpc.Register(cardroom_rpc.NewOpsService(s.rooms))

	if cfg.Server.MetricsAddress != "" {
		metrics.StartServer(cfg.Server.MetricsAddress)
	}

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("POST /api/rooms/{roomID}/join", s.handleJoin)
	mux.HandleFunc("POST /api/rooms/{roomID}/leave", s.handleLeave)
	mux.HandleFunc("POST /api/rooms/{roomID}/ready", s.handleReady)
	mux.HandleFunc("POST /api/rooms/{roomID}/start", s.handleStart)
	mux.HandleFunc("POST /api/rooms/{roomID}/play", s.handlePlay)
	mux.HandleFunc("POST /api/rooms/{roomID}/point", s.handlePoint)
	mux.HandleFunc("POST /api/rooms/{roomID}/end", s.handleEnd)
	mux.HandleFunc("/ws", s.handleWebSocket)

	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

// --- HTTP action surface ---

type actionRequest struct {
	Username string   `json:"username"`
	Mode     string   `json:"mode"`
	Ready    bool     `json:"ready"`
	Cards    []string `json:"cards"`
	Selected []string `json:"selected_players"`
	Confirm  bool     `json:"confirm"`
	Password string   `json:"password"`
}

func decode(r *http.Request, into *actionRequest) error {
	return json.NewDecoder(r.Body).Decode(into)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"message": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, services.ErrNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, persistence.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrEngineUnavailable),
		errors.Is(err, engine.ErrWriteFailure),
		errors.Is(err, engine.ErrEngineTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrNotInRoom),
		errors.Is(err, services.ErrInsufficientPlayers),
		errors.Is(err, services.ErrInvalidSelection),
		errors.Is(err, services.ErrIllegalPlay),
		errors.Is(err, services.ErrNoSession),
		errors.Is(err, services.ErrSessionInProgress),
		errors.Is(err, services.ErrNoCards),
		errors.Is(err, services.ErrMissingCredentials):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *GameServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, services.ErrMissingCredentials)
		return
	}
	if err := s.accounts.Register(req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "registered"})
}

func (s *GameServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, services.ErrMissingCredentials)
		return
	}
	if err := s.accounts.Login(req.Username, req.Password); err != nil {
		if errors.Is(err, services.ErrNotRegistered) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"message": err.Error(),
				"status":  "not-registered",
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (s *GameServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	views := s.rooms.ListRooms(r.URL.Query().Get("mode"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": views})
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil || req.Username == "" || req.Mode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing username or mode"})
		return
	}
	view := s.rooms.CreateRoom(req.Mode, req.Username)
	writeJSON(w, http.StatusOK, map[string]interface{}{"room": view, "warning": view.Warning})
}

func (s *GameServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	view, err := s.rooms.Join(r.PathValue("roomID"), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"room": view})
}

func (s *GameServer) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	view, closed, err := s.rooms.Leave(r.PathValue("roomID"), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	if closed {
		writeJSON(w, http.StatusOK, map[string]interface{}{"message": "room closed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"room": view})
}

func (s *GameServer) handleReady(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	view, err := s.rooms.ToggleReady(r.PathValue("roomID"), req.Username, req.Ready)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"room": view})
}

func (s *GameServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	result, err := s.rooms.Start(r.Context(), r.PathValue("roomID"), req.Username, req.Selected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *GameServer) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	result, err := s.rooms.Play(r.Context(), r.PathValue("roomID"), req.Username, req.Cards)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *GameServer) handlePoint(w http.ResponseWriter, r *http.Request) {
	result, err := s.rooms.Point(r.Context(), r.PathValue("roomID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *GameServer) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	if err := s.rooms.End(r.PathValue("roomID"), req.Username, req.Confirm); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "room ended"})
}

// --- live update channel ---

type subscribeRequest struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.metrics.IncWatchers()

	logger.Log.Infof("New watcher from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Watcher closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.hub.Unsubscribe(sess)
		s.sessionManager.Remove(sess.GetID())
		s.metrics.DecWatchers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()
	case network.MsgTypeSubscribe:
		s.handleSubscribe(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

// handleSubscribe attaches the session to one room and immediately pushes the
// current snapshot so the watcher does not wait for the next event.
func (s *GameServer) handleSubscribe(sess *session.Session, packet *network.Packet) {
	var req subscribeRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	view, err := s.rooms.GetRoom(req.RoomID)
	if err != nil {
		data, _ := json.Marshal(map[string]string{"message": err.Error()})
		sess.Send(network.MsgTypeError, data)
		return
	}

	sess.Username = req.Username
	s.hub.Subscribe(req.RoomID, sess)

	data, _ := json.Marshal(models.StateEvent{Room: view, Warning: view.Warning})
	sess.Send(network.MsgTypeRoomState, data)
}
