package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/services"
)

// Server manages the RPC listener for the ops surface.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// OpsService exposes read-only room inspection over net/rpc, for operational
// tooling.
type OpsService struct {
	rooms *services.RoomService
}

func NewOpsService(rooms *services.RoomService) *OpsService {
	return &OpsService{rooms: rooms}
}

type ListRoomsArgs struct {
	Mode string
}

type ListRoomsReply struct {
	Rooms []models.RoomView
}

func (o *OpsService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = o.rooms.ListRooms(args.Mode)
	return nil
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room models.RoomView
}

func (o *OpsService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	view, err := o.rooms.GetRoom(args.RoomID)
	if err != nil {
		return err
	}
	reply.Room = view
	return nil
}
