package network

// Client to server.
const (
	MsgTypeHeartbeat = 1
	MsgTypeSubscribe = 101
)

// Server to client, one per room event.
const (
	MsgTypeRoomState    = 301
	MsgTypeSessionStart = 302
	MsgTypePlay         = 303
	MsgTypeScoreRound   = 304
	MsgTypeRoomClosed   = 305
	MsgTypeRedirect     = 306
	MsgTypeError        = 310
)
