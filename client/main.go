package main

import (
	"encoding/binary"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeHeartbeat    = 1
	MsgTypeSubscribe    = 101
	MsgTypeRoomState    = 301
	MsgTypeSessionStart = 302
	MsgTypePlay         = 303
	MsgTypeScoreRound   = 304
	MsgTypeRoomClosed   = 305
	MsgTypeRedirect     = 306
)

var eventNames = map[uint16]string{
	MsgTypeRoomState:    "state",
	MsgTypeSessionStart: "session-start",
	MsgTypePlay:         "play",
	MsgTypeScoreRound:   "score-round",
	MsgTypeRoomClosed:   "room-closed",
	MsgTypeRedirect:     "redirected",
}

// send formats and sends a framed message to the server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: client <room-id> [username]")
	}
	roomID := os.Args[1]
	username := "watcher"
	if len(os.Args) > 2 {
		username = os.Args[2]
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			name := eventNames[msgID]
			if name == "" {
				name = "unknown"
			}
			log.Printf("<- %s: %s", name, string(data))
		}
	}()

	// Subscribe to the room's live updates
	sub, _ := json.Marshal(map[string]string{"room_id": roomID, "username": username})
	log.Printf("Subscribing to room %s...", roomID)
	if err := send(c, MsgTypeSubscribe, sub); err != nil {
		log.Println("Write error:", err)
		return
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if err := send(c, MsgTypeHeartbeat, nil); err != nil {
				log.Println("Heartbeat error:", err)
				return
			}
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
