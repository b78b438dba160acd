package websocket

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"go-freelance/internal/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

var clientIDCounter atomic.Uint64

// Client is one socket of one user. rooms is owned by the hub.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan Message
	rooms  map[string]struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan Message, sendBuffer),
		rooms:  map[string]struct{}{},
	}
}

// trySend never blocks; false means the buffer is full.
func (c *Client) trySend(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// handle applies one inbound frame. Only task rooms may be joined or left by
// the client; its user room is fixed. Task membership is not checked here:
// task rooms carry only events emitted through EmitToTask, and the task
// subsystem that would own membership is not part of this service.
func (c *Client) handle(msg Message) {
	switch msg.Type {
	case MessageTypePing:
		c.hub.replyTo(c, Message{Type: MessageTypePong})
	case MessageTypeJoin, MessageTypeLeave:
		if !event.IsTaskRoom(msg.Room) {
			c.hub.replyTo(c, Message{Type: MessageTypeError, Room: msg.Room, Data: "only task rooms can be joined"})
			return
		}
		op := opLeave
		if msg.Type == MessageTypeJoin {
			op = opJoin
		}
		c.hub.request(clientRequest{client: c, op: op, room: msg.Room})
	default:
		c.hub.replyTo(c, Message{Type: MessageTypeError, Data: "unknown message type"})
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Error("failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("unexpected websocket close", "user_id", c.userID, "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				slog.Debug("socket write failed", "user_id", c.userID, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
