package websocket

// Frame types exchanged with clients.
const (
	MessageTypeJoin   = "join"
	MessageTypeLeave  = "leave"
	MessageTypeJoined = "joined"
	MessageTypeLeft   = "left"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeEvent  = "event"
	MessageTypeError  = "error"
)

type Message struct {
	Type  string `json:"type"`
	Room  string `json:"room,omitempty"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
}
