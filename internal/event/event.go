package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeNotification Type = "notification"
	TypePresence     Type = "presence"
	TypeTaskUpdate   Type = "task.update"
)

const (
	userRoomPrefix = "user:"
	taskRoomPrefix = "task:"
)

// Event is delivered to every socket joined to Room.
type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Room      string `json:"room"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

func New(room string, typ Type, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Room:      room,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

func TaskRoom(taskID string) string {
	return taskRoomPrefix + taskID
}

// IsTaskRoom reports whether a client may join the room on its own.
func IsTaskRoom(room string) bool {
	return strings.HasPrefix(room, taskRoomPrefix) && len(room) > len(taskRoomPrefix)
}
