package model

import (
	"encoding/json"
	"time"
)

type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	IsRead    bool            `json:"isRead"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NotificationOwnedBy is the ownership predicate for notifications.
func NotificationOwnedBy(identity Identity, n Notification) bool {
	return n.UserID == identity.ID
}

const (
	NotificationWelcome         = "WELCOME"
	NotificationPasswordChanged = "PASSWORD_CHANGED"
)
