package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go-freelance/internal/event"
	"go-freelance/internal/model"
	"go-freelance/internal/repository"
)

const defaultNotificationLimit = 50

type NotificationService struct {
	store repository.Store
	bus   event.Bus
	now   func() time.Time
}

func NewNotificationService(store repository.Store, bus event.Bus) *NotificationService {
	return &NotificationService{
		store: store,
		bus:   bus,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Notify persists a notification and publishes it to the user's room.
// Delivery to sockets is best effort.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind string, title string, message string, data map[string]any) error {
	n := model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: s.now(),
	}
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
		n.Data = raw
	}

	if err := s.store.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(event.New(event.UserRoom(userID), event.TypeNotification, n))
	}
	return nil
}

// EmitToTask publishes a transient event to everyone watching a task. It is
// the entry point for the task subsystem, which lives outside this service;
// nothing here calls it yet.
func (s *NotificationService) EmitToTask(taskID string, typ event.Type, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(event.TaskRoom(taskID), typ, payload))
	slog.Debug("task event emitted", "task_id", taskID, "type", typ)
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > defaultNotificationLimit {
		limit = defaultNotificationLimit
	}
	return s.store.Notifications().ListByUser(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) Get(ctx context.Context, id string) (model.Notification, error) {
	return s.store.Notifications().FindByID(ctx, id)
}

func (s *NotificationService) MarkRead(ctx context.Context, id string) (model.Notification, error) {
	if err := s.store.Notifications().MarkRead(ctx, id); err != nil {
		return model.Notification{}, err
	}
	return s.store.Notifications().FindByID(ctx, id)
}
