package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"go-freelance/internal/model"
)

type NotificationRepository struct {
	db dbtx
}

func NewNotificationRepository(db dbtx) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n model.Notification) error {
	var data any
	if len(n.Data) > 0 {
		data = string(n.Data)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, data, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (model.Notification, error) {
	var (
		n    model.Notification
		data *string
	)
	if _, err := uuid.Parse(id); err != nil {
		return model.Notification{}, model.ErrNotificationNotFound
	}
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, type, title, message, data::text, is_read, created_at
		 FROM notifications WHERE id = $1`, id).
		Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.IsRead, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Notification{}, model.ErrNotificationNotFound
	}
	if err != nil {
		return model.Notification{}, fmt.Errorf("find notification: %w", err)
	}
	if data != nil {
		n.Data = []byte(*data)
	}
	return n, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, type, title, message, data::text, is_read, created_at
		 FROM notifications
		 WHERE user_id = $1 AND (NOT $2 OR is_read = false)
		 ORDER BY created_at DESC
		 LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		var (
			n    model.Notification
			data *string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if data != nil {
			n.Data = []byte(*data)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.ErrNotificationNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotificationNotFound
	}
	return nil
}
