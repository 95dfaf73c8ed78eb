package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gymflow/gymflow-api/internal/models"
)

// NotificationRepository persists outbound member notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification row.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO notifications (id, user_id, title, message, severity, dispatched, created_at)
		VALUES (:id, :user_id, :title, :message, :severity, :dispatched, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkDispatched flags a notification as handed off to the transport.
func (r *NotificationRepository) MarkDispatched(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE notifications SET dispatched = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark notification dispatched: %w", err)
	}
	return nil
}

// ListForUser returns a member's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, user_id, title, message, severity, dispatched, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications for user: %w", err)
	}
	return notifications, nil
}
