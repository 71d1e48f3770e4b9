package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
)

type NotificationRepository struct {
	db *base.Repository
}

func NewNotificationRepository(db *base.Repository) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create сохраняет уведомление
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (user_id, user_type, case_id, type, title, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, n.UserID, n.UserType, n.CaseID, n.Type, n.Title, n.Message).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	return nil
}

// ListUnread получает непрочитанные уведомления пользователя
func (r *NotificationRepository) ListUnread(ctx context.Context, userID int64, userType model.UserType, limit int) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, user_type, case_id, type, title, message, created_at, read_at
		FROM notifications
		WHERE user_id = $1 AND user_type = $2 AND read_at IS NULL
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, userID, userType, limit)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.UserType, &n.CaseID, &n.Type, &n.Title, &n.Message, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// MarkAllRead отмечает прочитанными все уведомления пользователя
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64, userType model.UserType, at time.Time) (int64, error) {
	affected, err := r.db.ExecAffected(ctx,
		`UPDATE notifications SET read_at = $3 WHERE user_id = $1 AND user_type = $2 AND read_at IS NULL`,
		userID, userType, at,
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return affected, nil
}
