package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"pickup-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository abstracts the per-user notification feed.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	ListNotifications(ctx context.Context, userID int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// CreateNotification appends an entry to a user's feed.
func (r *NotificationRepo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	var created models.Notification
	err := r.db.QueryRowxContext(ctx, `INSERT INTO notifications (user_id, title, body, type, related_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, user_id, title, body, type, related_id, read, created_at`,
		n.UserID, n.Title, n.Body, n.Type, n.RelatedID).StructScan(&created)
	return created, err
}

// ListNotifications returns a user's feed, newest first.
func (r *NotificationRepo) ListNotifications(ctx context.Context, userID int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list, `SELECT id, user_id, title, body, type, related_id, read, created_at
        FROM notifications WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	return list, err
}

// MarkRead flags a notification as read. Scoped to the owner.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1 AND user_id=$2`, notificationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
