package models

import "time"

// NotificationType classifies feed entries.
type NotificationType string

const (
	NotificationTypePickupRequest   NotificationType = "pickup_request"
	NotificationTypePickupAccepted  NotificationType = "pickup_accepted"
	NotificationTypePriceAgreed     NotificationType = "price_agreed"
	NotificationTypePickupCompleted NotificationType = "pickup_completed"
	NotificationTypeRating          NotificationType = "rating"
	NotificationTypeSystem          NotificationType = "system"
)

// Notification is one entry in a user's notification feed.
type Notification struct {
	ID        int              `db:"id" json:"id"`
	UserID    int              `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	Type      NotificationType `db:"type" json:"type"`
	RelatedID *int             `db:"related_id" json:"related_id,omitempty"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
