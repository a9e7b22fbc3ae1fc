package models

import "time"

// User is a marketplace participant. A user may act as a requester on some
// pickup requests and as a collector on others.
type User struct {
	ID                   int       `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	Phone                string    `db:"phone" json:"phone"`
	City                 string    `db:"city" json:"city"`
	Communities          string    `db:"communities" json:"communities"`
	PasswordHash         string    `db:"password_hash" json:"-"`
	Rating               float64   `db:"rating" json:"rating"`
	RatingsCount         int       `db:"ratings_count" json:"ratings_count"`
	CompletedDeliveries  int       `db:"completed_deliveries" json:"completed_deliveries"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// PublicProfile is the view of a user exposed to other participants.
type PublicProfile struct {
	ID                  int     `json:"id"`
	Name                string  `json:"name"`
	City                string  `json:"city"`
	Rating              float64 `json:"rating"`
	CompletedDeliveries int     `json:"completed_deliveries"`
}

// Public strips private fields from a user.
func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:                  u.ID,
		Name:                u.Name,
		City:                u.City,
		Rating:              u.Rating,
		CompletedDeliveries: u.CompletedDeliveries,
	}
}
