package models

import "time"

// Rating is a 1-5 score with a free-text comment, given by one participant
// of a completed delivery to the other. At most one per session.
type Rating struct {
	ID        int       `db:"id" json:"id"`
	SessionID int       `db:"session_id" json:"session_id"`
	RequestID int       `db:"request_id" json:"request_id"`
	RaterID   int       `db:"rater_id" json:"rater_id"`
	RatedID   int       `db:"rated_id" json:"rated_id"`
	Score     int       `db:"score" json:"score"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
