package models

import "time"

// SessionState tracks where a chat session stands in the negotiation flow.
// The ad gate runs inside StatePriceAgreed: contact details stay hidden until
// the gate deadline passes or the gate is skipped.
type SessionState string

const (
	StateNegotiating       SessionState = "negotiating"
	StatePriceAgreed       SessionState = "price_agreed"
	StateContactRevealed   SessionState = "contact_revealed"
	StateDeliveryCompleted SessionState = "delivery_completed"
	StateRated             SessionState = "rated"
)

// ChatSession is a two-party conversation scoped to exactly one pickup
// request: the requester who created it and the collector who opened the
// session. The session row carries the negotiation state alongside the
// message log; the log alone is sufficient to reconstruct the state.
type ChatSession struct {
	ID                int          `db:"id" json:"id"`
	RequestID         int          `db:"request_id" json:"request_id"`
	RequesterID       int          `db:"requester_id" json:"requester_id"`
	CollectorID       int          `db:"collector_id" json:"collector_id"`
	State             SessionState `db:"state" json:"state"`
	NegotiatedPrice   float64      `db:"negotiated_price" json:"negotiated_price"`
	PendingAgreeBy    *int         `db:"pending_agree_by" json:"pending_agree_by,omitempty"`
	AdSkipped         bool         `db:"ad_skipped" json:"ad_skipped"`
	AgreedAt          *time.Time   `db:"agreed_at" json:"agreed_at,omitempty"`
	ContactRevealedAt *time.Time   `db:"contact_revealed_at" json:"contact_revealed_at,omitempty"`
	CompletedAt       *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	RatedAt           *time.Time   `db:"rated_at" json:"rated_at,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
}

// IsParticipant reports whether the user belongs to the session.
func (s ChatSession) IsParticipant(userID int) bool {
	return s.RequesterID == userID || s.CollectorID == userID
}

// Counterpart returns the other participant's id.
func (s ChatSession) Counterpart(userID int) int {
	if s.RequesterID == userID {
		return s.CollectorID
	}
	return s.RequesterID
}

// SessionSummary is the API-friendly view of a session for the session list.
type SessionSummary struct {
	SessionID       int          `db:"id" json:"session_id"`
	RequestID       int          `db:"request_id" json:"request_id"`
	CounterpartID   int          `json:"counterpart_id"`
	State           SessionState `db:"state" json:"state"`
	NegotiatedPrice float64      `db:"negotiated_price" json:"negotiated_price"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}

// SessionEvent is broadcast over websocket connections for a session room.
type SessionEvent struct {
	Type            string       `json:"type"`
	Message         *Message     `json:"message,omitempty"`
	State           SessionState `json:"state,omitempty"`
	NegotiatedPrice *float64     `json:"negotiated_price,omitempty"`
	AdSecondsLeft   *int         `json:"ad_seconds_left,omitempty"`
}

// Session event types.
const (
	EventMessage      = "message"
	EventStateChanged = "state_changed"
	EventRatingPrompt = "rating_prompt"
)
