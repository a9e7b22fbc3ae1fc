package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// MessageType tags the kind of a chat message. Beyond the plain content
// types, negotiation transitions append typed messages so that the log is a
// full audit trail of the session.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeLocation    MessageType = "location"
	MessageTypeSystem      MessageType = "system"
	MessageTypePriceOffer  MessageType = "price_offer"
	MessageTypePriceAgreed MessageType = "price_agreed"
	MessageTypeCompletion  MessageType = "completion"
	MessageTypeRating      MessageType = "rating"
)

// SystemSenderID is the reserved sender id for machine-generated notices.
const SystemSenderID = 0

// SystemSenderName is the display name attached to system messages.
const SystemSenderName = "מערכת Pick4U"

// Message is one entry in a session's append-only log. Messages are
// immutable once created.
type Message struct {
	ID         int            `db:"id" json:"id"`
	SessionID  int            `db:"session_id" json:"session_id"`
	SenderID   int            `db:"sender_id" json:"sender_id"`
	SenderName string         `db:"sender_name" json:"sender_name"`
	Content    string         `db:"content" json:"content"`
	Type       MessageType    `db:"type" json:"type"`
	Metadata   types.JSONText `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// MessageMetadata is the structured payload attached to negotiation
// messages. Fields are set depending on the message type.
type MessageMetadata struct {
	Event   string  `json:"event,omitempty"`
	Price   float64 `json:"price,omitempty"`
	Score   int     `json:"score,omitempty"`
	Pending bool    `json:"pending,omitempty"`
}

// DecodeMetadata unmarshals the message metadata, returning the zero value
// when none is attached.
func (m Message) DecodeMetadata() MessageMetadata {
	var meta MessageMetadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return meta
}

// Metadata event markers for system messages.
const (
	MetaEventSessionOpened   = "session_opened"
	MetaEventAdSkipped       = "ad_skipped"
	MetaEventContactRevealed = "contact_revealed"
)
