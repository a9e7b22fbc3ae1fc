package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"pickup-service/internal/models"
)

var ErrEmptyMessage = errors.New("message content is empty")

// MessageRepository defines interactions with a session's append-only
// message log. Messages cannot be updated or deleted.
type MessageRepository interface {
	AppendMessage(ctx context.Context, sessionID, senderID int, senderName, content string, msgType models.MessageType, metadata *models.MessageMetadata) (models.Message, error)
	ListMessages(ctx context.Context, sessionID int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// AppendMessage stores a message at the tail of the session log.
func (r *MessageRepo) AppendMessage(ctx context.Context, sessionID, senderID int, senderName, content string, msgType models.MessageType, metadata *models.MessageMetadata) (models.Message, error) {
	var metaArg interface{}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return models.Message{}, err
		}
		metaArg = raw
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (session_id, sender_id, sender_name, content, type, metadata)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, session_id, sender_id, sender_name, content, type, metadata, created_at`,
		sessionID, senderID, senderName, content, msgType, metaArg).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListMessages returns the full ordered log for a session.
func (r *MessageRepo) ListMessages(ctx context.Context, sessionID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, session_id, sender_id, sender_name, content, type, metadata, created_at
        FROM messages WHERE session_id=$1 ORDER BY created_at ASC, id ASC`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return msgs, err
}
