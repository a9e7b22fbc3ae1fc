package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"pickup-service/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `id, request_id, requester_id, collector_id, state, negotiated_price, pending_agree_by, ad_skipped, agreed_at, contact_revealed_at, completed_at, rated_at, created_at`

// SessionRepository abstracts chat session persistence.
type SessionRepository interface {
	CreateOrGetSession(ctx context.Context, requestID, requesterID, collectorID int, initialPrice float64) (models.ChatSession, bool, error)
	GetSession(ctx context.Context, sessionID int) (models.ChatSession, error)
	ListSessions(ctx context.Context, userID int) ([]models.SessionSummary, error)
	UpdateNegotiatedPrice(ctx context.Context, sessionID int, price float64) error
	SetPendingAgree(ctx context.Context, sessionID int, userID int) error
	MarkAgreed(ctx context.Context, sessionID int, price float64, at time.Time) error
	MarkAdSkipped(ctx context.Context, sessionID int) error
	MarkContactRevealed(ctx context.Context, sessionID int, at time.Time) error
	MarkCompleted(ctx context.Context, sessionID int, at time.Time) error
	MarkRated(ctx context.Context, sessionID int, at time.Time) error
}

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateOrGetSession creates a session for (request, collector) if one does
// not already exist, seeding the negotiated price. The second return value
// reports whether a new session was created. Idempotent: repeated opens
// return the same session.
func (r *SessionRepo) CreateOrGetSession(ctx context.Context, requestID, requesterID, collectorID int, initialPrice float64) (models.ChatSession, bool, error) {
	if requesterID == collectorID {
		return models.ChatSession{}, false, errors.New("cannot open session with self")
	}

	var session models.ChatSession
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE request_id=$1 AND collector_id=$2`
	err := r.db.GetContext(ctx, &session, query, requestID, collectorID)
	if err == nil {
		return session, false, nil
	}
	if err != sql.ErrNoRows {
		return models.ChatSession{}, false, err
	}

	insert := `INSERT INTO chat_sessions (request_id, requester_id, collector_id, negotiated_price)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (request_id, collector_id) DO NOTHING
        RETURNING ` + sessionColumns
	err = r.db.GetContext(ctx, &session, insert, requestID, requesterID, collectorID, initialPrice)
	if err == nil {
		return session, true, nil
	}
	if err != sql.ErrNoRows {
		return models.ChatSession{}, false, err
	}

	// Lost the race: another open landed first, fetch the winner's row.
	err = r.db.GetContext(ctx, &session, query, requestID, collectorID)
	return session, false, err
}

// GetSession fetches a session by id.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID int) (models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatSession{}, ErrSessionNotFound
	}
	return session, err
}

// ListSessions returns the sessions a user participates in, newest first.
func (r *SessionRepo) ListSessions(ctx context.Context, userID int) ([]models.SessionSummary, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions
        WHERE requester_id=$1 OR collector_id=$1
        ORDER BY created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.SessionSummary
	for rows.Next() {
		var session models.ChatSession
		if err := rows.StructScan(&session); err != nil {
			return nil, err
		}
		result = append(result, models.SessionSummary{
			SessionID:       session.ID,
			RequestID:       session.RequestID,
			CounterpartID:   session.Counterpart(userID),
			State:           session.State,
			NegotiatedPrice: session.NegotiatedPrice,
			CreatedAt:       session.CreatedAt,
		})
	}
	return result, rows.Err()
}

// UpdateNegotiatedPrice replaces the negotiated price scalar. A new proposal
// clears any pending mutual-accept acknowledgement.
func (r *SessionRepo) UpdateNegotiatedPrice(ctx context.Context, sessionID int, price float64) error {
	return r.exec(ctx, `UPDATE chat_sessions SET negotiated_price=$2, pending_agree_by=NULL WHERE id=$1`, sessionID, price)
}

// SetPendingAgree records the first acceptance under the mutual policy.
func (r *SessionRepo) SetPendingAgree(ctx context.Context, sessionID int, userID int) error {
	return r.exec(ctx, `UPDATE chat_sessions SET pending_agree_by=$2 WHERE id=$1`, sessionID, userID)
}

// MarkAgreed freezes the price and moves the session to price_agreed.
func (r *SessionRepo) MarkAgreed(ctx context.Context, sessionID int, price float64, at time.Time) error {
	return r.exec(ctx, `UPDATE chat_sessions SET state=$2, negotiated_price=$3, agreed_at=$4, pending_agree_by=NULL WHERE id=$1`,
		sessionID, models.StatePriceAgreed, price, at)
}

// MarkAdSkipped records an explicit ad-gate skip.
func (r *SessionRepo) MarkAdSkipped(ctx context.Context, sessionID int) error {
	return r.exec(ctx, `UPDATE chat_sessions SET ad_skipped=TRUE WHERE id=$1`, sessionID)
}

// MarkContactRevealed moves the session to contact_revealed.
func (r *SessionRepo) MarkContactRevealed(ctx context.Context, sessionID int, at time.Time) error {
	return r.exec(ctx, `UPDATE chat_sessions SET state=$2, contact_revealed_at=$3 WHERE id=$1`,
		sessionID, models.StateContactRevealed, at)
}

// MarkCompleted moves the session to delivery_completed.
func (r *SessionRepo) MarkCompleted(ctx context.Context, sessionID int, at time.Time) error {
	return r.exec(ctx, `UPDATE chat_sessions SET state=$2, completed_at=$3 WHERE id=$1`,
		sessionID, models.StateDeliveryCompleted, at)
}

// MarkRated moves the session to its terminal rated state.
func (r *SessionRepo) MarkRated(ctx context.Context, sessionID int, at time.Time) error {
	return r.exec(ctx, `UPDATE chat_sessions SET state=$2, rated_at=$3 WHERE id=$1`,
		sessionID, models.StateRated, at)
}

func (r *SessionRepo) exec(ctx context.Context, query string, sessionID int, args ...interface{}) error {
	allArgs := append([]interface{}{sessionID}, args...)
	res, err := r.db.ExecContext(ctx, query, allArgs...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrSessionNotFound
	}
	return nil
}
