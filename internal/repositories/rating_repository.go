package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pickup-service/internal/models"
)

var (
	ErrRatingNotFound = errors.New("rating not found")
	ErrAlreadyRated   = errors.New("session already rated")
)

// RatingRepository abstracts rating persistence. The session_id unique key
// enforces at most one rating per completed delivery.
type RatingRepository interface {
	CreateRating(ctx context.Context, rating models.Rating) (models.Rating, error)
	GetBySession(ctx context.Context, sessionID int) (models.Rating, error)
}

// RatingRepo is a sqlx implementation of RatingRepository.
type RatingRepo struct {
	db *sqlx.DB
}

// NewRatingRepo constructs a RatingRepo.
func NewRatingRepo(db *sqlx.DB) *RatingRepo {
	return &RatingRepo{db: db}
}

// CreateRating stores a rating for a session.
func (r *RatingRepo) CreateRating(ctx context.Context, rating models.Rating) (models.Rating, error) {
	var created models.Rating
	err := r.db.QueryRowxContext(ctx, `INSERT INTO ratings (session_id, request_id, rater_id, rated_id, score, comment)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, session_id, request_id, rater_id, rated_id, score, comment, created_at`,
		rating.SessionID, rating.RequestID, rating.RaterID, rating.RatedID, rating.Score, rating.Comment).StructScan(&created)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.Rating{}, ErrAlreadyRated
		}
		return models.Rating{}, err
	}
	return created, nil
}

// GetBySession fetches the rating attached to a session, if any.
func (r *RatingRepo) GetBySession(ctx context.Context, sessionID int) (models.Rating, error) {
	var rating models.Rating
	err := r.db.GetContext(ctx, &rating, `SELECT id, session_id, request_id, rater_id, rated_id, score, comment, created_at
        FROM ratings WHERE session_id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Rating{}, ErrRatingNotFound
	}
	return rating, err
}
