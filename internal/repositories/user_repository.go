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
	ErrUserNotFound = errors.New("user not found")
	ErrPhoneTaken   = errors.New("phone already registered")
)

const userColumns = `id, name, phone, city, communities, password_hash, rating, ratings_count, completed_deliveries, created_at`

// UserRepository abstracts user persistence. Users are never hard-deleted.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userID int) (models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (models.User, error)
	ApplyRating(ctx context.Context, userID, score int) error
	IncrementCompletedDeliveries(ctx context.Context, userID int) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser registers a new user. The phone number is the login identity
// and must be unique.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	var created models.User
	err := r.db.QueryRowxContext(ctx, `INSERT INTO users (name, phone, city, communities, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+userColumns,
		user.Name, user.Phone, user.City, user.Communities, user.PasswordHash).StructScan(&created)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.User{}, ErrPhoneTaken
		}
		return models.User{}, err
	}
	return created, nil
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByPhone fetches a user by phone number.
func (r *UserRepo) GetUserByPhone(ctx context.Context, phone string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE phone=$1`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ApplyRating folds a new score into the user's aggregate rating as an
// incremental mean.
func (r *UserRepo) ApplyRating(ctx context.Context, userID, score int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users
        SET rating = (rating * ratings_count + $2) / (ratings_count + 1),
            ratings_count = ratings_count + 1
        WHERE id=$1`, userID, score)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementCompletedDeliveries bumps the collector's delivery counter.
func (r *UserRepo) IncrementCompletedDeliveries(ctx context.Context, userID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET completed_deliveries = completed_deliveries + 1 WHERE id=$1`, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
