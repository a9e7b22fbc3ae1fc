package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"pickup-service/internal/models"
)

var ErrRequestNotFound = errors.New("pickup request not found")

const requestColumns = `r.id, r.title, r.description, r.pickup_location, r.pickup_city, r.delivery_location, r.delivery_city,
        r.package_size, r.urgency, r.suggested_price, r.contact_phone, r.notes, r.requester_id, u.name AS requester_name,
        r.status, r.accepted_by, r.created_at, r.updated_at`

// RequestRepository abstracts pickup request persistence. Requests are never
// physically deleted, only transitioned between statuses.
type RequestRepository interface {
	CreateRequest(ctx context.Context, req models.PickupRequest) (models.PickupRequest, error)
	GetRequest(ctx context.Context, requestID int) (models.PickupRequest, error)
	ListOpenRequests(ctx context.Context, city string) ([]models.PickupRequest, error)
	MarkAccepted(ctx context.Context, requestID, collectorID int) error
	UpdateStatus(ctx context.Context, requestID int, status models.RequestStatus) error
}

// RequestRepo is a sqlx implementation of RequestRepository.
type RequestRepo struct {
	db *sqlx.DB
}

// NewRequestRepo constructs a RequestRepo.
func NewRequestRepo(db *sqlx.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

// CreateRequest stores a new open pickup request.
func (r *RequestRepo) CreateRequest(ctx context.Context, req models.PickupRequest) (models.PickupRequest, error) {
	var id int
	err := r.db.QueryRowxContext(ctx, `INSERT INTO pickup_requests
        (title, description, pickup_location, pickup_city, delivery_location, delivery_city,
         package_size, urgency, suggested_price, contact_phone, notes, requester_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id`,
		req.Title, req.Description, req.PickupLocation, req.PickupCity, req.DeliveryLocation, req.DeliveryCity,
		req.PackageSize, req.Urgency, req.SuggestedPrice, req.ContactPhone, req.Notes, req.RequesterID).Scan(&id)
	if err != nil {
		return models.PickupRequest{}, err
	}
	return r.GetRequest(ctx, id)
}

// GetRequest fetches a request by id, joined with the requester's name.
func (r *RequestRepo) GetRequest(ctx context.Context, requestID int) (models.PickupRequest, error) {
	var req models.PickupRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+`
        FROM pickup_requests r JOIN users u ON u.id = r.requester_id
        WHERE r.id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PickupRequest{}, ErrRequestNotFound
	}
	return req, err
}

// ListOpenRequests returns open requests, optionally filtered by pickup city.
func (r *RequestRepo) ListOpenRequests(ctx context.Context, city string) ([]models.PickupRequest, error) {
	query := `SELECT ` + requestColumns + `
        FROM pickup_requests r JOIN users u ON u.id = r.requester_id
        WHERE r.status='open'`
	args := []interface{}{}
	if city != "" {
		query += ` AND r.pickup_city=$1`
		args = append(args, city)
	}
	query += ` ORDER BY r.created_at DESC`

	var reqs []models.PickupRequest
	err := r.db.SelectContext(ctx, &reqs, query, args...)
	return reqs, err
}

// MarkAccepted transitions an open request to accepted by the collector.
// Already-accepted requests are left untouched so late opens of an existing
// session do not clobber the status.
func (r *RequestRepo) MarkAccepted(ctx context.Context, requestID, collectorID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE pickup_requests
        SET status='accepted', accepted_by=$2, updated_at=NOW()
        WHERE id=$1 AND status='open'`, requestID, collectorID)
	if err != nil {
		return err
	}
	if _, err := res.RowsAffected(); err != nil {
		return err
	}
	return nil
}

// UpdateStatus transitions the request status.
func (r *RequestRepo) UpdateStatus(ctx context.Context, requestID int, status models.RequestStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE pickup_requests SET status=$2, updated_at=NOW() WHERE id=$1`, requestID, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRequestNotFound
	}
	return nil
}
