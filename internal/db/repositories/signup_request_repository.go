// signup_request_repository.go implements SignupRequestRepository, providing
// database queries for public signup intake and admin review decisions.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// SignupRequestRepository handles database operations for signup requests
type SignupRequestRepository struct {
	db *sqlx.DB
}

// NewSignupRequestRepository creates a new signup request repository
func NewSignupRequestRepository(db *sqlx.DB) *SignupRequestRepository {
	return &SignupRequestRepository{db: db}
}

// Create inserts a new pending signup request and fills in the generated ID
// and submission timestamp.
func (r *SignupRequestRepository) Create(ctx context.Context, req *models.SignupRequest) error {
	query := `
		INSERT INTO signup_requests (
			id, company_name, contact_name, email, country,
			property_count, requested_features
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING status, submitted_at
	`

	req.ID = uuid.New().String()
	err := r.db.QueryRowxContext(ctx, query,
		req.ID,
		req.CompanyName,
		req.ContactName,
		req.Email,
		req.Country,
		req.PropertyCount,
		req.RequestedFeatures,
	).Scan(&req.Status, &req.SubmittedAt)

	if err != nil {
		return fmt.Errorf("failed to create signup request: %w", err)
	}

	return nil
}

// GetByID retrieves a signup request by ID
func (r *SignupRequestRepository) GetByID(ctx context.Context, id string) (*models.SignupRequest, error) {
	query := `
		SELECT id, company_name, contact_name, email, country,
		       property_count, requested_features, status, organization_id,
		       submitted_at, reviewed_at, reviewed_by, rejection_reason
		FROM signup_requests
		WHERE id = $1
	`

	req := &models.SignupRequest{}
	err := r.db.GetContext(ctx, req, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get signup request: %w", err)
	}

	return req, nil
}

// List retrieves a paginated list of signup requests, newest first. An empty
// status filter returns all requests.
func (r *SignupRequestRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.SignupRequest, error) {
	query := `
		SELECT id, company_name, contact_name, email, country,
		       property_count, requested_features, status, organization_id,
		       submitted_at, reviewed_at, reviewed_by, rejection_reason
		FROM signup_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3
	`

	requests := make([]*models.SignupRequest, 0)
	if err := r.db.SelectContext(ctx, &requests, query, status, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list signup requests: %w", err)
	}

	return requests, nil
}

// Count returns the number of signup requests matching the status filter
func (r *SignupRequestRepository) Count(ctx context.Context, status string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM signup_requests WHERE ($1 = '' OR status = $1)`
	if err := r.db.GetContext(ctx, &count, query, status); err != nil {
		return 0, fmt.Errorf("failed to count signup requests: %w", err)
	}

	return count, nil
}

// MarkApproved records an approval decision and links the request to the
// organization created for it. Only a pending request can be approved;
// ErrNotFound means the request is missing or already reviewed.
func (r *SignupRequestRepository) MarkApproved(ctx context.Context, id, orgID, reviewedBy string) error {
	query := `
		UPDATE signup_requests
		SET status = $2, organization_id = $3, reviewed_at = NOW(), reviewed_by = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		id, models.SignupStatusApproved, orgID, reviewedBy, models.SignupStatusPending)
	if err != nil {
		return fmt.Errorf("failed to approve signup request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to approve signup request: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkRejected records a rejection decision with an optional reason. Only a
// pending request can be rejected; ErrNotFound means the request is missing
// or already reviewed.
func (r *SignupRequestRepository) MarkRejected(ctx context.Context, id, reviewedBy, reason string) error {
	query := `
		UPDATE signup_requests
		SET status = $2, reviewed_at = NOW(), reviewed_by = $3, rejection_reason = NULLIF($4, '')
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		id, models.SignupStatusRejected, reviewedBy, reason, models.SignupStatusPending)
	if err != nil {
		return fmt.Errorf("failed to reject signup request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reject signup request: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
