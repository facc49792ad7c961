// audit_repository.go implements AuditRepository, the append-only store for
// control-plane audit events. Events are written once and never updated.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// AuditRepository handles database operations for audit logs
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit event
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (id, action, organization_id, performed_by, details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	entry.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.OrganizationID,
		entry.PerformedBy,
		detailsJSON,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// AuditFilter narrows a listing. Zero values mean no constraint.
type AuditFilter struct {
	OrganizationID string
	Action         string
	Since          time.Time
	Until          time.Time
}

// List retrieves a paginated list of audit events, newest first
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, action, organization_id, performed_by, details, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE ($1 = '' OR organization_id = $1)
		  AND ($2 = '' OR action = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`

	var since, until interface{}
	if !filter.Since.IsZero() {
		since = filter.Since
	}
	if !filter.Until.IsZero() {
		until = filter.Until
	}

	rows, err := r.db.QueryContext(ctx, query,
		filter.OrganizationID, filter.Action, since, until, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLog, 0)
	for rows.Next() {
		entry := &models.AuditLog{}
		var detailsJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.OrganizationID,
			&entry.PerformedBy,
			&detailsJSON,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to parse audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Count returns the number of audit events matching the filter
func (r *AuditRepository) Count(ctx context.Context, filter AuditFilter) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM audit_logs
		WHERE ($1 = '' OR organization_id = $1)
		  AND ($2 = '' OR action = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at <= $4)
	`

	var since, until interface{}
	if !filter.Since.IsZero() {
		since = filter.Since
	}
	if !filter.Until.IsZero() {
		until = filter.Until
	}

	var count int
	err := r.db.QueryRowContext(ctx, query,
		filter.OrganizationID, filter.Action, since, until).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	return count, nil
}
