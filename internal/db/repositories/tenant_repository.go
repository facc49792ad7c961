// tenant_repository.go implements TenantRepository, providing database queries
// for the tenant registry: creation, lookup by identity or subdomain, lifecycle
// status changes, and paginated listing.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// TenantRepository handles database operations for tenants
type TenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create inserts a new tenant. Returns ErrDuplicateKey when the organization ID
// or subdomain is already taken.
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (
			organization_id, company_name, subdomain, schema_name,
			plan_type, status, max_properties, max_users, features,
			contact_email, activated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at, activated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		tenant.OrganizationID,
		tenant.CompanyName,
		tenant.Subdomain,
		tenant.SchemaName,
		tenant.PlanType,
		tenant.Status,
		tenant.MaxProperties,
		tenant.MaxUsers,
		tenant.Features,
		tenant.ContactEmail,
	).Scan(&tenant.CreatedAt, &tenant.ActivatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	return nil
}

// GetByOrganizationID retrieves a tenant by its organization ID
func (r *TenantRepository) GetByOrganizationID(ctx context.Context, orgID string) (*models.Tenant, error) {
	query := `
		SELECT organization_id, company_name, subdomain, schema_name,
		       plan_type, status, max_properties, max_users, features,
		       contact_email, created_at, activated_at, suspended_at, terminated_at
		FROM tenants
		WHERE organization_id = $1
	`

	return r.scanTenant(r.db.QueryRowContext(ctx, query, orgID))
}

// GetBySubdomain retrieves a tenant by its subdomain
func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	query := `
		SELECT organization_id, company_name, subdomain, schema_name,
		       plan_type, status, max_properties, max_users, features,
		       contact_email, created_at, activated_at, suspended_at, terminated_at
		FROM tenants
		WHERE subdomain = $1
	`

	return r.scanTenant(r.db.QueryRowContext(ctx, query, subdomain))
}

func (r *TenantRepository) scanTenant(row *sql.Row) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := row.Scan(
		&tenant.OrganizationID,
		&tenant.CompanyName,
		&tenant.Subdomain,
		&tenant.SchemaName,
		&tenant.PlanType,
		&tenant.Status,
		&tenant.MaxProperties,
		&tenant.MaxUsers,
		&tenant.Features,
		&tenant.ContactEmail,
		&tenant.CreatedAt,
		&tenant.ActivatedAt,
		&tenant.SuspendedAt,
		&tenant.TerminatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return tenant, nil
}

// UpdateStatus sets a tenant's lifecycle status and stamps the matching
// timestamp column. Reactivating a tenant clears suspended_at and
// terminated_at; suspension and termination leave earlier stamps in place.
func (r *TenantRepository) UpdateStatus(ctx context.Context, orgID, status string) error {
	if !models.ValidTenantStatus(status) {
		return fmt.Errorf("invalid tenant status %q", status)
	}

	var query string
	switch status {
	case models.TenantStatusActive:
		query = `
			UPDATE tenants
			SET status = $2, activated_at = NOW(), suspended_at = NULL, terminated_at = NULL
			WHERE organization_id = $1
		`
	case models.TenantStatusSuspended:
		query = `
			UPDATE tenants
			SET status = $2, suspended_at = NOW()
			WHERE organization_id = $1
		`
	case models.TenantStatusTerminated:
		query = `
			UPDATE tenants
			SET status = $2, terminated_at = NOW()
			WHERE organization_id = $1
		`
	}

	result, err := r.db.ExecContext(ctx, query, orgID, status)
	if err != nil {
		return fmt.Errorf("failed to update tenant status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update tenant status: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// List retrieves a paginated list of tenants, newest first. An empty status
// filter returns all tenants.
func (r *TenantRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.Tenant, error) {
	query := `
		SELECT organization_id, company_name, subdomain, schema_name,
		       plan_type, status, max_properties, max_users, features,
		       contact_email, created_at, activated_at, suspended_at, terminated_at
		FROM tenants
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]*models.Tenant, 0)
	for rows.Next() {
		tenant := &models.Tenant{}
		err := rows.Scan(
			&tenant.OrganizationID,
			&tenant.CompanyName,
			&tenant.Subdomain,
			&tenant.SchemaName,
			&tenant.PlanType,
			&tenant.Status,
			&tenant.MaxProperties,
			&tenant.MaxUsers,
			&tenant.Features,
			&tenant.ContactEmail,
			&tenant.CreatedAt,
			&tenant.ActivatedAt,
			&tenant.SuspendedAt,
			&tenant.TerminatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	return tenants, rows.Err()
}

// Count returns the total number of tenants matching the status filter.
// An empty filter counts all tenants.
func (r *TenantRepository) Count(ctx context.Context, status string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM tenants WHERE ($1 = '' OR status = $1)`
	err := r.db.QueryRowContext(ctx, query, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	return count, nil
}

// SubdomainExists reports whether a subdomain is already assigned to a tenant
func (r *TenantRepository) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM tenants WHERE subdomain = $1)`
	err := r.db.QueryRowContext(ctx, query, subdomain).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check subdomain: %w", err)
	}

	return exists, nil
}

// OrganizationIDExists reports whether an organization ID is already assigned
func (r *TenantRepository) OrganizationIDExists(ctx context.Context, orgID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM tenants WHERE organization_id = $1)`
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check organization id: %w", err)
	}

	return exists, nil
}
