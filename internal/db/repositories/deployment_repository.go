// deployment_repository.go implements DeploymentRepository, the persistence
// layer for provisioning progress records. Status changes and log appends for
// one advance happen in a single transaction under a row lock, so concurrent
// writers cannot interleave and statuses never move backwards.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// ErrBackwardTransition is returned when an advance would move a status track
// to an earlier state than the one already recorded.
var ErrBackwardTransition = errors.New("status transition moves backwards")

// DeploymentRepository handles database operations for deployments
type DeploymentRepository struct {
	db *sqlx.DB
}

// NewDeploymentRepository creates a new deployment repository
func NewDeploymentRepository(db *sqlx.DB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

// Create inserts a fresh deployment record for an organization with all status
// tracks at their initial values and a single seed log line, so the record is
// never observable with an empty log. Returns ErrDuplicateKey if the
// organization already has a deployment.
func (r *DeploymentRepository) Create(ctx context.Context, orgID string) (*models.Deployment, error) {
	query := `
		INSERT INTO deployments (id, organization_id, deployment_logs)
		VALUES ($1, $2, ARRAY['provisioning started'])
		RETURNING id, organization_id, deployment_status, database_status, seed_data_status,
		          deployment_logs, error_logs, environment_url, created_at, completed_at
	`

	dep := &models.Deployment{}
	err := r.db.GetContext(ctx, dep, query, uuid.New().String(), orgID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	return dep, nil
}

// GetByOrganization retrieves the deployment record for an organization
func (r *DeploymentRepository) GetByOrganization(ctx context.Context, orgID string) (*models.Deployment, error) {
	query := `
		SELECT id, organization_id, deployment_status, database_status, seed_data_status,
		       deployment_logs, error_logs, environment_url, created_at, completed_at
		FROM deployments
		WHERE organization_id = $1
	`

	dep := &models.Deployment{}
	err := r.db.GetContext(ctx, dep, query, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	return dep, nil
}

// GetByID retrieves a deployment record by its ID
func (r *DeploymentRepository) GetByID(ctx context.Context, id string) (*models.Deployment, error) {
	query := `
		SELECT id, organization_id, deployment_status, database_status, seed_data_status,
		       deployment_logs, error_logs, environment_url, created_at, completed_at
		FROM deployments
		WHERE id = $1
	`

	dep := &models.Deployment{}
	err := r.db.GetContext(ctx, dep, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	return dep, nil
}

// List retrieves a paginated list of deployments, newest first. An empty
// status filter returns all deployments.
func (r *DeploymentRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.Deployment, error) {
	query := `
		SELECT id, organization_id, deployment_status, database_status, seed_data_status,
		       deployment_logs, error_logs, environment_url, created_at, completed_at
		FROM deployments
		WHERE ($1 = '' OR deployment_status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	deployments := make([]*models.Deployment, 0)
	if err := r.db.SelectContext(ctx, &deployments, query, status, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	return deployments, nil
}

// Advance describes one step of deployment progress. Empty status fields keep
// the current value; LogLines and ErrorLines are appended, never replacing
// earlier entries. SetCompleted stamps completed_at and SetEnvironmentURL
// records the tenant's public URL.
type Advance struct {
	DeploymentStatus  string
	DatabaseStatus    string
	SeedDataStatus    string
	LogLines          []string
	ErrorLines        []string
	SetEnvironmentURL string
	SetCompleted      bool
}

// Apply advances a deployment atomically. The row is locked for the duration
// of the transaction; each non-empty status is validated against the rank
// tables before the single UPDATE is issued. Returns ErrNotFound when the
// organization has no deployment and ErrBackwardTransition when any requested
// status is earlier than the recorded one.
func (r *DeploymentRepository) Apply(ctx context.Context, orgID string, adv Advance) (*models.Deployment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lockQuery := `
		SELECT id, organization_id, deployment_status, database_status, seed_data_status,
		       deployment_logs, error_logs, environment_url, created_at, completed_at
		FROM deployments
		WHERE organization_id = $1
		FOR UPDATE
	`

	current := &models.Deployment{}
	if err := tx.GetContext(ctx, current, lockQuery, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock deployment: %w", err)
	}

	next := *current
	if adv.DeploymentStatus != "" {
		if !current.CanAdvanceDeployment(adv.DeploymentStatus) {
			return nil, fmt.Errorf("deployment_status %s -> %s: %w",
				current.DeploymentStatus, adv.DeploymentStatus, ErrBackwardTransition)
		}
		next.DeploymentStatus = adv.DeploymentStatus
	}
	if adv.DatabaseStatus != "" {
		if !current.CanAdvanceDatabase(adv.DatabaseStatus) {
			return nil, fmt.Errorf("database_status %s -> %s: %w",
				current.DatabaseStatus, adv.DatabaseStatus, ErrBackwardTransition)
		}
		next.DatabaseStatus = adv.DatabaseStatus
	}
	if adv.SeedDataStatus != "" {
		if !current.CanAdvanceSeed(adv.SeedDataStatus) {
			return nil, fmt.Errorf("seed_data_status %s -> %s: %w",
				current.SeedDataStatus, adv.SeedDataStatus, ErrBackwardTransition)
		}
		next.SeedDataStatus = adv.SeedDataStatus
	}

	updateQuery := `
		UPDATE deployments
		SET deployment_status = $2,
		    database_status = $3,
		    seed_data_status = $4,
		    deployment_logs = deployment_logs || $5,
		    error_logs = error_logs || $6,
		    environment_url = COALESCE(NULLIF($7, ''), environment_url),
		    completed_at = CASE WHEN $8 THEN NOW() ELSE completed_at END
		WHERE organization_id = $1
		RETURNING id, organization_id, deployment_status, database_status, seed_data_status,
		          deployment_logs, error_logs, environment_url, created_at, completed_at
	`

	updated := &models.Deployment{}
	err = tx.GetContext(ctx, updated, updateQuery,
		orgID,
		next.DeploymentStatus,
		next.DatabaseStatus,
		next.SeedDataStatus,
		pq.Array(adv.LogLines),
		pq.Array(adv.ErrorLines),
		adv.SetEnvironmentURL,
		adv.SetCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to advance deployment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deployment advance: %w", err)
	}

	return updated, nil
}

// FindStalled returns deployments still in the provisioning state that were
// created before the cutoff. These are runs whose server died mid-provision;
// the reaper marks them failed so an operator can retry the approval.
func (r *DeploymentRepository) FindStalled(ctx context.Context, cutoff time.Time) ([]*models.Deployment, error) {
	query := `
		SELECT id, organization_id, deployment_status, database_status, seed_data_status,
		       deployment_logs, error_logs, environment_url, created_at, completed_at
		FROM deployments
		WHERE deployment_status = $1 AND created_at < $2
		ORDER BY created_at ASC
	`

	deployments := make([]*models.Deployment, 0)
	if err := r.db.SelectContext(ctx, &deployments, query, models.DeploymentStatusProvisioning, cutoff); err != nil {
		return nil, fmt.Errorf("failed to find stalled deployments: %w", err)
	}

	return deployments, nil
}

// AppendLog appends progress lines without touching any status track
func (r *DeploymentRepository) AppendLog(ctx context.Context, orgID string, lines ...string) error {
	_, err := r.Apply(ctx, orgID, Advance{LogLines: lines})
	return err
}
