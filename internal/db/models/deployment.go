// Package models - deployment.go defines the Deployment model, the durable
// progress record for one tenant's provisioning attempt. Status fields only
// move forward; the log is append-only and never rewritten.
package models

import (
	"time"

	"github.com/lib/pq"
)

// Overall deployment states.
const (
	DeploymentStatusProvisioning = "provisioning"
	DeploymentStatusReady        = "ready"
	DeploymentStatusFailed       = "failed"
)

// Database provisioning sub-states.
const (
	DatabaseStatusCreating  = "creating"
	DatabaseStatusMigrating = "migrating"
	DatabaseStatusReady     = "ready"
	DatabaseStatusFailed    = "failed"
)

// Seed data sub-states.
const (
	SeedStatusPending   = "pending"
	SeedStatusSeeding   = "seeding"
	SeedStatusCompleted = "completed"
	SeedStatusFailed    = "failed"
)

// Rank tables used to enforce forward-only status transitions. "failed" ranks
// highest so it is reachable from any state; leaving it again is handled as a
// retry case, not by rank.
var (
	deploymentStatusRank = map[string]int{
		DeploymentStatusProvisioning: 0,
		DeploymentStatusReady:        1,
		DeploymentStatusFailed:       2,
	}
	databaseStatusRank = map[string]int{
		DatabaseStatusCreating:  0,
		DatabaseStatusMigrating: 1,
		DatabaseStatusReady:     2,
		DatabaseStatusFailed:    3,
	}
	seedStatusRank = map[string]int{
		SeedStatusPending:   0,
		SeedStatusSeeding:   1,
		SeedStatusCompleted: 2,
		SeedStatusFailed:    3,
	}
)

// Deployment is the permanent provisioning history for one organization.
// There is exactly one row per organization; retried provisioning reuses it.
type Deployment struct {
	ID               string         `db:"id" json:"id"`
	OrganizationID   string         `db:"organization_id" json:"organization_id"`
	DeploymentStatus string         `db:"deployment_status" json:"deployment_status"`
	DatabaseStatus   string         `db:"database_status" json:"database_status"`
	SeedDataStatus   string         `db:"seed_data_status" json:"seed_data_status"`
	DeploymentLogs   pq.StringArray `db:"deployment_logs" json:"deployment_logs"`
	ErrorLogs        pq.StringArray `db:"error_logs" json:"error_logs"`
	EnvironmentURL   *string        `db:"environment_url" json:"environment_url,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	CompletedAt      *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// IsTerminal reports whether the deployment has reached ready or failed.
func (d *Deployment) IsTerminal() bool {
	return d.DeploymentStatus == DeploymentStatusReady || d.DeploymentStatus == DeploymentStatusFailed
}

// canTransition reports whether a status track may move from current to next.
// Equal statuses are allowed so idempotent re-runs are not rejected, and a
// failed track may move anywhere because an operator retry resumes from it.
// Success states never regress.
func canTransition(rank map[string]int, failed, current, next string) bool {
	cr, ok := rank[current]
	if !ok {
		return false
	}
	nr, ok := rank[next]
	if !ok {
		return false
	}
	if current == failed {
		return true
	}
	return nr >= cr
}

// CanAdvanceDeployment reports whether deployment_status may move to next.
// Ready is the terminal success state; nothing leaves it.
func (d *Deployment) CanAdvanceDeployment(next string) bool {
	if d.DeploymentStatus == DeploymentStatusReady {
		return next == DeploymentStatusReady
	}
	return canTransition(deploymentStatusRank, DeploymentStatusFailed, d.DeploymentStatus, next)
}

// CanAdvanceDatabase reports whether database_status may move to next.
func (d *Deployment) CanAdvanceDatabase(next string) bool {
	return canTransition(databaseStatusRank, DatabaseStatusFailed, d.DatabaseStatus, next)
}

// CanAdvanceSeed reports whether seed_data_status may move to next.
func (d *Deployment) CanAdvanceSeed(next string) bool {
	return canTransition(seedStatusRank, SeedStatusFailed, d.SeedDataStatus, next)
}
