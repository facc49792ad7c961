// schema.go implements SchemaProvisioner, which builds a tenant's isolated
// data schema and seeds its baseline rows. Every statement is guarded so the
// whole sequence can be re-run after a partial failure without duplicating
// rows or failing on objects that already exist.
package provisioner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// schemaNamePattern is the allowlist for schema identifiers. Names are
// allocator-generated but are still never trusted as raw SQL.
var schemaNamePattern = regexp.MustCompile(`^tenant_[a-z0-9]{1,48}$`)

// SchemaError describes a failed provisioning statement by intent. Driver
// internals stay in the wrapped error and out of API responses.
type SchemaError struct {
	Step   string // "create_schema", "create_tables", "seed_admin_user", ...
	Intent string // human-readable description of what the statement was doing
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema provisioning failed at %s (%s): %v", e.Step, e.Intent, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// SeedSpec carries the signup details the seeder needs
type SeedSpec struct {
	AdminName     string
	AdminEmail    string
	PropertyCount int
}

// maxSampleProperties bounds seeding cost for large requested counts.
const maxSampleProperties = 3

// SchemaProvisioner creates and seeds per-tenant schemas
type SchemaProvisioner struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSchemaProvisioner creates a schema provisioner
func NewSchemaProvisioner(db *sql.DB, logger *slog.Logger) *SchemaProvisioner {
	return &SchemaProvisioner{db: db, logger: logger}
}

// tenantTables is the fixed table set every tenant schema gets. Each table
// carries organization_id for defense in depth on top of schema isolation.
var tenantTables = []struct {
	name string
	ddl  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS %s.users (
			id              UUID PRIMARY KEY,
			organization_id TEXT NOT NULL,
			name            TEXT NOT NULL,
			email           TEXT NOT NULL UNIQUE,
			role            TEXT NOT NULL DEFAULT 'staff',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"properties", `
		CREATE TABLE IF NOT EXISTS %s.properties (
			id              UUID PRIMARY KEY,
			organization_id TEXT NOT NULL,
			name            TEXT NOT NULL,
			address         TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'active',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"tasks", `
		CREATE TABLE IF NOT EXISTS %s.tasks (
			id              UUID PRIMARY KEY,
			organization_id TEXT NOT NULL,
			title           TEXT NOT NULL,
			assigned_to     UUID,
			status          TEXT NOT NULL DEFAULT 'open',
			due_at          TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"bookings", `
		CREATE TABLE IF NOT EXISTS %s.bookings (
			id              UUID PRIMARY KEY,
			organization_id TEXT NOT NULL,
			property_id     UUID,
			guest_name      TEXT NOT NULL DEFAULT '',
			starts_on       DATE,
			ends_on         DATE,
			status          TEXT NOT NULL DEFAULT 'pending',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
}

// CreateSchema creates the tenant schema and its table set. Safe to re-run;
// existing objects are left untouched.
func (p *SchemaProvisioner) CreateSchema(ctx context.Context, schemaName string) error {
	if !schemaNamePattern.MatchString(schemaName) {
		return &SchemaError{
			Step:   "validate_schema_name",
			Intent: "schema name must match the tenant identifier pattern",
			Err:    fmt.Errorf("invalid schema name %q", schemaName),
		}
	}

	quoted := pq.QuoteIdentifier(schemaName)

	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoted)); err != nil {
		return &SchemaError{Step: "create_schema", Intent: "create tenant schema", Err: err}
	}

	for _, table := range tenantTables {
		ddl := fmt.Sprintf(table.ddl, quoted)
		if _, err := p.db.ExecContext(ctx, ddl); err != nil {
			return &SchemaError{
				Step:   "create_tables",
				Intent: fmt.Sprintf("create %s table", table.name),
				Err:    err,
			}
		}
	}

	p.logger.Info("tenant schema created", "schema", schemaName)
	return nil
}

// Seed inserts the baseline rows a fresh tenant starts with: one admin user
// from the signup contact, a bounded number of sample properties, and one
// onboarding task assigned to the admin. Guarded inserts make re-runs safe.
func (p *SchemaProvisioner) Seed(ctx context.Context, schemaName, orgID string, spec SeedSpec) error {
	if !schemaNamePattern.MatchString(schemaName) {
		return &SchemaError{
			Step:   "validate_schema_name",
			Intent: "schema name must match the tenant identifier pattern",
			Err:    fmt.Errorf("invalid schema name %q", schemaName),
		}
	}

	quoted := pq.QuoteIdentifier(schemaName)

	adminID := uuid.New().String()
	adminQuery := fmt.Sprintf(`
		INSERT INTO %s.users (id, organization_id, name, email, role)
		VALUES ($1, $2, $3, $4, 'admin')
		ON CONFLICT (email) DO NOTHING
	`, quoted)
	if _, err := p.db.ExecContext(ctx, adminQuery, adminID, orgID, spec.AdminName, spec.AdminEmail); err != nil {
		return &SchemaError{Step: "seed_admin_user", Intent: "insert admin user from signup contact", Err: err}
	}

	sampleCount := spec.PropertyCount
	if sampleCount > maxSampleProperties {
		sampleCount = maxSampleProperties
	}
	for i := 1; i <= sampleCount; i++ {
		propQuery := fmt.Sprintf(`
			INSERT INTO %s.properties (id, organization_id, name)
			SELECT $1, $2, $3
			WHERE NOT EXISTS (
				SELECT 1 FROM %s.properties WHERE organization_id = $2 AND name = $3
			)
		`, quoted, quoted)
		name := fmt.Sprintf("Sample Property %d", i)
		if _, err := p.db.ExecContext(ctx, propQuery, uuid.New().String(), orgID, name); err != nil {
			return &SchemaError{
				Step:   "seed_sample_properties",
				Intent: fmt.Sprintf("insert sample property %d of %d", i, sampleCount),
				Err:    err,
			}
		}
	}

	taskQuery := fmt.Sprintf(`
		INSERT INTO %s.tasks (id, organization_id, title, assigned_to)
		SELECT $1, $2, $3, u.id
		FROM %s.users u
		WHERE u.organization_id = $2 AND u.role = 'admin'
		  AND NOT EXISTS (
			SELECT 1 FROM %s.tasks WHERE organization_id = $2 AND title = $3
		  )
		LIMIT 1
	`, quoted, quoted, quoted)
	title := "Complete your onboarding checklist"
	if _, err := p.db.ExecContext(ctx, taskQuery, uuid.New().String(), orgID, title); err != nil {
		return &SchemaError{Step: "seed_onboarding_task", Intent: "insert onboarding task for admin user", Err: err}
	}

	p.logger.Info("tenant schema seeded",
		"schema", schemaName,
		"organization_id", orgID,
		"sample_properties", sampleCount,
	)
	return nil
}
