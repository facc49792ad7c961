package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var tenantCols = []string{
	"organization_id", "company_name", "subdomain", "schema_name",
	"plan_type", "status", "max_properties", "max_users", "features",
	"contact_email", "created_at", "activated_at", "suspended_at", "terminated_at",
}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func sampleTenantRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(tenantCols).AddRow(
		"org_ab12cd34", "Acme Villas", "acmevillas", "tenant_ab12cd34",
		"pro", "active", 20, 15, "{channel_manager,payments}",
		"ops@acmevillas.example", now, now, nil, nil,
	)
}

func emptyTenantRow() *sqlmock.Rows {
	return sqlmock.NewRows(tenantCols)
}

func newTenantRepo(t *testing.T) (*TenantRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTenantRepository(db), mock
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateTenant_Success(t *testing.T) {
	repo, mock := newTenantRepo(t)
	now := time.Now()
	mock.ExpectQuery("INSERT INTO tenants").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "activated_at"}).AddRow(now, now))

	tenant := &models.Tenant{
		OrganizationID: "org_ab12cd34",
		CompanyName:    "Acme Villas",
		Subdomain:      "acmevillas",
		SchemaName:     "tenant_ab12cd34",
		PlanType:       "pro",
		Status:         "active",
		MaxProperties:  20,
		MaxUsers:       15,
		Features:       []string{"channel_manager"},
		ContactEmail:   "ops@acmevillas.example",
	}
	if err := repo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant.CreatedAt.IsZero() {
		t.Error("expected created_at to be filled in")
	}
}

func TestCreateTenant_DuplicateSubdomain(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("INSERT INTO tenants").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "tenants_subdomain_key"})

	err := repo.Create(context.Background(), &models.Tenant{Subdomain: "acmevillas"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestCreateTenant_DBError(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("INSERT INTO tenants").
		WillReturnError(errDB)

	if err := repo.Create(context.Background(), &models.Tenant{}); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetByOrganizationID / GetBySubdomain
// ---------------------------------------------------------------------------

func TestGetTenantByOrganizationID_Found(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("SELECT.*FROM tenants.*WHERE organization_id").
		WithArgs("org_ab12cd34").
		WillReturnRows(sampleTenantRow())

	tenant, err := repo.GetByOrganizationID(context.Background(), "org_ab12cd34")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant == nil {
		t.Fatal("expected tenant, got nil")
	}
	if tenant.SchemaName != "tenant_ab12cd34" {
		t.Errorf("SchemaName = %s, want tenant_ab12cd34", tenant.SchemaName)
	}
	if len(tenant.Features) != 2 {
		t.Errorf("len(Features) = %d, want 2", len(tenant.Features))
	}
}

func TestGetTenantByOrganizationID_NotFound(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("SELECT.*FROM tenants.*WHERE organization_id").
		WillReturnRows(emptyTenantRow())

	tenant, err := repo.GetByOrganizationID(context.Background(), "org_missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestGetTenantBySubdomain_Found(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("SELECT.*FROM tenants.*WHERE subdomain").
		WithArgs("acmevillas").
		WillReturnRows(sampleTenantRow())

	tenant, err := repo.GetBySubdomain(context.Background(), "acmevillas")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant == nil {
		t.Fatal("expected tenant, got nil")
	}
}

func TestGetTenantBySubdomain_NotFound(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("SELECT.*FROM tenants.*WHERE subdomain").
		WillReturnRows(emptyTenantRow())

	tenant, err := repo.GetBySubdomain(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant != nil {
		t.Error("expected nil, got non-nil")
	}
}

// ---------------------------------------------------------------------------
// UpdateStatus
// ---------------------------------------------------------------------------

func TestUpdateTenantStatus_Suspend(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectExec("UPDATE tenants.*suspended_at = NOW").
		WithArgs("org_ab12cd34", "suspended").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "org_ab12cd34", "suspended"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateTenantStatus_ReactivateClearsStamps(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectExec("UPDATE tenants.*suspended_at = NULL, terminated_at = NULL").
		WithArgs("org_ab12cd34", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "org_ab12cd34", "active"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateTenantStatus_InvalidStatus(t *testing.T) {
	repo, _ := newTenantRepo(t)

	if err := repo.UpdateStatus(context.Background(), "org_ab12cd34", "deleted"); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestUpdateTenantStatus_NotFound(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectExec("UPDATE tenants").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "org_missing", "terminated")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// List / Count
// ---------------------------------------------------------------------------

func TestListTenants_Success(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("SELECT.*FROM tenants.*ORDER BY created_at.*LIMIT").
		WithArgs("", 20, 0).
		WillReturnRows(sampleTenantRow())

	tenants, err := repo.List(context.Background(), "", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tenants) != 1 {
		t.Errorf("len(tenants) = %d, want 1", len(tenants))
	}
}

func TestListTenants_StatusFilter(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("SELECT.*FROM tenants").
		WithArgs("suspended", 20, 0).
		WillReturnRows(emptyTenantRow())

	tenants, err := repo.List(context.Background(), "suspended", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tenants) != 0 {
		t.Errorf("len(tenants) = %d, want 0", len(tenants))
	}
}

func TestCountTenants_Success(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM tenants").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.Count(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

// ---------------------------------------------------------------------------
// SubdomainExists / OrganizationIDExists
// ---------------------------------------------------------------------------

func TestSubdomainExists(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("SELECT EXISTS.*FROM tenants WHERE subdomain").
		WithArgs("acmevillas").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.SubdomainExists(context.Background(), "acmevillas")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected subdomain to exist")
	}
}

func TestOrganizationIDExists_DBError(t *testing.T) {
	repo, mock := newTenantRepo(t)
	mock.ExpectQuery("SELECT EXISTS.*FROM tenants WHERE organization_id").
		WillReturnError(errDB)

	if _, err := repo.OrganizationIDExists(context.Background(), "org_x"); err == nil {
		t.Error("expected error")
	}
}
