package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var deploymentCols = []string{
	"id", "organization_id", "deployment_status", "database_status", "seed_data_status",
	"deployment_logs", "error_logs", "environment_url", "created_at", "completed_at",
}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func deploymentRow(depStatus, dbStatus, seedStatus string) *sqlmock.Rows {
	return sqlmock.NewRows(deploymentCols).AddRow(
		"22222222-2222-2222-2222-222222222222", "org_ab12cd34",
		depStatus, dbStatus, seedStatus,
		"{}", "{}", nil, time.Now(), nil,
	)
}

func newDeploymentRepo(t *testing.T) (*DeploymentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewDeploymentRepository(db), mock
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateDeployment_Success(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectQuery("INSERT INTO deployments.*deployment_logs.*ARRAY").
		WillReturnRows(sqlmock.NewRows(deploymentCols).AddRow(
			"22222222-2222-2222-2222-222222222222", "org_ab12cd34",
			"provisioning", "creating", "pending",
			`{"provisioning started"}`, "{}", nil, time.Now(), nil,
		))

	dep, err := repo.Create(context.Background(), "org_ab12cd34")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dep.DeploymentStatus != models.DeploymentStatusProvisioning {
		t.Errorf("DeploymentStatus = %s, want provisioning", dep.DeploymentStatus)
	}
	if dep.IsTerminal() {
		t.Error("fresh deployment must not be terminal")
	}
	if len(dep.DeploymentLogs) != 1 {
		t.Errorf("DeploymentLogs = %v, want the single seed line", dep.DeploymentLogs)
	}
}

func TestCreateDeployment_AlreadyExists(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectQuery("INSERT INTO deployments").
		WillReturnError(errDuplicate())

	_, err := repo.Create(context.Background(), "org_ab12cd34")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetByOrganization / GetByID
// ---------------------------------------------------------------------------

func TestGetDeploymentByOrganization_Found(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectQuery("SELECT.*FROM deployments.*WHERE organization_id").
		WithArgs("org_ab12cd34").
		WillReturnRows(deploymentRow("provisioning", "migrating", "pending"))

	dep, err := repo.GetByOrganization(context.Background(), "org_ab12cd34")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dep == nil {
		t.Fatal("expected deployment, got nil")
	}
	if dep.DatabaseStatus != models.DatabaseStatusMigrating {
		t.Errorf("DatabaseStatus = %s, want migrating", dep.DatabaseStatus)
	}
}

func TestGetDeploymentByOrganization_NotFound(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectQuery("SELECT.*FROM deployments.*WHERE organization_id").
		WillReturnRows(sqlmock.NewRows(deploymentCols))

	dep, err := repo.GetByOrganization(context.Background(), "org_missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dep != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestGetDeploymentByID_Found(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectQuery("SELECT.*FROM deployments.*WHERE id").
		WithArgs("22222222-2222-2222-2222-222222222222").
		WillReturnRows(deploymentRow("ready", "ready", "completed"))

	dep, err := repo.GetByID(context.Background(), "22222222-2222-2222-2222-222222222222")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dep == nil {
		t.Fatal("expected deployment, got nil")
	}
	if !dep.IsTerminal() {
		t.Error("ready deployment should be terminal")
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestListDeployments_Success(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectQuery("SELECT.*FROM deployments.*ORDER BY created_at.*LIMIT").
		WithArgs("failed", 20, 0).
		WillReturnRows(deploymentRow("failed", "failed", "pending"))

	deployments, err := repo.List(context.Background(), "failed", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deployments) != 1 {
		t.Errorf("len(deployments) = %d, want 1", len(deployments))
	}
}

// ---------------------------------------------------------------------------
// Apply
// ---------------------------------------------------------------------------

func TestApplyAdvance_Success(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM deployments.*FOR UPDATE").
		WithArgs("org_ab12cd34").
		WillReturnRows(deploymentRow("provisioning", "creating", "pending"))
	mock.ExpectQuery("UPDATE deployments").
		WillReturnRows(deploymentRow("provisioning", "migrating", "pending"))
	mock.ExpectCommit()

	dep, err := repo.Apply(context.Background(), "org_ab12cd34", Advance{
		DatabaseStatus: models.DatabaseStatusMigrating,
		LogLines:       []string{"running tenant schema migrations"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dep.DatabaseStatus != models.DatabaseStatusMigrating {
		t.Errorf("DatabaseStatus = %s, want migrating", dep.DatabaseStatus)
	}
}

func TestApplyAdvance_BackwardRejected(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM deployments.*FOR UPDATE").
		WillReturnRows(deploymentRow("provisioning", "migrating", "pending"))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), "org_ab12cd34", Advance{
		DatabaseStatus: models.DatabaseStatusCreating,
	})
	if !errors.Is(err, ErrBackwardTransition) {
		t.Fatalf("expected ErrBackwardTransition, got %v", err)
	}
}

func TestApplyAdvance_SameStatusAllowed(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM deployments.*FOR UPDATE").
		WillReturnRows(deploymentRow("provisioning", "migrating", "pending"))
	mock.ExpectQuery("UPDATE deployments").
		WillReturnRows(deploymentRow("provisioning", "migrating", "pending"))
	mock.ExpectCommit()

	_, err := repo.Apply(context.Background(), "org_ab12cd34", Advance{
		DatabaseStatus: models.DatabaseStatusMigrating,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyAdvance_NotFound(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM deployments.*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(deploymentCols))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), "org_missing", Advance{
		DeploymentStatus: models.DeploymentStatusReady,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyAdvance_FailedFromAnywhere(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM deployments.*FOR UPDATE").
		WillReturnRows(deploymentRow("provisioning", "migrating", "seeding"))
	mock.ExpectQuery("UPDATE deployments").
		WillReturnRows(deploymentRow("failed", "failed", "failed"))
	mock.ExpectCommit()

	dep, err := repo.Apply(context.Background(), "org_ab12cd34", Advance{
		DeploymentStatus: models.DeploymentStatusFailed,
		DatabaseStatus:   models.DatabaseStatusFailed,
		SeedDataStatus:   models.SeedStatusFailed,
		ErrorLines:       []string{"schema migration failed: relation exists"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dep.IsTerminal() {
		t.Error("failed deployment should be terminal")
	}
}

// ---------------------------------------------------------------------------
// AppendLog
// ---------------------------------------------------------------------------

func TestAppendLog_Success(t *testing.T) {
	repo, mock := newDeploymentRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM deployments.*FOR UPDATE").
		WillReturnRows(deploymentRow("provisioning", "creating", "pending"))
	mock.ExpectQuery("UPDATE deployments").
		WillReturnRows(deploymentRow("provisioning", "creating", "pending"))
	mock.ExpectCommit()

	if err := repo.AppendLog(context.Background(), "org_ab12cd34", "allocated identifiers"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
