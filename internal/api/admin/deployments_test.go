package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions for deployment SQL mocks
// ---------------------------------------------------------------------------

var deploymentCols = []string{
	"id", "organization_id", "deployment_status", "database_status",
	"seed_data_status", "deployment_logs", "error_logs", "environment_url",
	"created_at", "completed_at",
}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func readyDeploymentRow(orgID string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(deploymentCols).AddRow(
		"dep-1", orgID, models.DeploymentStatusReady, models.DatabaseStatusReady,
		models.SeedStatusCompleted, "{\"provisioning started\",\"schema ready\"}", "{}",
		"https://harbour-view.staybase.io", now.Add(-time.Minute), now,
	)
}

func failedDeploymentRow(orgID string) *sqlmock.Rows {
	return sqlmock.NewRows(deploymentCols).AddRow(
		"dep-2", orgID, models.DeploymentStatusFailed, models.DatabaseStatusFailed,
		models.SeedStatusPending, "{\"provisioning started\"}", "{\"schema creation failed\"}",
		nil, time.Now(), nil,
	)
}

// ---------------------------------------------------------------------------
// Router helper
// ---------------------------------------------------------------------------

func newDeploymentRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewDeploymentHandlers(db)

	r := gin.New()
	r.GET("/admin/deployments", h.List)
	r.GET("/admin/deployments/:orgId", h.Get)
	return mock, r
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestListDeployments_Success(t *testing.T) {
	mock, r := newDeploymentRouter(t)

	mock.ExpectQuery("SELECT.*FROM deployments.*ORDER BY created_at").
		WillReturnRows(failedDeploymentRow("ORG-AB12CD34"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/admin/deployments?status=failed", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	resp := getJSON(w)
	if resp["deployments"] == nil {
		t.Error("response missing 'deployments' key")
	}
}

func TestListDeployments_InvalidStatusFilter(t *testing.T) {
	_, r := newDeploymentRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/admin/deployments?status=sideways", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestGetDeployment_Success(t *testing.T) {
	mock, r := newDeploymentRouter(t)

	mock.ExpectQuery("SELECT.*FROM deployments.*WHERE organization_id").
		WillReturnRows(readyDeploymentRow("ORG-AB12CD34"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/admin/deployments/ORG-AB12CD34", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	resp := getJSON(w)
	if resp["deployment_status"] != models.DeploymentStatusReady {
		t.Errorf("deployment_status = %v, want ready", resp["deployment_status"])
	}
	if resp["environment_url"] != "https://harbour-view.staybase.io" {
		t.Errorf("environment_url = %v", resp["environment_url"])
	}
}

func TestGetDeployment_NotFound(t *testing.T) {
	mock, r := newDeploymentRouter(t)

	mock.ExpectQuery("SELECT.*FROM deployments.*WHERE organization_id").
		WillReturnRows(sqlmock.NewRows(deploymentCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/admin/deployments/ORG-MISSING", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
