package admin

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/staybase/staybase-backend/internal/db/models"
	"github.com/staybase/staybase-backend/internal/db/repositories"
)

// DeploymentHandlers serves read-only deployment inspection for operators.
type DeploymentHandlers struct {
	repo *repositories.DeploymentRepository
}

// NewDeploymentHandlers creates the admin deployment handlers.
func NewDeploymentHandlers(db *sql.DB) *DeploymentHandlers {
	sqlxDB := sqlx.NewDb(db, "postgres")
	return &DeploymentHandlers{
		repo: repositories.NewDeploymentRepository(sqlxDB),
	}
}

// @Summary      List deployments
// @Description  Returns deployment records, newest first, optionally filtered by deployment status. Used by operators to spot stuck or failed provisioning runs.
// @Tags         Admin
// @Produce      json
// @Param        status    query  string  false  "Filter by status (provisioning, ready, failed)"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Results per page (default 20, max 100)"
// @Success      200  {object}  map[string]interface{}  "deployments, pagination"
// @Failure      400  {object}  map[string]string       "error: Invalid status filter"
// @Router       /admin/deployments [get]
func (h *DeploymentHandlers) List(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.DeploymentStatusProvisioning, models.DeploymentStatusReady, models.DeploymentStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	page, perPage := parsePagination(c)
	offset := (page - 1) * perPage

	deployments, err := h.repo.List(c.Request.Context(), status, perPage, offset)
	if err != nil {
		slog.Error("deployment list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list deployments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deployments": deployments,
		"page":        page,
		"per_page":    perPage,
	})
}

// @Summary      Get a tenant's deployment
// @Description  Returns the deployment record for one organization, including progress logs and any recorded errors.
// @Tags         Admin
// @Produce      json
// @Param        orgId  path  string  true  "Organization ID"
// @Success      200  {object}  models.Deployment
// @Failure      404  {object}  map[string]string  "error: Deployment not found"
// @Router       /admin/deployments/{orgId} [get]
func (h *DeploymentHandlers) Get(c *gin.Context) {
	dep, err := h.repo.GetByOrganization(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		slog.Error("deployment lookup failed", "organization_id", c.Param("orgId"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load deployment"})
		return
	}
	if dep == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deployment not found"})
		return
	}
	c.JSON(http.StatusOK, dep)
}
