package admin

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staybase/staybase-backend/internal/audit"
	"github.com/staybase/staybase-backend/internal/db/models"
	"github.com/staybase/staybase-backend/internal/db/repositories"
	"github.com/staybase/staybase-backend/internal/middleware"
)

// cacheInvalidator drops a tenant's cached resolution entry after a change.
type cacheInvalidator interface {
	Invalidate(ctx context.Context, subdomain string)
}

// TenantHandlers serves admin tenant lifecycle management.
type TenantHandlers struct {
	repo     *repositories.TenantRepository
	recorder *audit.Recorder
	cache    cacheInvalidator
}

// NewTenantHandlers creates the admin tenant handlers.
func NewTenantHandlers(db *sql.DB, recorder *audit.Recorder, cache cacheInvalidator) *TenantHandlers {
	return &TenantHandlers{
		repo:     repositories.NewTenantRepository(db),
		recorder: recorder,
		cache:    cache,
	}
}

// @Summary      List tenants
// @Description  Returns tenants, newest first, optionally filtered by lifecycle status.
// @Tags         Admin
// @Produce      json
// @Param        status    query  string  false  "Filter by status (active, suspended, terminated)"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Results per page (default 20, max 100)"
// @Success      200  {object}  map[string]interface{}  "tenants, pagination"
// @Failure      400  {object}  map[string]string       "error: Invalid status filter"
// @Router       /admin/tenants [get]
func (h *TenantHandlers) List(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !models.ValidTenantStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	page, perPage := parsePagination(c)
	offset := (page - 1) * perPage

	tenants, err := h.repo.List(c.Request.Context(), status, perPage, offset)
	if err != nil {
		slog.Error("tenant list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tenants"})
		return
	}

	total, err := h.repo.Count(c.Request.Context(), status)
	if err != nil {
		slog.Error("tenant count failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tenants"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenants":    tenants,
		"pagination": paginationMeta(page, perPage, total),
	})
}

// @Summary      Get a tenant
// @Description  Returns a single tenant by organization ID.
// @Tags         Admin
// @Produce      json
// @Param        orgId  path  string  true  "Organization ID"
// @Success      200  {object}  models.Tenant
// @Failure      404  {object}  map[string]string  "error: Tenant not found"
// @Router       /admin/tenants/{orgId} [get]
func (h *TenantHandlers) Get(c *gin.Context) {
	tenant, err := h.repo.GetByOrganizationID(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		slog.Error("tenant lookup failed", "organization_id", c.Param("orgId"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tenant"})
		return
	}
	if tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return
	}
	c.JSON(http.StatusOK, tenant)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// @Summary      Update tenant status
// @Description  Moves a tenant between lifecycle states (active, suspended, terminated). Suspended and terminated tenants are refused at the request router, so the change takes effect on the next request once the cache entry is dropped.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        orgId    path  string               true  "Organization ID"
// @Param        request  body  updateStatusRequest  true  "New lifecycle status"
// @Success      200  {object}  map[string]string  "organization_id, status"
// @Failure      400  {object}  map[string]string  "error: Invalid tenant status"
// @Failure      404  {object}  map[string]string  "error: Tenant not found"
// @Router       /admin/tenants/{orgId}/status [patch]
func (h *TenantHandlers) UpdateStatus(c *gin.Context) {
	var body updateStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil || !models.ValidTenantStatus(body.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant status"})
		return
	}

	orgID := c.Param("orgId")
	tenant, err := h.repo.GetByOrganizationID(c.Request.Context(), orgID)
	if err != nil {
		slog.Error("tenant lookup failed", "organization_id", orgID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tenant"})
		return
	}
	if tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return
	}

	if err := h.repo.UpdateStatus(c.Request.Context(), orgID, body.Status); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
			return
		}
		slog.Error("tenant status update failed", "organization_id", orgID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tenant status"})
		return
	}

	// Drop the cached resolution so the router sees the new status immediately.
	h.cache.Invalidate(c.Request.Context(), tenant.Subdomain)

	if err := h.recorder.Record(c.Request.Context(), audit.Event{
		Action:         "tenant.status_changed",
		OrganizationID: orgID,
		PerformedBy:    c.GetString(middleware.CtxUserEmail),
		Details: map[string]interface{}{
			"from": tenant.Status,
			"to":   body.Status,
		},
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}); err != nil {
		slog.Warn("status change audit record failed", "organization_id", orgID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"organization_id": orgID,
		"status":          body.Status,
	})
}
