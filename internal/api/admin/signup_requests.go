package admin

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/staybase/staybase-backend/internal/audit"
	"github.com/staybase/staybase-backend/internal/config"
	"github.com/staybase/staybase-backend/internal/db/models"
	"github.com/staybase/staybase-backend/internal/db/repositories"
	"github.com/staybase/staybase-backend/internal/middleware"
	"github.com/staybase/staybase-backend/internal/provisioner"
	"github.com/staybase/staybase-backend/internal/telemetry"
)

// provisioningService is the orchestrator surface the approve handler needs.
type provisioningService interface {
	Provision(ctx context.Context, req *models.SignupRequest, actor provisioner.Actor, thirdPartyAPIKey string) (*models.Tenant, error)
}

// SignupRequestHandlers serves admin review of signup requests.
type SignupRequestHandlers struct {
	cfg         *config.Config
	repo        *repositories.SignupRequestRepository
	provisioner provisioningService
	recorder    *audit.Recorder
}

// NewSignupRequestHandlers creates the admin signup request handlers.
func NewSignupRequestHandlers(cfg *config.Config, db *sql.DB, p provisioningService, recorder *audit.Recorder) *SignupRequestHandlers {
	sqlxDB := sqlx.NewDb(db, "postgres")
	return &SignupRequestHandlers{
		cfg:         cfg,
		repo:        repositories.NewSignupRequestRepository(sqlxDB),
		provisioner: p,
		recorder:    recorder,
	}
}

// actorFrom builds the provisioning actor from the authenticated admin context.
func actorFrom(c *gin.Context) provisioner.Actor {
	return provisioner.Actor{
		Email:     c.GetString(middleware.CtxUserEmail),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// @Summary      List signup requests
// @Description  Returns signup requests, newest first, optionally filtered by review status.
// @Tags         Admin
// @Produce      json
// @Param        status    query  string  false  "Filter by status (pending, approved, rejected)"
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Results per page (default 20, max 100)"
// @Success      200  {object}  map[string]interface{}  "signup_requests, pagination"
// @Failure      400  {object}  map[string]string       "error: invalid status filter"
// @Router       /admin/signup-requests [get]
func (h *SignupRequestHandlers) List(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.SignupStatusPending, models.SignupStatusApproved, models.SignupStatusRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	page, perPage := parsePagination(c)
	offset := (page - 1) * perPage

	requests, err := h.repo.List(c.Request.Context(), status, perPage, offset)
	if err != nil {
		slog.Error("signup request list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list signup requests"})
		return
	}

	total, err := h.repo.Count(c.Request.Context(), status)
	if err != nil {
		slog.Error("signup request count failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list signup requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signup_requests": requests,
		"pagination":      paginationMeta(page, perPage, total),
	})
}

// @Summary      Get a signup request
// @Description  Returns a single signup request by ID.
// @Tags         Admin
// @Produce      json
// @Param        id  path  string  true  "Signup request ID"
// @Success      200  {object}  models.SignupRequest
// @Failure      404  {object}  map[string]string  "error: Signup request not found"
// @Router       /admin/signup-requests/{id} [get]
func (h *SignupRequestHandlers) Get(c *gin.Context) {
	req, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("signup request lookup failed", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load signup request"})
		return
	}
	if req == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Signup request not found"})
		return
	}
	c.JSON(http.StatusOK, req)
}

type approveRequest struct {
	ThirdPartyAPIKey string `json:"third_party_api_key"`
}

// @Summary      Approve a signup request
// @Description  Approves a pending signup request and provisions its tenant environment end to end. Re-approving a request whose provisioning previously failed resumes from the recorded deployment state.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id       path  string          true   "Signup request ID"
// @Param        request  body  approveRequest  false  "Optional third-party credential to store for the new tenant"
// @Success      200  {object}  map[string]interface{}  "organization_id, subdomain, environment_url, plan_type"
// @Failure      400  {object}  map[string]string       "error: Cannot approve a rejected signup request"
// @Failure      404  {object}  map[string]string       "error: Signup request not found"
// @Failure      500  {object}  map[string]string       "error: Provisioning failed"
// @Router       /admin/signup-requests/{id}/approve [post]
func (h *SignupRequestHandlers) Approve(c *gin.Context) {
	var body approveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	req, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("signup request lookup failed", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load signup request"})
		return
	}
	if req == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Signup request not found"})
		return
	}
	if req.Status == models.SignupStatusRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot approve a rejected signup request"})
		return
	}

	resumed := req.OrganizationID != nil
	start := time.Now()

	tenant, err := h.provisioner.Provision(c.Request.Context(), req, actorFrom(c), body.ThirdPartyAPIKey)
	if err != nil {
		telemetry.ProvisioningRunsTotal.WithLabelValues("failed").Inc()
		slog.Error("provisioning failed", "signup_request_id", req.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Provisioning failed"})
		return
	}

	telemetry.ProvisioningDuration.Observe(time.Since(start).Seconds())
	if resumed {
		telemetry.ProvisioningRunsTotal.WithLabelValues("resumed").Inc()
	} else {
		telemetry.ProvisioningRunsTotal.WithLabelValues("success").Inc()
		telemetry.TenantsProvisionedTotal.WithLabelValues(tenant.PlanType).Inc()
	}

	c.JSON(http.StatusOK, gin.H{
		"organization_id": tenant.OrganizationID,
		"subdomain":       tenant.Subdomain,
		"environment_url": "https://" + tenant.Subdomain + "." + h.cfg.Tenancy.BaseDomain,
		"plan_type":       tenant.PlanType,
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// @Summary      Reject a signup request
// @Description  Rejects a pending signup request with a reason. Only pending requests can be rejected; nothing is provisioned.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "Signup request ID"
// @Param        request  body  rejectRequest  true  "Rejection reason"
// @Success      200  {object}  map[string]string  "id, status: rejected"
// @Failure      400  {object}  map[string]string  "error: Rejection reason is required"
// @Failure      404  {object}  map[string]string  "error: Signup request not found or already reviewed"
// @Router       /admin/signup-requests/{id}/reject [post]
func (h *SignupRequestHandlers) Reject(c *gin.Context) {
	var body rejectRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rejection reason is required"})
		return
	}

	id := c.Param("id")
	reviewer := c.GetString(middleware.CtxUserEmail)

	if err := h.repo.MarkRejected(c.Request.Context(), id, reviewer, body.Reason); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Signup request not found or already reviewed"})
			return
		}
		slog.Error("signup rejection failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject signup request"})
		return
	}

	if err := h.recorder.Record(c.Request.Context(), audit.Event{
		Action:      "signup.rejected",
		PerformedBy: reviewer,
		Details: map[string]interface{}{
			"signup_request_id": id,
			"reason":            body.Reason,
		},
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}); err != nil {
		slog.Warn("rejection audit record failed", "id", id, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"status": models.SignupStatusRejected,
	})
}
