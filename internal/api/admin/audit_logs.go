package admin

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staybase/staybase-backend/internal/db/repositories"
)

// AuditLogHandlers serves read-only audit log queries for operators.
type AuditLogHandlers struct {
	repo *repositories.AuditRepository
}

// NewAuditLogHandlers creates the admin audit log handlers.
func NewAuditLogHandlers(db *sql.DB) *AuditLogHandlers {
	return &AuditLogHandlers{
		repo: repositories.NewAuditRepository(db),
	}
}

// @Summary      List audit log entries
// @Description  Returns audit entries, newest first, filtered by organization, action, and time window.
// @Tags         Admin
// @Produce      json
// @Param        organization_id  query  string  false  "Filter by organization ID"
// @Param        action           query  string  false  "Filter by action (e.g. tenant.provisioned)"
// @Param        since            query  string  false  "Only entries at or after this RFC3339 timestamp"
// @Param        until            query  string  false  "Only entries at or before this RFC3339 timestamp"
// @Param        page             query  int     false  "Page number (default 1)"
// @Param        per_page         query  int     false  "Results per page (default 20, max 100)"
// @Success      200  {object}  map[string]interface{}  "audit_logs, pagination"
// @Failure      400  {object}  map[string]string       "error: invalid timestamp"
// @Router       /admin/audit-logs [get]
func (h *AuditLogHandlers) List(c *gin.Context) {
	filter := repositories.AuditFilter{
		OrganizationID: c.Query("organization_id"),
		Action:         c.Query("action"),
	}

	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'since' timestamp, expected RFC3339"})
			return
		}
		filter.Since = t
	}
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'until' timestamp, expected RFC3339"})
			return
		}
		filter.Until = t
	}

	page, perPage := parsePagination(c)
	offset := (page - 1) * perPage

	entries, err := h.repo.List(c.Request.Context(), filter, perPage, offset)
	if err != nil {
		slog.Error("audit log list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
		return
	}

	total, err := h.repo.Count(c.Request.Context(), filter)
	if err != nil {
		slog.Error("audit log count failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"audit_logs": entries,
		"pagination": paginationMeta(page, perPage, total),
	})
}
