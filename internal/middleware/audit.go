// audit.go provides Gin middleware that records successful admin write
// operations to the audit trail. Provisioning-specific events are recorded by
// the orchestrator itself with richer detail; this middleware is the catch-all
// for everything else on the admin API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staybase/staybase-backend/internal/audit"
	"github.com/staybase/staybase-backend/internal/safego"
)

// auditTimeout bounds the background write so a stalled database cannot leak
// goroutines.
const auditTimeout = 5 * time.Second

// AuditTrail records every successful non-GET admin request after the handler
// runs. Reads and failed requests are skipped; failures are visible in the
// request logs and would swamp the audit table.
func AuditTrail(recorder *audit.Recorder, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			return
		}
		if c.Writer.Status() >= 400 {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := audit.Event{
			Action:      "admin." + c.Request.Method + " " + path,
			PerformedBy: c.GetString(CtxUserEmail),
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
			Details: map[string]interface{}{
				"status_code": c.Writer.Status(),
				"request_id":  c.GetString(RequestIDKey),
			},
		}
		if orgID := c.Param("orgId"); orgID != "" {
			event.OrganizationID = orgID
		}

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
			defer cancel()
			if err := recorder.Record(ctx, event); err != nil {
				logger.Warn("audit trail write failed", "action", event.Action, "error", err)
			}
		})
	}
}
