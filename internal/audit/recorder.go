// recorder.go provides the Recorder, the single entry point components use to
// emit audit events. Every event is written synchronously to the audit_logs
// table so the durable record exists before any error is surfaced to a caller;
// configured shippers then receive a copy on a best-effort basis.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// Event is one control-plane action to record
type Event struct {
	Action         string
	OrganizationID string // empty for pre-tenant events
	PerformedBy    string
	Details        map[string]interface{}
	IPAddress      string
	UserAgent      string
}

// entryStore is the persistence surface the recorder needs.
type entryStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Recorder writes audit events to the database and fans them out to shippers
type Recorder struct {
	store    entryStore
	shippers []Shipper
	logger   *slog.Logger
}

// NewRecorder creates a recorder. Shippers are optional secondary
// destinations; the database write is the source of truth.
func NewRecorder(store entryStore, logger *slog.Logger, shippers ...Shipper) *Recorder {
	return &Recorder{store: store, shippers: shippers, logger: logger}
}

// Record persists an audit event. The database write is synchronous and its
// error is returned; shipper failures are logged and swallowed because a SIEM
// outage must never block provisioning.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	entry := &models.AuditLog{
		Action:      event.Action,
		PerformedBy: event.PerformedBy,
		Details:     event.Details,
	}
	if event.OrganizationID != "" {
		entry.OrganizationID = &event.OrganizationID
	}
	if event.IPAddress != "" {
		entry.IPAddress = &event.IPAddress
	}
	if event.UserAgent != "" {
		entry.UserAgent = &event.UserAgent
	}

	if err := r.store.Create(ctx, entry); err != nil {
		r.logger.Error("audit write failed", "action", event.Action, "error", err)
		return err
	}

	if len(r.shippers) > 0 {
		shipped := &LogEntry{
			Timestamp:      time.Now().UTC(),
			Action:         event.Action,
			OrganizationID: event.OrganizationID,
			UserID:         event.PerformedBy,
			IPAddress:      event.IPAddress,
			Metadata:       event.Details,
		}
		for _, s := range r.shippers {
			if err := s.Ship(ctx, shipped); err != nil {
				r.logger.Warn("audit shipper failed", "action", event.Action, "error", err)
			}
		}
	}

	return nil
}
