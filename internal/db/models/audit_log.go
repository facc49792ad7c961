// Package models - audit_log.go defines the AuditLog model recording every
// control-plane side effect: actor, action, affected organization, client IP,
// user agent, and a structured detail payload.
package models

import "time"

// AuditLog is an append-only record of one control-plane action.
// OrganizationID is nil for events that precede tenant creation
// (e.g. a failed identifier allocation).
type AuditLog struct {
	ID             string                 `json:"id"`
	Action         string                 `json:"action"` // "signup.submitted", "tenant.provisioned", "tenant.status_changed"
	OrganizationID *string                `json:"organization_id,omitempty"`
	PerformedBy    string                 `json:"performed_by"`
	Details        map[string]interface{} `json:"details,omitempty"` // JSONB: additional context
	IPAddress      *string                `json:"ip_address,omitempty"`
	UserAgent      *string                `json:"user_agent,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
