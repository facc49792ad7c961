// Package models - tenant.go defines the Tenant model, the canonical record of a
// provisioned customer organization: identity, plan, limits, and lifecycle status.
package models

import (
	"time"

	"github.com/lib/pq"
)

// Tenant lifecycle states. A tenant is never deleted; termination is a status.
const (
	TenantStatusActive     = "active"
	TenantStatusSuspended  = "suspended"
	TenantStatusTerminated = "terminated"
)

// Plan tiers.
const (
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Tenant represents one customer organization with an isolated data schema.
// OrganizationID, Subdomain, and SchemaName are immutable once assigned.
type Tenant struct {
	OrganizationID string         `db:"organization_id" json:"organization_id"`
	CompanyName    string         `db:"company_name" json:"company_name"`
	Subdomain      string         `db:"subdomain" json:"subdomain"`
	SchemaName     string         `db:"schema_name" json:"schema_name"`
	PlanType       string         `db:"plan_type" json:"plan_type"`
	Status         string         `db:"status" json:"status"`
	MaxProperties  int            `db:"max_properties" json:"max_properties"`
	MaxUsers       int            `db:"max_users" json:"max_users"`
	Features       pq.StringArray `db:"features" json:"features"`
	ContactEmail   string         `db:"contact_email" json:"contact_email"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	ActivatedAt    *time.Time     `db:"activated_at" json:"activated_at,omitempty"`
	SuspendedAt    *time.Time     `db:"suspended_at" json:"suspended_at,omitempty"`
	TerminatedAt   *time.Time     `db:"terminated_at" json:"terminated_at,omitempty"`
}

// HasFeature reports whether the tenant's plan includes the named feature.
func (t *Tenant) HasFeature(name string) bool {
	for _, f := range t.Features {
		if f == name {
			return true
		}
	}
	return false
}

// ValidTenantStatus reports whether s is a recognised lifecycle status.
func ValidTenantStatus(s string) bool {
	switch s {
	case TenantStatusActive, TenantStatusSuspended, TenantStatusTerminated:
		return true
	}
	return false
}

// PlanForPropertyCount maps a requested property count to a plan tier and its
// limits. Limits are snapshotted onto the tenant at creation time; later
// changes to the request never alter an existing tenant.
func PlanForPropertyCount(count int) (plan string, maxProperties, maxUsers int) {
	switch {
	case count <= 5:
		return PlanBasic, 5, 5
	case count <= 15:
		return PlanPro, 20, 15
	default:
		return PlanEnterprise, 100, 50
	}
}
