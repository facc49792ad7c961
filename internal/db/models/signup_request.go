// Package models - signup_request.go defines the SignupRequest model, the intake
// record a prospective customer submits and an admin reviews exactly once.
package models

import (
	"time"

	"github.com/lib/pq"
)

// Signup request review states.
const (
	SignupStatusPending  = "pending"
	SignupStatusApproved = "approved"
	SignupStatusRejected = "rejected"
)

// SignupRequest represents a public signup submission awaiting admin review.
// OrganizationID is set once the request is approved and a tenant is provisioned.
type SignupRequest struct {
	ID                string         `db:"id" json:"id"`
	CompanyName       string         `db:"company_name" json:"company_name"`
	ContactName       string         `db:"contact_name" json:"contact_name"`
	Email             string         `db:"email" json:"email"`
	Country           string         `db:"country" json:"country"`
	PropertyCount     int            `db:"property_count" json:"property_count"`
	RequestedFeatures pq.StringArray `db:"requested_features" json:"requested_features"`
	Status            string         `db:"status" json:"status"`
	OrganizationID    *string        `db:"organization_id" json:"organization_id,omitempty"`
	SubmittedAt       time.Time      `db:"submitted_at" json:"submitted_at"`
	ReviewedAt        *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy        *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	RejectionReason   *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
}

// IsPending reports whether the request is still awaiting review.
func (r *SignupRequest) IsPending() bool {
	return r.Status == SignupStatusPending
}
