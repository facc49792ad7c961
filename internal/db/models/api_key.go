// Package models - api_key.go defines the TenantAPIKey model holding a tenant's
// third-party service credential, stored only as AES-GCM ciphertext.
package models

import "time"

// TenantAPIKey is one logical credential per (organization, service, key name).
// Re-storing the same logical key replaces the ciphertext in place.
type TenantAPIKey struct {
	OrganizationID string    `db:"organization_id"`
	Service        string    `db:"service"`
	KeyName        string    `db:"key_name"`
	EncryptedValue string    `db:"encrypted_value"`
	IsActive       bool      `db:"is_active"`
	LastUsed       time.Time `db:"last_used"`
	CreatedAt      time.Time `db:"created_at"`
}
