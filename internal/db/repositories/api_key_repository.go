// api_key_repository.go implements APIKeyRepository, the persistence layer for
// encrypted tenant service credentials. Values arrive and leave as ciphertext;
// encryption happens in the vault layer above.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// APIKeyRepository handles database operations for tenant API keys
type APIKeyRepository struct {
	db *sqlx.DB
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Upsert stores a credential, replacing the ciphertext and stamping last_used
// when the logical key (organization, service, key name) already exists.
func (r *APIKeyRepository) Upsert(ctx context.Context, key *models.TenantAPIKey) error {
	query := `
		INSERT INTO tenant_api_keys (organization_id, service, key_name, encrypted_value, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (organization_id, service, key_name)
		DO UPDATE SET encrypted_value = EXCLUDED.encrypted_value, is_active = TRUE, last_used = NOW()
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		key.OrganizationID,
		key.Service,
		key.KeyName,
		key.EncryptedValue,
	).Scan(&key.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}

	return nil
}

// Get retrieves a single credential by its logical key
func (r *APIKeyRepository) Get(ctx context.Context, orgID, service, keyName string) (*models.TenantAPIKey, error) {
	query := `
		SELECT organization_id, service, key_name, encrypted_value, is_active, last_used, created_at
		FROM tenant_api_keys
		WHERE organization_id = $1 AND service = $2 AND key_name = $3
	`

	key := &models.TenantAPIKey{}
	err := r.db.GetContext(ctx, key, query, orgID, service, keyName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return key, nil
}

// ListByOrganization retrieves all credentials stored for an organization
func (r *APIKeyRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.TenantAPIKey, error) {
	query := `
		SELECT organization_id, service, key_name, encrypted_value, is_active, last_used, created_at
		FROM tenant_api_keys
		WHERE organization_id = $1
		ORDER BY service, key_name
	`

	keys := make([]*models.TenantAPIKey, 0)
	if err := r.db.SelectContext(ctx, &keys, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}

	return keys, nil
}

// TouchLastUsed stamps the credential's last retrieval time
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, orgID, service, keyName string) error {
	query := `
		UPDATE tenant_api_keys
		SET last_used = NOW()
		WHERE organization_id = $1 AND service = $2 AND key_name = $3
	`

	if _, err := r.db.ExecContext(ctx, query, orgID, service, keyName); err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}

	return nil
}

// Deactivate marks a credential inactive without deleting the ciphertext
func (r *APIKeyRepository) Deactivate(ctx context.Context, orgID, service, keyName string) error {
	query := `
		UPDATE tenant_api_keys
		SET is_active = FALSE
		WHERE organization_id = $1 AND service = $2 AND key_name = $3
	`

	result, err := r.db.ExecContext(ctx, query, orgID, service, keyName)
	if err != nil {
		return fmt.Errorf("failed to deactivate api key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate api key: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
