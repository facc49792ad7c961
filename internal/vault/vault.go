// Package vault stores tenant third-party service credentials encrypted at
// rest. Plaintext values exist only in memory during a store or retrieve call;
// the database only ever sees AES-256-GCM ciphertext.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/staybase/staybase-backend/internal/crypto"
	"github.com/staybase/staybase-backend/internal/db/models"
	"github.com/staybase/staybase-backend/internal/db/repositories"
)

var (
	// ErrKeyNotFound is returned when no credential exists for the requested
	// (organization, service, key name) triple.
	ErrKeyNotFound = errors.New("vault: credential not found")
	// ErrCorruptCredential is returned when a stored ciphertext fails
	// authentication, meaning it was tampered with or encrypted under a
	// different master key.
	ErrCorruptCredential = errors.New("vault: stored credential is corrupted")
	// ErrEmptyValue is returned when a caller tries to store an empty secret.
	ErrEmptyValue = errors.New("vault: credential value must not be empty")
)

// keyStore is the persistence surface the vault needs.
type keyStore interface {
	Upsert(ctx context.Context, key *models.TenantAPIKey) error
	Get(ctx context.Context, orgID, service, keyName string) (*models.TenantAPIKey, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*models.TenantAPIKey, error)
	TouchLastUsed(ctx context.Context, orgID, service, keyName string) error
	Deactivate(ctx context.Context, orgID, service, keyName string) error
}

// Vault encrypts credentials before they reach the repository and decrypts
// them on the way out.
type Vault struct {
	cipher *crypto.TokenCipher
	keys   keyStore
	logger *slog.Logger
}

// New creates a vault backed by the given cipher and key repository
func New(cipher *crypto.TokenCipher, keys keyStore, logger *slog.Logger) *Vault {
	return &Vault{cipher: cipher, keys: keys, logger: logger}
}

// Store encrypts and persists a credential. Storing a value for an existing
// (organization, service, key name) replaces the previous value.
func (v *Vault) Store(ctx context.Context, orgID, service, keyName, value string) error {
	if value == "" {
		return ErrEmptyValue
	}

	sealed, err := v.cipher.Seal(value)
	if err != nil {
		return fmt.Errorf("vault: failed to encrypt credential: %w", err)
	}

	key := &models.TenantAPIKey{
		OrganizationID: orgID,
		Service:        service,
		KeyName:        keyName,
		EncryptedValue: sealed,
	}
	if err := v.keys.Upsert(ctx, key); err != nil {
		return fmt.Errorf("vault: failed to store credential: %w", err)
	}

	v.logger.Info("credential stored",
		"organization_id", orgID,
		"service", service,
		"key_name", keyName,
	)
	return nil
}

// Retrieve decrypts and returns a credential. Returns ErrKeyNotFound when the
// credential does not exist or is deactivated, and ErrCorruptCredential when
// the ciphertext fails authentication.
func (v *Vault) Retrieve(ctx context.Context, orgID, service, keyName string) (string, error) {
	key, err := v.keys.Get(ctx, orgID, service, keyName)
	if err != nil {
		return "", fmt.Errorf("vault: failed to load credential: %w", err)
	}
	if key == nil || !key.IsActive {
		return "", ErrKeyNotFound
	}

	value, err := v.cipher.Open(key.EncryptedValue)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) || errors.Is(err, crypto.ErrCiphertextCorrupted) {
			v.logger.Error("credential failed decryption",
				"organization_id", orgID,
				"service", service,
				"key_name", keyName,
			)
			return "", ErrCorruptCredential
		}
		return "", fmt.Errorf("vault: failed to decrypt credential: %w", err)
	}

	// Best effort; a failed stamp must not block the caller.
	if err := v.keys.TouchLastUsed(ctx, orgID, service, keyName); err != nil {
		v.logger.Warn("failed to stamp credential use", "error", err)
	}

	return value, nil
}

// List returns credential metadata for an organization. Values stay encrypted;
// callers that need plaintext must Retrieve each key individually.
func (v *Vault) List(ctx context.Context, orgID string) ([]*models.TenantAPIKey, error) {
	keys, err := v.keys.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to list credentials: %w", err)
	}

	for _, k := range keys {
		k.EncryptedValue = ""
	}
	return keys, nil
}

// Revoke deactivates a credential without destroying the ciphertext
func (v *Vault) Revoke(ctx context.Context, orgID, service, keyName string) error {
	err := v.keys.Deactivate(ctx, orgID, service, keyName)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("vault: failed to revoke credential: %w", err)
	}

	v.logger.Info("credential revoked",
		"organization_id", orgID,
		"service", service,
		"key_name", keyName,
	)
	return nil
}
