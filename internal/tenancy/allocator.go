// Package tenancy allocates the unique identifiers a new tenant needs before
// anything is provisioned: organization ID, database schema name, and public
// subdomain. Allocation only reserves names; nothing is created here.
package tenancy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	orgIDPrefix      = "org_"
	schemaNamePrefix = "tenant_"
	tokenBytes       = 4 // 8 hex characters

	maxIDAttempts        = 10
	maxSubdomainAttempts = 1000
	maxSlugLength        = 20
)

// ErrAllocationExhausted is returned when no free identifier could be found
// within the attempt budget. It signals pathological collision rates, not a
// transient condition worth retrying.
var ErrAllocationExhausted = errors.New("tenancy: identifier allocation exhausted")

// Registry is the uniqueness oracle the allocator checks candidates against.
type Registry interface {
	OrganizationIDExists(ctx context.Context, orgID string) (bool, error)
	SubdomainExists(ctx context.Context, subdomain string) (bool, error)
}

// Identifiers is the set of names reserved for one new tenant.
type Identifiers struct {
	OrganizationID string
	SchemaName     string
	Subdomain      string
}

// Allocator hands out unused tenant identifiers
type Allocator struct {
	registry Registry
}

// NewAllocator creates an allocator backed by the given registry
func NewAllocator(registry Registry) *Allocator {
	return &Allocator{registry: registry}
}

// Allocate reserves a full identifier set for a company. The schema name is
// derived from the organization ID, so the two can never disagree.
func (a *Allocator) Allocate(ctx context.Context, companyName string) (*Identifiers, error) {
	orgID, err := a.allocateOrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	subdomain, err := a.allocateSubdomain(ctx, companyName)
	if err != nil {
		return nil, err
	}

	return &Identifiers{
		OrganizationID: orgID,
		SchemaName:     SchemaNameFor(orgID),
		Subdomain:      subdomain,
	}, nil
}

// SchemaNameFor derives the schema name from an organization ID. It is a pure
// function: re-deriving after a crash always yields the same name.
func SchemaNameFor(orgID string) string {
	return schemaNamePrefix + strings.TrimPrefix(orgID, orgIDPrefix)
}

func (a *Allocator) allocateOrganizationID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		token := make([]byte, tokenBytes)
		if _, err := rand.Read(token); err != nil {
			return "", fmt.Errorf("tenancy: failed to generate token: %w", err)
		}
		candidate := orgIDPrefix + hex.EncodeToString(token)

		exists, err := a.registry.OrganizationIDExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("tenancy: failed to check organization id: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("organization id: %w", ErrAllocationExhausted)
}

func (a *Allocator) allocateSubdomain(ctx context.Context, companyName string) (string, error) {
	slug := Slugify(companyName)
	if slug == "" {
		slug = "tenant"
	}

	for attempt := 0; attempt < maxSubdomainAttempts; attempt++ {
		candidate := slug
		if attempt > 0 {
			candidate = slug + strconv.Itoa(attempt)
		}

		exists, err := a.registry.SubdomainExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("tenancy: failed to check subdomain: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("subdomain: %w", ErrAllocationExhausted)
}

// Slugify lowercases a company name and strips everything but letters and
// digits, truncating to a length that leaves room for a collision suffix.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}
