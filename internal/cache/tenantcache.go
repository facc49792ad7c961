// Package cache provides a Redis-backed read-through cache for tenant
// resolution. Every tenant-facing request resolves its Host header to a
// tenant, so the lookup sits on the hot path; the cache keeps the registry
// database out of it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/staybase/staybase-backend/internal/db/models"
)

const keyPrefix = "tenant:subdomain:"

// missSentinel marks a subdomain known not to exist, so repeated probes for
// unknown hosts do not hammer the database.
const missSentinel = "__miss__"

// registry is the source of truth behind the cache.
type registry interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
}

// TenantCache resolves subdomains through Redis with the tenant registry as
// fallback. A nil Redis client disables caching entirely; every lookup then
// goes straight to the registry. Cache failures are never surfaced to the
// request path.
type TenantCache struct {
	client   *redis.Client
	registry registry
	ttl      time.Duration
	logger   *slog.Logger
}

// NewTenantCache creates a cache with the given TTL. ttl <= 0 falls back to
// one minute, short enough that suspensions propagate quickly.
func NewTenantCache(client *redis.Client, reg registry, ttl time.Duration, logger *slog.Logger) *TenantCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TenantCache{client: client, registry: reg, ttl: ttl, logger: logger}
}

// ResolveSubdomain implements middleware.TenantResolver.
func (c *TenantCache) ResolveSubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	if c.client == nil {
		return c.registry.GetBySubdomain(ctx, subdomain)
	}

	key := keyPrefix + subdomain
	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == missSentinel {
			return nil, nil
		}
		var tenant models.Tenant
		if unmarshalErr := json.Unmarshal([]byte(cached), &tenant); unmarshalErr == nil {
			return &tenant, nil
		}
		// Corrupt entry, drop it and fall through to the registry.
		c.client.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("tenant cache read failed", "subdomain", subdomain, "error", err)
	}

	tenant, err := c.registry.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, tenant)
	return tenant, nil
}

func (c *TenantCache) store(ctx context.Context, key string, tenant *models.Tenant) {
	value := missSentinel
	if tenant != nil {
		payload, err := json.Marshal(tenant)
		if err != nil {
			return
		}
		value = string(payload)
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("tenant cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops the cached entry for a subdomain. Call it after any status
// change so suspensions take effect before the TTL expires.
func (c *TenantCache) Invalidate(ctx context.Context, subdomain string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+subdomain).Err(); err != nil {
		c.logger.Warn("tenant cache invalidation failed", "subdomain", subdomain, "error", err)
	}
}
