// tenant.go resolves the inbound Host header to a tenant and attaches the
// tenant's context to the request. Every tenant-scoped handler downstream
// reads organization and schema identity from here and nowhere else.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/staybase/staybase-backend/internal/db/models"
)

// Context keys set by ResolveTenant.
const (
	CtxOrganizationID = "organization_id"
	CtxSubdomain      = "subdomain"
	CtxSchemaName     = "schema_name"
	CtxFeatures       = "features"
	CtxTenantStatus   = "tenant_status"
)

// reservedSubdomains never resolve to a tenant; they belong to the platform.
var reservedSubdomains = map[string]bool{
	"www":   true,
	"api":   true,
	"admin": true,
}

// TenantResolver looks tenants up by subdomain. Implementations may layer a
// cache over the registry.
type TenantResolver interface {
	ResolveSubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
}

// ResolveTenant derives a subdomain from the Host header and, when one is
// present, loads the tenant and attaches its context. Hosts without a tenant
// subdomain (marketing site, local development) pass through untouched.
func ResolveTenant(resolver TenantResolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subdomain, ok := subdomainFromHost(c.Request.Host)
		if !ok {
			c.Next()
			return
		}

		tenant, err := resolver.ResolveSubdomain(c.Request.Context(), subdomain)
		if err != nil {
			logger.Error("tenant resolution failed", "subdomain", subdomain, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to resolve tenant",
			})
			return
		}
		if tenant == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error": "Tenant not found",
			})
			return
		}
		if tenant.Status != models.TenantStatusActive {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":  "Tenant is not active",
				"status": tenant.Status,
			})
			return
		}

		c.Set(CtxOrganizationID, tenant.OrganizationID)
		c.Set(CtxSubdomain, tenant.Subdomain)
		c.Set(CtxSchemaName, tenant.SchemaName)
		c.Set(CtxFeatures, []string(tenant.Features))
		c.Set(CtxTenantStatus, tenant.Status)

		c.Next()
	}
}

// subdomainFromHost extracts the tenant label from a host. A tenant subdomain
// is the first label of a host with at least three dot-separated parts that is
// neither a loopback/dev host nor a reserved platform label.
func subdomainFromHost(host string) (string, bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	if host == "localhost" || host == "127.0.0.1" || host == "::1" ||
		strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return "", false
	}
	if net.ParseIP(host) != nil {
		return "", false
	}

	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return "", false
	}

	label := parts[0]
	if label == "" || reservedSubdomains[label] {
		return "", false
	}
	return label, true
}

// RequireTenant rejects requests that reached a tenant-scoped handler without
// resolved context. This defends against misconfigured routes, not users.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(CtxOrganizationID); !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Tenant context required",
			})
			return
		}
		c.Next()
	}
}

// RequireFeature rejects requests when the resolved tenant's plan does not
// include the named feature.
func RequireFeature(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		features, ok := c.Get(CtxFeatures)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Tenant context required",
			})
			return
		}
		for _, f := range features.([]string) {
			if f == name {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "Feature not available on current plan",
			"feature": name,
		})
	}
}
