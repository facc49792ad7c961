// Package api wires together all HTTP routes for the staybase control plane.
//
// Route grouping philosophy:
//   - The public signup intake (/signup-requests) is unauthenticated but
//     tightly rate limited; it is the only write the outside world can make.
//   - Admin routes (/admin/) require a JWT with the admin role and every
//     mutating call is recorded in the audit log.
//   - Tenant-scoped app routes (/app/) are resolved from the Host header:
//     the subdomain picks the tenant, and suspended or terminated tenants
//     are refused before any handler runs.
package api

import (
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/staybase/staybase-backend/internal/api/admin"
	"github.com/staybase/staybase-backend/internal/api/public"
	"github.com/staybase/staybase-backend/internal/audit"
	"github.com/staybase/staybase-backend/internal/cache"
	"github.com/staybase/staybase-backend/internal/config"
	"github.com/staybase/staybase-backend/internal/crypto"
	"github.com/staybase/staybase-backend/internal/db/repositories"
	"github.com/staybase/staybase-backend/internal/middleware"
	"github.com/staybase/staybase-backend/internal/provisioner"
	"github.com/staybase/staybase-backend/internal/tenancy"
	"github.com/staybase/staybase-backend/internal/vault"
)

// BackgroundServices holds references to background resources that must be
// stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
	auditShipper *audit.MultiShipper
	redisClient  *redis.Client
}

// Shutdown stops background goroutines and closes external connections. It
// should be called after the HTTP server has been shut down so that in-flight
// requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Warn("audit shipper close failed", "error", err)
		}
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("redis close failed", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	logger := slog.Default()

	// Initialize repositories
	sqlxDB := sqlx.NewDb(db, "postgres")
	tenantRepo := repositories.NewTenantRepository(db)
	signupRepo := repositories.NewSignupRequestRepository(sqlxDB)
	deploymentRepo := repositories.NewDeploymentRepository(sqlxDB)
	apiKeyRepo := repositories.NewAPIKeyRepository(sqlxDB)
	auditRepo := repositories.NewAuditRepository(db)

	// Get encryption key from environment for credential encryption
	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		log.Fatal("ENCRYPTION_KEY environment variable must be set for the credential vault")
	}
	tokenCipher, err := crypto.NewTokenCipher([]byte(encryptionKey))
	if err != nil {
		log.Fatalf("Failed to initialize token cipher: %v", err)
	}

	// Audit recorder; the DB write is mandatory, external shippers are optional
	var auditShipper *audit.MultiShipper
	var recorder *audit.Recorder
	if cfg.Audit.Enabled && len(cfg.Audit.Shippers) > 0 {
		auditShipper, err = audit.NewMultiShipper(shipperConfigs(cfg.Audit.Shippers))
		if err != nil {
			log.Fatalf("Failed to initialize audit shippers: %v", err)
		}
		recorder = audit.NewRecorder(auditRepo, logger, auditShipper)
	} else {
		recorder = audit.NewRecorder(auditRepo, logger)
	}

	// Provisioning pipeline
	credentialVault := vault.New(tokenCipher, apiKeyRepo, logger)
	allocator := tenancy.NewAllocator(tenantRepo)
	schemaProvisioner := provisioner.NewSchemaProvisioner(db, logger)
	orchestrator := provisioner.New(
		allocator, tenantRepo, signupRepo, deploymentRepo,
		schemaProvisioner, credentialVault, recorder,
		cfg.Tenancy.BaseDomain, logger,
	)

	// Tenant resolution, optionally cached in Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddress(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Printf("Tenant cache enabled (redis %s)", cfg.Redis.GetAddress())
	}
	tenantCache := cache.NewTenantCache(redisClient, tenantRepo, cfg.Tenancy.CacheTTL, logger)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes redis probe when the cache is enabled)
	router.GET("/ready", readinessHandler(db, redisClient))

	// API version
	router.GET("/version", versionHandler())

	// Initialize rate limiters. The signup limit is shared across replicas via
	// redis when available; the in-memory limiter is the fallback.
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	rateLimiters := []*middleware.RateLimiter{generalRateLimiter}

	var signupLimit gin.HandlerFunc
	if redisClient != nil {
		signupLimit = middleware.RedisRateLimitMiddleware(redisClient, middleware.SignupRateLimitConfig(), logger)
	} else {
		signupRateLimiter := middleware.NewRateLimiter(middleware.SignupRateLimitConfig())
		rateLimiters = append(rateLimiters, signupRateLimiter)
		signupLimit = middleware.RateLimitMiddleware(signupRateLimiter)
	}

	// Public signup intake (no auth, strict rate limit)
	signupHandlers := public.NewSignupHandlers(db, recorder)
	router.POST("/signup-requests", signupLimit, signupHandlers.Submit)

	// Tenant-scoped app routes, resolved from the Host header
	appGroup := router.Group("/app")
	appGroup.Use(middleware.ResolveTenant(tenantCache, logger))
	appGroup.Use(middleware.RequireTenant())
	appGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
	{
		appGroup.GET("/environment", environmentHandler(cfg))
		appGroup.GET("/channel-manager/status",
			middleware.RequireFeature("channel_manager"),
			channelManagerStatusHandler(credentialVault))
	}

	// Initialize admin handlers
	signupAdminHandlers := admin.NewSignupRequestHandlers(cfg, db, orchestrator, recorder)
	tenantAdminHandlers := admin.NewTenantHandlers(db, recorder, tenantCache)
	deploymentAdminHandlers := admin.NewDeploymentHandlers(db)
	auditLogHandlers := admin.NewAuditLogHandlers(db)

	// Admin API endpoints (JWT admin role required, all writes audited)
	adminGroup := router.Group("/admin")
	adminGroup.Use(middleware.RequireAdmin())
	adminGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
	adminGroup.Use(middleware.AuditTrail(recorder, logger))
	{
		adminGroup.GET("/signup-requests", signupAdminHandlers.List)
		adminGroup.GET("/signup-requests/:id", signupAdminHandlers.Get)
		adminGroup.POST("/signup-requests/:id/approve", signupAdminHandlers.Approve)
		adminGroup.POST("/signup-requests/:id/reject", signupAdminHandlers.Reject)

		adminGroup.GET("/tenants", tenantAdminHandlers.List)
		adminGroup.GET("/tenants/:orgId", tenantAdminHandlers.Get)
		adminGroup.PATCH("/tenants/:orgId/status", tenantAdminHandlers.UpdateStatus)

		adminGroup.GET("/deployments", deploymentAdminHandlers.List)
		adminGroup.GET("/deployments/:orgId", deploymentAdminHandlers.Get)

		adminGroup.GET("/audit-logs", auditLogHandlers.List)
	}

	bg := &BackgroundServices{
		rateLimiters: rateLimiters,
		auditShipper: auditShipper,
		redisClient:  redisClient,
	}

	return router, bg
}

// shipperConfigs converts config shipper entries into audit package configs.
func shipperConfigs(entries []config.AuditShipperConfig) []audit.ShipperConfig {
	out := make([]audit.ShipperConfig, 0, len(entries))
	for _, e := range entries {
		sc := audit.ShipperConfig{
			Enabled: e.Enabled,
			Type:    e.Type,
		}
		if e.Syslog != nil {
			sc.Syslog = &audit.SyslogConfig{
				Network:  e.Syslog.Network,
				Address:  e.Syslog.Address,
				Tag:      e.Syslog.Tag,
				Facility: e.Syslog.Facility,
			}
		}
		if e.Webhook != nil {
			sc.Webhook = &audit.WebhookConfig{
				URL:           e.Webhook.URL,
				Headers:       e.Webhook.Headers,
				Timeout:       time.Duration(e.Webhook.TimeoutSecs) * time.Second,
				BatchSize:     e.Webhook.BatchSize,
				FlushInterval: time.Duration(e.Webhook.FlushInterval) * time.Second,
			}
		}
		if e.File != nil {
			sc.File = &audit.FileConfig{
				Path:       e.File.Path,
				MaxSizeMB:  e.File.MaxSizeMB,
				MaxBackups: e.File.MaxBackups,
			}
		}
		out = append(out, sc)
	}
	return out
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database and, when enabled, redis connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the tenant cache so
// that a Kubernetes readiness gate fails when hot-path lookups would degrade.
func readinessHandler(db *sql.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// The tenant cache degrades to direct registry reads when redis is
		// down, so a failed ping is reported but does not gate readiness.
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = "unhealthy"
			} else {
				checks["redis"] = "healthy"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// @Summary      Tenant environment info
// @Description  Returns the resolved tenant context for the requesting host: organization, subdomain, schema, and enabled features.
// @Tags         App
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "organization_id, subdomain, schema_name, features"
// @Failure      400  {object}  map[string]string       "error: Tenant context required"
// @Router       /app/environment [get]
// environmentHandler reports the tenant context attached by ResolveTenant.
// Tenant frontends call this on load to discover which environment they are in.
func environmentHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		features, _ := c.Get(middleware.CtxFeatures)
		c.JSON(http.StatusOK, gin.H{
			"organization_id": c.GetString(middleware.CtxOrganizationID),
			"subdomain":       c.GetString(middleware.CtxSubdomain),
			"schema_name":     c.GetString(middleware.CtxSchemaName),
			"features":        features,
			"base_domain":     cfg.Tenancy.BaseDomain,
		})
	}
}

// @Summary      Channel manager connection status
// @Description  Reports whether the tenant has a channel manager API key on file. Requires the channel_manager feature.
// @Tags         App
// @Produce      json
// @Success      200  {object}  map[string]bool    "connected"
// @Failure      403  {object}  map[string]string  "error: Feature not enabled for this tenant"
// @Router       /app/channel-manager/status [get]
// channelManagerStatusHandler reports whether the tenant has a channel manager
// credential in the vault. The plaintext never leaves the server.
func channelManagerStatusHandler(credentials *vault.Vault) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.CtxOrganizationID)
		_, err := credentials.Retrieve(c.Request.Context(), orgID, "channel_manager", "api_key")
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"connected": true})
		case errors.Is(err, vault.ErrKeyNotFound):
			c.JSON(http.StatusOK, gin.H{"connected": false})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check channel manager credentials"})
		}
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID := c.GetString(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", requestID),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
