// Package telemetry provides application-level observability for the control plane.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<SB_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Tenant provisioning run counters and duration histogram
//   - Tenant resolution counters (cache/registry lookups on the request hot path)
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /admin/tenants/:orgId/status)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as organization IDs.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening:
//
//	import _ "github.com/staybase/staybase-backend/internal/telemetry"
//
// Or import it directly and use an exported var:
//
//	telemetry.ProvisioningRunsTotal.WithLabelValues("success").Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/staybase/staybase-backend/internal/safego"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /admin/signup-requests/:id/approve),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
//
// Example PromQL queries:
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
//   - Average latency:                   rate(http_request_duration_seconds_sum[5m]) / rate(http_request_duration_seconds_count[5m])
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Provisioning metrics, recorded around each approval run.
//
// ProvisioningRunsTotal is a CounterVec with label {outcome} ("success", "failed",
// "resumed").  An alert on rate of failed runs catches schema or seed regressions
// before operators notice stuck deployments.
//
// Example PromQL queries:
//   - Failure rate:      rate(provisioning_runs_total{outcome="failed"}[1h])
//   - Alert expression:  increase(provisioning_runs_total{outcome="failed"}[30m]) > 2
//
// ProvisioningDuration is a Histogram observed once per completed provisioning run,
// end to end from approval to ready.  Schema DDL dominates the distribution.
//
// Example PromQL queries:
//   - p95 provisioning time:  histogram_quantile(0.95, rate(provisioning_duration_seconds_bucket[6h]))
//
// TenantsProvisionedTotal is a CounterVec with label {plan} incremented when a
// tenant reaches ready.  Useful for tracking plan mix over time.
var (
	ProvisioningRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_runs_total",
			Help: "Total number of provisioning runs, by outcome.",
		},
		[]string{"outcome"},
	)

	ProvisioningDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provisioning_duration_seconds",
			Help:    "Duration of a complete tenant provisioning run.",
			Buckets: prometheus.DefBuckets,
		},
	)

	TenantsProvisionedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenants_provisioned_total",
			Help: "Total number of tenants provisioned to ready, by plan.",
		},
		[]string{"plan"},
	)
)

// TenantResolutionsTotal is a CounterVec with label {result} ("hit", "miss",
// "unknown", "error") incremented on every subdomain resolution. A rising
// "miss" rate with Redis enabled points at a TTL set too low or cache churn.
//
// Example PromQL queries:
//   - Cache hit ratio:  sum(rate(tenant_resolutions_total{result="hit"}[5m])) / sum(rate(tenant_resolutions_total[5m]))
var TenantResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tenant_resolutions_total",
		Help: "Total number of tenant subdomain resolutions, by result.",
	},
	[]string{"result"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <SB_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	safego.Go(func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	})
}
