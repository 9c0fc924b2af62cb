// Package telemetry provides logging setup and Prometheus metrics for planilla.
//
// Metrics are registered against the default registry and served by the
// side-channel HTTP server started in cmd/server:
//
//	GET http://<host>:<PLN_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// HTTP metrics are labelled with the gin route template (c.FullPath()), never
// the raw URL, so record ids do not explode label cardinality.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/planilla-hr/planilla/internal/safego"
)

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

// RecordOperationsTotal counts record service verbs by resource type,
// operation (create, fetch, mutate, retire, activate, list) and outcome
// (ok, not_found, invalid, forbidden, conflict, error).
//
//	sum by (resource) (rate(record_operations_total{outcome="conflict"}[5m]))
var RecordOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "record_operations_total",
		Help: "Total number of record operations, by resource, operation, and outcome.",
	},
	[]string{"resource", "operation", "outcome"},
)

// LifecycleTransitionsTotal counts successful activate, inactivate and erase
// transitions.
var LifecycleTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "Total number of record lifecycle transitions, by resource and transition.",
	},
	[]string{"resource", "transition"},
)

// LoginAttemptsTotal counts /auth attempts by outcome (ok, rejected, error).
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "login_attempts_total",
		Help: "Total number of login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// AuditEntriesDroppedTotal counts audit entries a shipper failed to deliver.
var AuditEntriesDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "audit_entries_dropped_total",
		Help: "Total number of audit entries that could not be shipped, by shipper.",
	},
	[]string{"shipper"},
)

// DBOpenConnections tracks open connections in the sql.DB pool. Sampled by
// StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every interval until ctx is
// cancelled or the database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	safego.Go("db-stats-collector", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := db.PingContext(ctx); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	})
}
