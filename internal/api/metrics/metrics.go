// Package metrics defines and registers all custom Prometheus metrics for the
// pharmastock inventory API. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import via
// promauto; /metrics exposes them through promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pharmastock"

// ── Inventory metrics ─────────────────────────────────────────────────────────

// MedicationsRegisteredTotal counts medications created through the API.
// Label:
//   - result: "created", "replayed" (Idempotency-Key hit), "in_progress" or "rejected"
var MedicationsRegisteredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "medications_registered_total",
		Help:      "Total number of medication registration attempts, by result.",
	},
	[]string{"result"},
)

// StockAdjustmentsTotal counts increase/decrease requests.
// Labels:
//   - direction: "increase" or "decrease"
//   - result: "applied", "insufficient_stock", "not_found" or "invalid"
var StockAdjustmentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_adjustments_total",
		Help:      "Total number of stock adjustments, by direction and result.",
	},
	[]string{"direction", "result"},
)

// MedicationsRemovedTotal counts successful deletions.
var MedicationsRemovedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "medications_removed_total",
		Help:      "Total number of medications removed.",
	},
)

// ExpiredMedications reports the expired count seen by the latest report.
var ExpiredMedications = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "expired_medications",
		Help:      "Number of expired medications at the time of the last inventory report.",
	},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequestDuration measures handler latency.
// Labels:
//   - method: HTTP method
//   - route: the matched route pattern (e.g. "/v1/medications/:id")
//   - status: response status code
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests, by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)
