// Package metrics defines and registers all custom Prometheus metrics for the
// FarmIQ API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics register with the default Prometheus registry on package init via
// promauto and are exposed on GET /metrics. HTTP request metrics come from
// the echoprometheus middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "farmiq"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "created", "invalid", "duplicate" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "accepted", "rejected" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// SessionsTotal counts session lifecycle events.
// Label:
//   - event: "issued", "resolved", "rejected", "expired", "orphaned" or "revoked"
var SessionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Total number of session lifecycle events.",
	},
	[]string{"event"},
)

// SessionsPurgedTotal counts expired sessions removed by the sweeper.
var SessionsPurgedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_purged_total",
		Help:      "Total number of expired sessions deleted by the background sweeper.",
	},
)

// PasswordHashDuration measures bcrypt work on the hasher pool.
// Label:
//   - op: "hash" or "compare"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of bcrypt hash and compare operations, queueing excluded.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"op"},
)

// HashQueueDepth tracks jobs waiting for a hasher worker.
var HashQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "password_hash_queue_depth",
		Help:      "Current number of password hashing jobs waiting for a worker.",
	},
)

// ── Installation metrics ──────────────────────────────────────────────────────

// InstallationRequestsTotal counts installation requests entering a status.
// Label:
//   - status: "requested", "allocated", "scheduled", "installed" or "cancelled"
var InstallationRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "installation_requests_total",
		Help:      "Total number of installation requests entering each status.",
	},
	[]string{"status"},
)
