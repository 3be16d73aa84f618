// Package metrics holds the service's prometheus collectors, registered on
// the default registry and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WithdrawalsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_withdrawal_requests_created_total",
			Help: "Total number of withdrawal requests created",
		},
	)

	// ApprovalAttempts is labelled by outcome: approved, completed,
	// invalid_code, mismatch, not_found, not_authorized, already_approved,
	// not_pending, throttled, error.
	ApprovalAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_withdrawal_approval_attempts_total",
			Help: "Approval confirmations by outcome",
		},
		[]string{"result"},
	)

	ApprovalConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_withdrawal_approval_conflicts_total",
			Help: "Approval writes retried after a concurrent update",
		},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_notification_failures_total",
			Help: "Best-effort notifications that failed, by channel",
		},
		[]string{"channel"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vault_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route", "status"},
	)
)
