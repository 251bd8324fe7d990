// Package metrics defines and registers the custom Prometheus metrics of the
// TaxFlow API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default registry on import through promauto
// and are only incremented from the api layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taxflow"

// ── Login metrics ─────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login requests by outcome.
// Label:
//   - result: "success", "two_factor_required", "invalid_credentials",
//     "rate_limited", "invalid_request" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"result"},
)

// TwoFactorVerificationsTotal counts second-factor verifications at login.
// Label:
//   - result: "success", "invalid_code", "invalid_session" or "error"
var TwoFactorVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "two_factor_verifications_total",
		Help:      "Total number of second-factor verifications, by outcome.",
	},
	[]string{"result"},
)

var RegistrationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of accounts registered.",
	},
)

// ── Approval metrics ──────────────────────────────────────────────────────────

// ApprovalDecisionsTotal counts consultant decisions.
// Labels:
//   - stage: "registration" or "piva"
//   - decision: "approved" or "rejected"
var ApprovalDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "approval_decisions_total",
		Help:      "Total number of approval decisions, by stage and decision.",
	},
	[]string{"stage", "decision"},
)

// ── Payment webhook metrics ───────────────────────────────────────────────────

// WebhookEventsTotal counts payment events by type and outcome.
// Labels:
//   - type: the provider event type
//   - outcome: "applied", "duplicate", "ignored", "rejected" or "error"
var WebhookEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Total number of payment webhook events, by type and outcome.",
	},
	[]string{"type", "outcome"},
)
