// Package metrics exposes prometheus instrumentation for inbound email
// processing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InboundProcessed counts inbound emails by outcome: new_ticket,
	// follow_up, duplicate, error.
	InboundProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servdesk",
		Subsystem: "inbound",
		Name:      "emails_total",
		Help:      "Inbound emails processed, by outcome.",
	}, []string{"outcome"})

	// StatusTransitions counts executed ticket status transitions.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servdesk",
		Subsystem: "tickets",
		Name:      "status_transitions_total",
		Help:      "Executed ticket status transitions, by target status.",
	}, []string{"to"})

	// NotificationFailures counts best-effort notification sends that
	// failed and were swallowed.
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "servdesk",
		Subsystem: "notifications",
		Name:      "failures_total",
		Help:      "Notification dispatches that failed (best-effort, non-fatal).",
	})
)
