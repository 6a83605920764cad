package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by the services
type Metrics struct {
	Toggles              *prometheus.CounterVec
	ToggleConflicts      *prometheus.CounterVec
	ToggleRepairs        *prometheus.CounterVec
	NotificationsEmitted *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	ReconcileCorrections *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "toggles_total",
			Help:      "Completed toggles by kind and resulting state.",
		}, []string{"kind", "state"}),
		ToggleConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "toggle_conflicts_total",
			Help:      "Ledger unique-index conflicts resolved by re-reading state.",
		}, []string{"kind"}),
		ToggleRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "toggle_repairs_total",
			Help:      "Cache updates replayed because a concurrent toggle on the same pair left them out of step with the ledger.",
		}, []string{"kind"}),
		NotificationsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "notifications_emitted_total",
			Help:      "Notifications appended to the sink.",
		}, []string{"type"}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "notification_failures_total",
			Help:      "Notification store or publish failures by stage.",
		}, []string{"stage"}),
		ReconcileCorrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "reconcile_corrections_total",
			Help:      "Cached counters or sets rewritten by reconciliation.",
		}, []string{"field"}),
	}
	if reg != nil {
		reg.MustRegister(m.Toggles, m.ToggleConflicts, m.ToggleRepairs, m.NotificationsEmitted, m.NotificationFailures, m.ReconcileCorrections)
	}
	return m
}
