package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's counters.
type Metrics struct {
	RemindersInstalled prometheus.Counter
	RemindersRevoked   prometheus.Counter
	NotificationsFired prometheus.Counter
	Snoozes            prometheus.Counter
	ActionsRouted      *prometheus.CounterVec
	LogWrites          *prometheus.CounterVec
	StoreErrors        prometheus.Counter
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics registered on the default
// prometheus registry.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RemindersInstalled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtrack_reminders_installed_total",
			Help: "Reminder handles installed on the device schedule.",
		}),
		RemindersRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtrack_reminders_revoked_total",
			Help: "Reminder handles revoked from the device schedule.",
		}),
		NotificationsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtrack_notifications_fired_total",
			Help: "Reminder notifications presented to the user.",
		}),
		Snoozes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtrack_snoozes_total",
			Help: "Snooze re-arms scheduled.",
		}),
		ActionsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtrack_actions_routed_total",
			Help: "Notification responses routed, by action.",
		}, []string{"action"}),
		LogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtrack_log_writes_total",
			Help: "Adherence log upserts, by status.",
		}, []string{"status"}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtrack_store_errors_total",
			Help: "Errors returned by the external store adapter.",
		}),
	}

	reg.MustRegister(
		m.RemindersInstalled,
		m.RemindersRevoked,
		m.NotificationsFired,
		m.Snoozes,
		m.ActionsRouted,
		m.LogWrites,
		m.StoreErrors,
	)
	return m
}
