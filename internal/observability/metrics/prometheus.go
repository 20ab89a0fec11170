// Package metrics provides Prometheus metrics for the reminder engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	MedicationsCreated  prometheus.Counter
	MedicationsUpdated  prometheus.Counter
	MedicationsDeleted  prometheus.Counter
	ValidationFailures  prometheus.Counter
	RemindersScheduled  prometheus.Counter
	RemindersCancelled  prometheus.Counter
	SyncFailures        prometheus.Counter
	SyncDuration        prometheus.Histogram
	BusMessagesProduced prometheus.Counter
	BusMessagesConsumed prometheus.Counter
	OutboxPending       prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		MedicationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medications_created_total",
			Help: "Total medications created",
		}),
		MedicationsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medications_updated_total",
			Help: "Total medications updated",
		}),
		MedicationsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medications_deleted_total",
			Help: "Total medications deleted",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medication_validation_failures_total",
			Help: "Total drafts rejected by validation",
		}),
		RemindersScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_scheduled_total",
			Help: "Total daily reminders scheduled",
		}),
		RemindersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_cancelled_total",
			Help: "Total reminder categories cancelled",
		}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_sync_failures_total",
			Help: "Total reminder sync attempts that failed",
		}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reminder_sync_duration_seconds",
			Help:    "Reminder sync duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		BusMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_messages_produced_total",
			Help: "Total sync events published to the bus",
		}),
		BusMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_messages_consumed_total",
			Help: "Total sync events consumed from the bus",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.MedicationsCreated,
		m.MedicationsUpdated,
		m.MedicationsDeleted,
		m.ValidationFailures,
		m.RemindersScheduled,
		m.RemindersCancelled,
		m.SyncFailures,
		m.SyncDuration,
		m.BusMessagesProduced,
		m.BusMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
