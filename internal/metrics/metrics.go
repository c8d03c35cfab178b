// Package metrics holds the Prometheus collectors for the service. Each
// Metrics value owns a private registry so tests can build as many as they
// like without duplicate-registration panics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rememberme"

// Metrics is the set of collectors exposed at /api/metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	AICalls           *prometheus.CounterVec
	ContactsCreated   prometheus.Counter
	MergesPerformed   prometheus.Counter
	RescueSuggestions prometheus.Counter
	CalendarSyncs     *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AICalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "AI completions by operation and outcome",
		}, []string{"operation", "outcome"}),
		ContactsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contacts_created_total",
			Help:      "Contacts created",
		}),
		MergesPerformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Duplicate merges performed",
		}),
		RescueSuggestions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rescue_suggestions_total",
			Help:      "Reconnect suggestions generated",
		}),
		CalendarSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_syncs_total",
			Help:      "Calendar syncs by provider and outcome",
		}, []string{"provider", "outcome"}),
	}
	m.registry.MustRegister(
		m.HTTPRequests, m.HTTPDuration, m.AICalls,
		m.ContactsCreated, m.MergesPerformed, m.RescueSuggestions, m.CalendarSyncs,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveAI counts one AI call. Safe on a nil receiver.
func (m *Metrics) ObserveAI(operation string, err error) {
	if m == nil {
		return
	}
	m.AICalls.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveSync counts one calendar sync. Safe on a nil receiver.
func (m *Metrics) ObserveSync(provider string, err error) {
	if m == nil {
		return
	}
	m.CalendarSyncs.WithLabelValues(provider, outcome(err)).Inc()
}

// ContactCreated counts a new contact. Safe on a nil receiver.
func (m *Metrics) ContactCreated() {
	if m != nil {
		m.ContactsCreated.Inc()
	}
}

// MergePerformed counts a duplicate merge. Safe on a nil receiver.
func (m *Metrics) MergePerformed() {
	if m != nil {
		m.MergesPerformed.Inc()
	}
}

// RescueSuggested counts a stored reconnect suggestion. Safe on a nil receiver.
func (m *Metrics) RescueSuggested() {
	if m != nil {
		m.RescueSuggestions.Inc()
	}
}
