package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds fan-out and presence metrics.
type Metrics struct {
	EventsPublished      *prometheus.CounterVec
	EventRecipients      *prometheus.HistogramVec
	ResolutionDegraded   *prometheus.CounterVec
	DeliveryAttempts     prometheus.Counter
	DeliveryFailures     prometheus.Counter
	PresenceRegistered   prometheus.Counter
	PresenceFailures     *prometheus.CounterVec
	PresenceSwept        prometheus.Counter
	PresenceStoreLatency *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabhub_realtime_events_published_total",
			Help: "Event descriptors accepted for fan-out",
		}, []string{"kind"}),
		EventRecipients: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collabhub_realtime_event_recipients",
			Help:    "Resolved recipient connections per event",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"kind"}),
		ResolutionDegraded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabhub_realtime_resolution_degraded_total",
			Help: "Lookups that failed during targeting and were degraded",
		}, []string{"lookup"}),
		DeliveryAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabhub_realtime_delivery_attempts_total",
			Help: "Per-connection delivery attempts",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabhub_realtime_delivery_failures_total",
			Help: "Per-connection delivery failures",
		}),
		PresenceRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabhub_presence_registrations_total",
			Help: "Presence entries registered by connections",
		}),
		PresenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabhub_presence_failures_total",
			Help: "Presence store operations that failed and were swallowed",
		}, []string{"op"}),
		PresenceSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabhub_presence_swept_total",
			Help: "Presence entries removed after their lease expired",
		}),
		PresenceStoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collabhub_presence_store_duration_ms",
			Help:    "Latency of presence store calls in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}, []string{"op"}),
	}
}

func (m *Metrics) ObserveEvent(kind string, recipients int) {
	m.EventsPublished.WithLabelValues(kind).Inc()
	m.EventRecipients.WithLabelValues(kind).Observe(float64(recipients))
}

func (m *Metrics) IncrementDegraded(lookup string) {
	m.ResolutionDegraded.WithLabelValues(lookup).Inc()
}

// ObserveDelivery records one Dispatch call's attempts and failures.
func (m *Metrics) ObserveDelivery(attempts, failures int) {
	m.DeliveryAttempts.Add(float64(attempts))
	m.DeliveryFailures.Add(float64(failures))
}

func (m *Metrics) IncrementRegistered() {
	m.PresenceRegistered.Inc()
}

func (m *Metrics) IncrementPresenceFailure(op string) {
	m.PresenceFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) AddSwept(n int) {
	m.PresenceSwept.Add(float64(n))
}

func (m *Metrics) ObserveStoreLatency(op string, d time.Duration) {
	m.PresenceStoreLatency.WithLabelValues(op).Observe(float64(d.Microseconds()) / 1000.0)
}
