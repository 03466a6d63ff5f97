package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds gateway-level Prometheus metrics.
type Metrics struct {
	ConnectionsActive  prometheus.Gauge
	ConnectionsTotal   prometheus.Counter
	HandshakesRejected *prometheus.CounterVec
	PresenceIgnored    *prometheus.CounterVec
	FramesSent         prometheus.Counter
}

// New creates and registers gateway metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers metrics on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "collabhub_ws_connections_active",
			Help: "Websocket connections currently open on this process",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabhub_ws_connections_total",
			Help: "Total websocket connections accepted",
		}),
		HandshakesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabhub_ws_handshakes_rejected_total",
			Help: "Websocket upgrades rejected before a connection was established",
		}, []string{"reason"}),
		PresenceIgnored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabhub_ws_presence_claims_ignored_total",
			Help: "Presence claims discarded on connections that were still accepted",
		}, []string{"reason"}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "collabhub_ws_frames_sent_total",
			Help: "Event frames written to websocket connections",
		}),
	}
}

func (m *Metrics) ConnectionOpened() {
	m.ConnectionsActive.Inc()
	m.ConnectionsTotal.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.ConnectionsActive.Dec()
}

func (m *Metrics) HandshakeRejected(reason string) {
	m.HandshakesRejected.WithLabelValues(reason).Inc()
}

// PresenceClaimsIgnored counts claims discarded on a connection that was
// still accepted.
func (m *Metrics) PresenceClaimsIgnored(reason string, n int) {
	m.PresenceIgnored.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) FrameSent() {
	m.FramesSent.Inc()
}
