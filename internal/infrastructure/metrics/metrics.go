package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes recorded by the fan-out path.
const (
	OutcomeDelivered  = "delivered"
	OutcomeFailed     = "failed"
	OutcomeSuppressed = "suppressed"
)

// Metrics groups the collectors exported by the messaging service.
type Metrics struct {
	registry *prometheus.Registry

	Deliveries     *prometheus.CounterVec
	MessagesStored *prometheus.CounterVec
	AuthFailures   *prometheus.CounterVec
	Channels       prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "deliveries_total",
			Help:      "Realtime events handed to live channels, by event type and outcome.",
		}, []string{"event", "outcome"}),
		MessagesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "messages_stored_total",
			Help:      "Messages accepted by the store, by ingestion path.",
		}, []string{"path"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "auth_failures_total",
			Help:      "Rejected credentials, by entry point.",
		}, []string{"entry"}),
		Channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "live_channels",
			Help:      "Currently registered realtime channels.",
		}),
	}
	reg.MustRegister(m.Deliveries, m.MessagesStored, m.AuthFailures, m.Channels)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Delivery records one fan-out attempt. Safe on a nil receiver.
func (m *Metrics) Delivery(event, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(event, outcome).Inc()
}

// Stored records one accepted message. Safe on a nil receiver.
func (m *Metrics) Stored(path string) {
	if m == nil {
		return
	}
	m.MessagesStored.WithLabelValues(path).Inc()
}

// AuthFailure records one rejected credential. Safe on a nil receiver.
func (m *Metrics) AuthFailure(entry string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(entry).Inc()
}

// ChannelOpened and ChannelClosed track the live channel gauge. Safe on a nil receiver.
func (m *Metrics) ChannelOpened() {
	if m != nil {
		m.Channels.Inc()
	}
}

func (m *Metrics) ChannelClosed() {
	if m != nil {
		m.Channels.Dec()
	}
}
