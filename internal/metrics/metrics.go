package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MessagesDelivered *prometheus.CounterVec
	MessagesFailed    *prometheus.CounterVec
	DeliveryLatency   *prometheus.HistogramVec
	ControlEvents     *prometheus.CounterVec
	ActiveConsumers   prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_delivered_total",
			Help: "Total number of messages delivered to a recipient.",
		}, []string{"backend"}),

		MessagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_failed_total",
			Help: "Total number of failed delivery attempts, by failure mode.",
		}, []string{"backend", "mode"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "message_delivery_seconds",
			Help:    "Delivery latency from dequeue to backend acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),

		ControlEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "control_events_total",
			Help: "Total number of control events processed, by event kind.",
		}, []string{"kind"}),

		ActiveConsumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_consumers",
			Help: "Current number of live queue consumers.",
		}),
	}

	reg.MustRegister(
		m.MessagesDelivered,
		m.MessagesFailed,
		m.DeliveryLatency,
		m.ControlEvents,
		m.ActiveConsumers,
	)

	return m
}

// DispatchHooks returns the metric callbacks expected by dispatch.Hooks.
// Centralises the prometheus observation calls so the dispatch package
// stays import-free.
func (m *Metrics) DispatchHooks() (
	onDelivered func(domain.BackendKind, time.Duration),
	onFailed func(domain.BackendKind, bool),
	onControl func(domain.ControlKind),
	onConsumers func(int),
) {
	onDelivered = func(kind domain.BackendKind, latency time.Duration) {
		m.MessagesDelivered.WithLabelValues(string(kind)).Inc()
		m.DeliveryLatency.WithLabelValues(string(kind)).Observe(latency.Seconds())
	}
	onFailed = func(kind domain.BackendKind, fatal bool) {
		mode := "retryable"
		if fatal {
			mode = "fatal"
		}
		m.MessagesFailed.WithLabelValues(string(kind), mode).Inc()
	}
	onControl = func(kind domain.ControlKind) {
		m.ControlEvents.WithLabelValues(string(kind)).Inc()
	}
	onConsumers = func(delta int) {
		m.ActiveConsumers.Add(float64(delta))
	}
	return
}
