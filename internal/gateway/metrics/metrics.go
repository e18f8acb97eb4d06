// Package metrics exposes Prometheus collectors for the delivery gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mixchat"

// Metrics groups the gateway collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	frames      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	connections prometheus.Gauge
	delivered   prometheus.Counter
	markedSeen  prometheus.Counter
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "frames_total",
			Help:      "Inbound frames handled, by action and result code.",
		}, []string{"action", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "frame_duration_seconds",
			Help:      "Time from frame receipt to response push.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"action"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Currently open WebSocket connections.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Messages returned to recipients.",
		}),
		markedSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_marked_seen_total",
			Help:      "Messages transitioned from unseen to seen.",
		}),
	}
	reg.MustRegister(m.frames, m.duration, m.connections, m.delivered, m.markedSeen)
	return m
}

// ObserveFrame records one handled frame. An empty action is reported as "none".
func (m *Metrics) ObserveFrame(action, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if action == "" {
		action = "none"
	}
	m.frames.WithLabelValues(action, result).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ConnOpened increments the open connection gauge.
func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

// ConnClosed decrements the open connection gauge.
func (m *Metrics) ConnClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

// Delivered adds n to the delivered message counter.
func (m *Metrics) Delivered(n int) {
	if m != nil && n > 0 {
		m.delivered.Add(float64(n))
	}
}

// MarkedSeen adds n to the marked-seen counter.
func (m *Metrics) MarkedSeen(n int64) {
	if m != nil && n > 0 {
		m.markedSeen.Add(float64(n))
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
