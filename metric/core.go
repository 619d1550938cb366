package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains platform-level metrics shared across bridge components
// (not domain-specific; components register their own metrics on top).
type Metrics struct {
	// Frame pipeline metrics
	FramesReceived     *prometheus.CounterVec
	SnapshotsPublished *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "printbridge",
				Subsystem: "frames",
				Name:      "received_total",
				Help:      "Total number of telemetry frames received",
			},
			[]string{"component"},
		),

		SnapshotsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "printbridge",
				Subsystem: "snapshots",
				Name:      "published_total",
				Help:      "Total number of snapshots published",
			},
			[]string{"component", "subject"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "printbridge",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total errors by component and type",
			},
			[]string{"component", "type"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "printbridge",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "printbridge",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// collectors returns all core metrics for registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FramesReceived,
		m.SnapshotsPublished,
		m.ErrorsTotal,
		m.NATSConnected,
		m.NATSReconnects,
	}
}
