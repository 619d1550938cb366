package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/printbridge/metric"
)

// Metrics holds Prometheus metrics for the bridge supervisor
type Metrics struct {
	framesReceived     *prometheus.CounterVec
	snapshotsForwarded *prometheus.CounterVec
	localRefreshes     prometheus.Counter
	connectionsTotal   prometheus.Counter
	connected          prometheus.Gauge
	errorsTotal        *prometheus.CounterVec
}

// newMetrics creates and registers bridge metrics
func newMetrics(registry *metric.MetricsRegistry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "printbridge",
			Subsystem: "bridge",
			Name:      "frames_received_total",
			Help:      "Total telemetry frames received by decode result",
		}, []string{"component", "result"}),

		snapshotsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "printbridge",
			Subsystem: "bridge",
			Name:      "snapshots_forwarded_total",
			Help:      "Total snapshots forwarded on meaningful change",
		}, []string{"component", "outcome"}),

		localRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "printbridge",
			Subsystem: "bridge",
			Name:      "local_refreshes_total",
			Help:      "Total interval-driven local observer refreshes",
		}),

		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "printbridge",
			Subsystem: "bridge",
			Name:      "connections_total",
			Help:      "Total successful printer connections",
		}),

		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "printbridge",
			Subsystem: "bridge",
			Name:      "connected",
			Help:      "Whether the printer stream is currently connected (0 or 1)",
		}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "printbridge",
			Subsystem: "bridge",
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"component", "type"}),
	}

	_ = registry.RegisterCounterVec(componentName, "frames_received", metrics.framesReceived)
	_ = registry.RegisterCounterVec(componentName, "snapshots_forwarded", metrics.snapshotsForwarded)
	_ = registry.RegisterCounterVec(componentName, "errors_total", metrics.errorsTotal)
	_ = registry.RegisterCounter(componentName, "local_refreshes", metrics.localRefreshes)
	_ = registry.RegisterCounter(componentName, "connections_total", metrics.connectionsTotal)
	_ = registry.RegisterGauge(componentName, "connected", metrics.connected)

	return metrics
}
