// Package publish sends telemetry snapshots to downstream subscribers.
// Publishing is best effort: failures are logged and counted, never retried,
// and never block the ingestion loop.
package publish

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/printbridge/component"
	"github.com/c360/printbridge/errors"
	"github.com/c360/printbridge/metric"
	"github.com/c360/printbridge/telemetry"
)

// Publisher delivers a sanitized snapshot to a topic.
type Publisher interface {
	Publish(ctx context.Context, snapshot telemetry.Snapshot) error
}

// Metrics holds Prometheus metrics for the NATS publisher
type Metrics struct {
	publishesTotal *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		publishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "printbridge",
			Subsystem: "publish",
			Name:      "publishes_total",
			Help:      "Total snapshot publish attempts by outcome",
		}, []string{"component", "outcome"}),
	}

	_ = registry.RegisterCounterVec(componentName, "publishes", metrics.publishesTotal)

	return metrics
}

// natsConn narrows the NATS client to the single call the publisher makes.
type natsConn interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSPublisher serializes snapshots to JSON and publishes them to a fixed
// subject via core NATS.
type NATSPublisher struct {
	conn    natsConn
	subject string
	logger  *slog.Logger
	metrics *Metrics
}

// NewNATSPublisher creates a publisher bound to a subject. The client must be
// connected separately; publishing while disconnected fails fast.
func NewNATSPublisher(subject string, deps component.Dependencies) *NATSPublisher {
	publisher := &NATSPublisher{
		subject: subject,
		logger:  deps.GetLoggerWithComponent("publish"),
		metrics: newMetrics(deps.MetricsRegistry, "publish"),
	}
	if deps.NATSClient != nil {
		publisher.conn = deps.NATSClient
	}
	return publisher
}

func (p *NATSPublisher) trackOutcome(outcome string) {
	if p.metrics != nil {
		p.metrics.publishesTotal.WithLabelValues("publish", outcome).Inc()
	}
}

// Subject returns the topic snapshots are published to.
func (p *NATSPublisher) Subject() string {
	return p.subject
}

// Publish serializes the snapshot and sends it. Errors are classified
// transient so callers can log and move on.
func (p *NATSPublisher) Publish(ctx context.Context, snapshot telemetry.Snapshot) error {
	payload, err := snapshot.Marshal()
	if err != nil {
		p.trackOutcome("marshal_error")
		p.logger.Error("Snapshot serialization failed", "error", err)
		return errors.WrapInvalid(err, "NATSPublisher", "Publish", "marshal snapshot")
	}

	if p.conn == nil {
		p.trackOutcome("no_client")
		return errors.WrapTransient(errors.ErrNoConnection,
			"NATSPublisher", "Publish", "publish snapshot")
	}

	if err := p.conn.Publish(ctx, p.subject, payload); err != nil {
		p.trackOutcome("error")
		p.logger.Warn("Snapshot publish failed", "subject", p.subject, "error", err)
		return errors.WrapTransient(err, "NATSPublisher", "Publish", "publish snapshot")
	}

	p.trackOutcome("success")
	return nil
}
