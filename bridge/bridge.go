// Package bridge connects a printer's WebSocket telemetry stream to a NATS
// publish sink and local observers. A single supervisor goroutine owns the
// connection lifecycle and drives every inbound frame through merge, sanitize
// and change detection before applying side effects, so the cached state and
// the last forwarded snapshot never need locking.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/printbridge/component"
	"github.com/c360/printbridge/config"
	"github.com/c360/printbridge/errors"
	"github.com/c360/printbridge/imagefetch"
	"github.com/c360/printbridge/pkg/retry"
	"github.com/c360/printbridge/publish"
	"github.com/c360/printbridge/telemetry"
)

const (
	handshakeTimeout = 45 * time.Second
	backoffFloor     = 1 * time.Second
	backoffCeiling   = 60 * time.Second

	// Keepalive cadence: ping every pingPeriod, and require some inbound
	// traffic (frame or pong) within pongWait or the connection is dead.
	defaultPingPeriod = 20 * time.Second
	defaultPongWait   = 40 * time.Second
	writeWait         = 5 * time.Second
)

// imageFetcher is the slice of the fetcher the supervisor uses.
type imageFetcher interface {
	Enabled() bool
	Fetch(ctx context.Context) error
}

// Bridge supervises one printer's telemetry stream
type Bridge struct {
	name   string
	config *config.Config

	state     *telemetry.State
	store     *Store
	publisher publish.Publisher
	fetcher   imageFetcher

	// Pipeline state, touched only by the supervisor goroutine.
	lastForwarded   telemetry.Snapshot
	haveForwarded   bool
	lastLocalUpdate time.Time
	publishInterval time.Duration
	now             func() time.Time

	// Connection management
	dialer     *websocket.Dialer
	conn       *websocket.Conn
	connMu     sync.Mutex
	backoff    *retry.Backoff
	pingPeriod time.Duration
	pongWait   time.Duration

	// At most one image fetch in flight; new jobs detected while a fetch
	// is running are skipped rather than queued.
	fetchInFlight atomic.Bool

	// Lifecycle management
	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	startTime    time.Time
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	lifecycleMu  sync.Mutex

	errorCount atomic.Int64
	logger     *slog.Logger
	metrics    *Metrics
}

// Ensure Bridge implements all required interfaces
var (
	_ component.LifecycleComponent = (*Bridge)(nil)
	_ component.Discoverable       = (*Bridge)(nil)
)

// NewBridge creates a bridge for one printer from validated configuration.
func NewBridge(name string, cfg *config.Config, deps component.Dependencies) (*Bridge, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Bridge", "NewBridge",
			"configuration required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bridge := &Bridge{
		name:            name,
		config:          cfg,
		state:           telemetry.NewState(),
		store:           NewStore(),
		publishInterval: cfg.Publish.Interval(),
		now:             time.Now,
		dialer:          &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		backoff:         retry.NewBackoff(backoffFloor, backoffCeiling),
		pingPeriod:      defaultPingPeriod,
		pongWait:        defaultPongWait,
		shutdown:        make(chan struct{}),
		logger:          deps.GetLoggerWithComponent(name),
		metrics:         newMetrics(deps.MetricsRegistry, name),
	}

	if cfg.Publish.Enabled {
		bridge.publisher = publish.NewNATSPublisher(cfg.Publish.Topic, deps)
	}

	if cfg.Image.SourceURL != "" {
		bridge.fetcher = imagefetch.NewFetcher(imagefetch.Config{
			SourceURL: cfg.Image.SourceURL,
			DestPath:  cfg.Image.LocalPath,
			MaxBytes:  cfg.Image.MaxBytes,
		}, deps)
	}

	return bridge, nil
}

// Store returns the local observer store.
func (b *Bridge) Store() *Store {
	return b.store
}

// Meta returns component metadata
func (b *Bridge) Meta() component.Metadata {
	return component.Metadata{
		Name:        b.name,
		Type:        "bridge",
		Description: "Printer telemetry bridge from WebSocket stream to NATS and local observers",
		Version:     "1.0.0",
	}
}

// Health returns current health status
func (b *Bridge) Health() component.HealthStatus {
	started := b.started.Load()

	b.connMu.Lock()
	connected := b.conn != nil
	b.connMu.Unlock()

	uptime := time.Duration(0)
	if started && !b.startTime.IsZero() {
		uptime = time.Since(b.startTime)
	}

	return component.HealthStatus{
		Healthy:    started && connected,
		LastCheck:  time.Now(),
		ErrorCount: int(b.errorCount.Load()),
		Uptime:     uptime,
	}
}

// Initialize prepares the bridge (no-op, everything happens in NewBridge and Start)
func (b *Bridge) Initialize() error {
	return nil
}

// Start launches the supervisor goroutine
func (b *Bridge) Start(ctx context.Context) error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if b.started.Load() {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Bridge", "Start",
			"check started state")
	}

	componentCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.wg.Add(1)
	go b.supervise(componentCtx)

	b.startTime = time.Now()
	b.started.Store(true)
	return nil
}

// Stop signals shutdown and waits for the supervisor to unwind. The stop
// signal interrupts an open connection wait, a backoff sleep and an
// in-progress image download.
func (b *Bridge) Stop(timeout time.Duration) error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if !b.started.Load() {
		return nil
	}

	b.shutdownOnce.Do(func() {
		close(b.shutdown)
	})
	b.cancel()

	// Closing the connection unblocks a pending read immediately.
	b.connMu.Lock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.connMu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"Bridge", "Stop", "wait for goroutines")
	}

	b.started.Store(false)
	return nil
}

func (b *Bridge) trackError(errorType string) {
	b.errorCount.Add(1)
	if b.metrics != nil {
		b.metrics.errorsTotal.WithLabelValues(b.name, errorType).Inc()
	}
}

func (b *Bridge) stopping() bool {
	select {
	case <-b.shutdown:
		return true
	default:
		return false
	}
}

// supervise runs the connection state machine: dial, consume frames until the
// connection drops, back off, repeat. The backoff delay doubles per failed
// cycle and resets to its floor on every successful handshake. Only the stop
// signal ends the loop.
func (b *Bridge) supervise(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		default:
		}

		conn, _, err := b.dialer.DialContext(ctx, b.config.StreamURL, nil)
		if err != nil {
			if b.stopping() {
				return
			}
			b.trackError("connect_error")
			delay := b.backoff.Next()
			b.logger.Warn("Printer connection failed; backing off",
				"url", b.config.StreamURL, "delay", delay, "error", err)
			if !b.waitBackoff(ctx, delay) {
				return
			}
			continue
		}

		b.backoff.Reset()
		b.connMu.Lock()
		b.conn = conn
		b.connMu.Unlock()

		if b.metrics != nil {
			b.metrics.connected.Set(1)
			b.metrics.connectionsTotal.Inc()
		}
		b.logger.Info("Connected to printer stream", "url", b.config.StreamURL)

		b.readLoop(ctx, conn)

		b.connMu.Lock()
		if b.conn != nil {
			b.conn.Close()
			b.conn = nil
		}
		b.connMu.Unlock()

		if b.metrics != nil {
			b.metrics.connected.Set(0)
		}

		if b.stopping() {
			return
		}

		delay := b.backoff.Next()
		b.logger.Warn("Printer connection lost; backing off", "delay", delay)
		if !b.waitBackoff(ctx, delay) {
			return
		}
	}
}

// waitBackoff sleeps for the given delay, returning false if interrupted by
// shutdown or context cancellation.
func (b *Bridge) waitBackoff(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-b.shutdown:
		return false
	}
}

// readLoop consumes frames from one connection until it fails or shutdown is
// requested. The blocking read is unblocked by Stop closing the connection,
// and a ping/pong keepalive bounds how long a silently dead link can stall
// the loop before it returns to the backoff path.
func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(b.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	b.wg.Add(1)
	go b.keepalive(conn, stopPing)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if !b.stopping() {
				b.trackError("read_error")
			}
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(b.pongWait))
		b.handleFrame(ctx, message)
	}
}

// keepalive pings the printer on a fixed cadence for the life of one
// connection. A failed ping write means the link is gone; the read side
// notices through its deadline, so the ticker just stops.
func (b *Bridge) keepalive(conn *websocket.Conn, stop <-chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-stop:
			return
		case <-b.shutdown:
			return
		}
	}
}

// handleFrame runs one frame through the pipeline: merge into cached state,
// sanitize, detect meaningful change, then apply side effects. Malformed
// frames are skipped without touching any state.
func (b *Bridge) handleFrame(ctx context.Context, data []byte) {
	var fragment telemetry.RawFragment
	if err := json.Unmarshal(data, &fragment); err != nil || fragment == nil {
		b.logger.Debug("Skipping malformed frame", "error", err)
		if b.metrics != nil {
			b.metrics.framesReceived.WithLabelValues(b.name, "malformed").Inc()
		}
		return
	}
	if b.metrics != nil {
		b.metrics.framesReceived.WithLabelValues(b.name, "ok").Inc()
	}

	newJob := b.state.Merge(fragment)
	snapshot := b.state.Snapshot(b.config.Image.ExposedPath)

	if newJob {
		b.logger.Info("New print job detected", "filename", snapshot.Filename)
		b.startImageFetch(ctx)
	}

	now := b.now()
	if telemetry.MeaningfulChange(snapshot, b.lastForwarded, b.haveForwarded) {
		b.forward(ctx, snapshot, now)
	} else if now.Sub(b.lastLocalUpdate) > b.publishInterval {
		// Interval-driven refresh keeps local observers current even when
		// nothing crossed a tolerance. It never touches the publish sink.
		b.store.Update(snapshot)
		b.lastLocalUpdate = now
		if b.metrics != nil {
			b.metrics.localRefreshes.Inc()
		}
	}
}

// forward publishes a meaningfully changed snapshot and updates local
// observers. Publish failures are logged and counted but never block the
// pipeline; the snapshot still becomes the new comparison baseline.
func (b *Bridge) forward(ctx context.Context, snapshot telemetry.Snapshot, now time.Time) {
	if b.publisher != nil {
		if err := b.publisher.Publish(ctx, snapshot); err != nil {
			b.trackError("publish_error")
			if b.metrics != nil {
				b.metrics.snapshotsForwarded.WithLabelValues(b.name, "error").Inc()
			}
		} else if b.metrics != nil {
			b.metrics.snapshotsForwarded.WithLabelValues(b.name, "success").Inc()
		}
	}

	b.store.Update(snapshot)
	b.lastForwarded = snapshot
	b.haveForwarded = true
	b.lastLocalUpdate = now
}

// startImageFetch launches a background download gated so at most one fetch
// is ever in flight. Frame ingestion continues while the download runs.
func (b *Bridge) startImageFetch(ctx context.Context) {
	if b.fetcher == nil || !b.fetcher.Enabled() {
		return
	}

	if !b.fetchInFlight.CompareAndSwap(false, true) {
		b.logger.Debug("Image fetch already in flight; skipping")
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.fetchInFlight.Store(false)
		if err := b.fetcher.Fetch(ctx); err != nil {
			b.trackError("image_fetch_error")
		}
	}()
}
