// Package main implements the entry point for the printbridge application.
// Printbridge connects a 3D printer's WebSocket telemetry stream to NATS,
// keeping a sanitized local snapshot and fetching a per-job preview image.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/printbridge/bridge"
	"github.com/c360/printbridge/component"
	"github.com/c360/printbridge/config"
	"github.com/c360/printbridge/metric"
	"github.com/c360/printbridge/natsclient"
	"github.com/c360/printbridge/pkg/retry"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "printbridge"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	instanceID := uuid.NewString()[:8]
	logger := slog.Default().With("instance", instanceID)

	ctx := context.Background()

	// Setup core infrastructure
	natsClient, metricsRegistry, err := setupInfrastructure(ctx, cfg, instanceID)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer natsClient.Close(ctx)
	}

	deps := component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}

	printerBridge, err := bridge.NewBridge("printer-bridge", cfg, deps)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}
	if err := printerBridge.Initialize(); err != nil {
		return fmt.Errorf("initialize bridge: %w", err)
	}

	// Optional observability endpoint
	var healthServer *http.Server
	if cliCfg.HealthPort > 0 {
		healthServer = startHealthServer(cliCfg.HealthPort, printerBridge, metricsRegistry)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = healthServer.Shutdown(shutdownCtx)
		}()
	}

	// Run with signal handling
	return runWithSignalHandling(ctx, printerBridge, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printHelp()
		return nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat, cliCfg.LogFile)
	slog.SetDefault(logger)

	slog.Info("Starting printbridge (printer telemetry bridge)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, false, nil
}

// setupInfrastructure creates the metrics registry and, when publishing is
// enabled, a connected NATS client. A NATS server that is down at startup is
// not fatal: the client keeps reconnecting in the background and publishes
// resume once it is up.
func setupInfrastructure(
	ctx context.Context,
	cfg *config.Config,
	instanceID string,
) (*natsclient.Client, *metric.MetricsRegistry, error) {
	metricsRegistry := metric.NewMetricsRegistry()

	if !cfg.Publish.Enabled {
		slog.Info("Publishing disabled; running with local observers only")
		return nil, metricsRegistry, nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithClientName(fmt.Sprintf("%s-%s", appName, instanceID)),
		natsclient.WithReconnectCallback(func() {
			metricsRegistry.CoreMetrics().NATSReconnects.Inc()
		}),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	natsClient, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = retry.Do(connCtx, retry.Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}, func() error {
		return natsClient.Connect(connCtx)
	})
	if err != nil {
		slog.Warn("Initial NATS connection failed; publishes resume once the server is up",
			"error", err)
	} else {
		metricsRegistry.CoreMetrics().NATSConnected.Set(1)
	}

	return natsClient, metricsRegistry, nil
}

// startHealthServer serves /healthz and Prometheus /metrics.
func startHealthServer(
	port int,
	printerBridge *bridge.Bridge,
	metricsRegistry *metric.MetricsRegistry,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		metricsRegistry.PrometheusRegistry(),
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		health := printerBridge.Health()
		w.Header().Set("Content-Type", "application/json")
		if !health.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		slog.Info("Health and metrics endpoint listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server failed", "error", err)
		}
	}()

	return server
}

// runWithSignalHandling starts the bridge and blocks until a shutdown signal
func runWithSignalHandling(
	ctx context.Context,
	printerBridge *bridge.Bridge,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := printerBridge.Start(signalCtx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	slog.Info("Printbridge started successfully")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := printerBridge.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Printbridge shutdown complete")
	return nil
}

// printHelp prints help information
func printHelp() {
	printDetailedHelp()
}
