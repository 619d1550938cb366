// Package config defines the bridge configuration: loaded from an optional
// JSON file, overridden by PRINTBRIDGE_* environment variables, and validated
// with default fallbacks before use.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/c360/printbridge/errors"
)

// Defaults applied by Validate when fields are unset or out of range.
const (
	DefaultPublishTopic    = "printer.status"
	DefaultPublishInterval = 2.0 // seconds
	DefaultMaxImageBytes   = 5 * 1024 * 1024
	DefaultLocalImagePath  = "public/images/3dprint.png"
	DefaultExposedPath     = "/local/images/3dprint.png"
)

// NATSConfig holds connection settings for the publish sink
type NATSConfig struct {
	URL      string `json:"url"      env:"URL"`
	Username string `json:"username" env:"USERNAME"`
	Password string `json:"password" env:"PASSWORD"`
	Token    string `json:"token"    env:"TOKEN"`
}

// PublishConfig controls the downstream snapshot publishing cadence
type PublishConfig struct {
	Enabled bool   `json:"enabled" env:"ENABLED"`
	Topic   string `json:"topic"   env:"TOPIC"`
	// IntervalSeconds is the local-refresh interval; non-positive values
	// fall back to DefaultPublishInterval.
	IntervalSeconds float64 `json:"interval_seconds" env:"INTERVAL"`
}

// Interval returns the publish interval as a duration
func (p PublishConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds * float64(time.Second))
}

// ImageConfig controls the per-job preview image fetch
type ImageConfig struct {
	// SourceURL is the printer snapshot endpoint; empty disables fetching.
	SourceURL string `json:"source_url" env:"SOURCE_URL"`
	// LocalPath is the filesystem destination, replaced atomically.
	LocalPath string `json:"local_path" env:"LOCAL_PATH"`
	// ExposedPath is embedded verbatim in every snapshot for downstream
	// consumers; the bridge never serves the file itself.
	ExposedPath string `json:"exposed_path" env:"EXPOSED_PATH"`
	// MaxBytes bounds the download; non-positive values fall back to
	// DefaultMaxImageBytes.
	MaxBytes int64 `json:"max_bytes" env:"MAX_BYTES"`
}

// Config represents the complete bridge configuration
type Config struct {
	// StreamURL is the printer's WebSocket telemetry endpoint.
	StreamURL string        `json:"stream_url" env:"WS_URL"`
	NATS      NATSConfig    `json:"nats"       envPrefix:"NATS_"`
	Publish   PublishConfig `json:"publish"    envPrefix:"PUBLISH_"`
	Image     ImageConfig   `json:"image"      envPrefix:"IMAGE_"`
}

// DefaultConfig returns a configuration with all defaults applied except the
// endpoints, which have no safe default.
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Publish: PublishConfig{
			Enabled:         true,
			Topic:           DefaultPublishTopic,
			IntervalSeconds: DefaultPublishInterval,
		},
		Image: ImageConfig{
			LocalPath:   DefaultLocalImagePath,
			ExposedPath: DefaultExposedPath,
			MaxBytes:    DefaultMaxImageBytes,
		},
	}
}

// Load builds the configuration: defaults, then the JSON file at path (if
// non-empty), then PRINTBRIDGE_* environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "PRINTBRIDGE_"}); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and clamps out-of-range values to defaults.
func (c *Config) Validate() error {
	if c.StreamURL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"stream_url is required")
	}
	u, err := url.Parse(c.StreamURL)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "parse stream_url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("stream_url scheme must be ws or wss, got %q", u.Scheme))
	}

	if c.Publish.Enabled {
		if c.NATS.URL == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				"nats.url is required when publishing is enabled")
		}
		if strings.TrimSpace(c.Publish.Topic) == "" {
			c.Publish.Topic = DefaultPublishTopic
		}
	}

	// Non-positive values fall back rather than fail: the bridge must keep
	// running with a misconfigured cadence or budget.
	if c.Publish.IntervalSeconds <= 0 {
		c.Publish.IntervalSeconds = DefaultPublishInterval
	}
	if c.Image.MaxBytes <= 0 {
		c.Image.MaxBytes = DefaultMaxImageBytes
	}

	if c.Image.SourceURL != "" {
		iu, err := url.Parse(c.Image.SourceURL)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "parse image.source_url")
		}
		if iu.Scheme != "http" && iu.Scheme != "https" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("image.source_url scheme must be http or https, got %q", iu.Scheme))
		}
		if c.Image.LocalPath == "" {
			c.Image.LocalPath = DefaultLocalImagePath
		}
	}

	return nil
}
