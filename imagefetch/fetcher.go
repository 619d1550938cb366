// Package imagefetch downloads the per-job preview image: a bounded,
// content-type-validated, chunked HTTP GET written to a temporary file and
// atomically renamed onto the destination. Readers of the destination see
// either the previous complete image or the new complete image, never a
// partial write.
package imagefetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/printbridge/component"
	"github.com/c360/printbridge/errors"
	"github.com/c360/printbridge/metric"
)

const (
	requestTimeout  = 5 * time.Second
	chunkBytes      = 64 * 1024
	defaultMaxBytes = 5 * 1024 * 1024
)

// DefaultAllowedContentTypes are the declared image types accepted from the
// printer; image/jpg is a common alias for image/jpeg.
var DefaultAllowedContentTypes = []string{"image/png", "image/jpeg", "image/jpg"}

// Config holds the fetcher settings
type Config struct {
	// SourceURL is the snapshot endpoint; empty disables fetching entirely.
	SourceURL string
	// DestPath is the local file replaced atomically on success.
	DestPath string
	// MaxBytes bounds the download; non-positive falls back to 5 MiB.
	MaxBytes int64
	// AllowedContentTypes defaults to DefaultAllowedContentTypes when empty.
	AllowedContentTypes []string
}

// Metrics holds Prometheus metrics for the fetcher
type Metrics struct {
	fetchesTotal *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "printbridge",
			Subsystem: "imagefetch",
			Name:      "fetches_total",
			Help:      "Total image fetch attempts by outcome",
		}, []string{"component", "outcome"}),
	}

	_ = registry.RegisterCounterVec(componentName, "fetches", metrics.fetchesTotal)

	return metrics
}

// Fetcher downloads the preview image for a print job
type Fetcher struct {
	config  Config
	allowed map[string]struct{}
	client  *http.Client
	logger  *slog.Logger
	metrics *Metrics
}

// NewFetcher creates a fetcher from configuration. The destination's parent
// directory is created eagerly so the first fetch does not fail on a missing
// path.
func NewFetcher(config Config, deps component.Dependencies) *Fetcher {
	if config.MaxBytes <= 0 {
		config.MaxBytes = defaultMaxBytes
	}

	types := config.AllowedContentTypes
	if len(types) == 0 {
		types = DefaultAllowedContentTypes
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	if config.DestPath != "" {
		if dir := filepath.Dir(config.DestPath); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
	}

	return &Fetcher{
		config:  config,
		allowed: allowed,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  deps.GetLoggerWithComponent("imagefetch"),
		metrics: newMetrics(deps.MetricsRegistry, "imagefetch"),
	}
}

// Enabled reports whether a source URL is configured.
func (f *Fetcher) Enabled() bool {
	return f.config.SourceURL != ""
}

func (f *Fetcher) trackOutcome(outcome string) {
	if f.metrics != nil {
		f.metrics.fetchesTotal.WithLabelValues("imagefetch", outcome).Inc()
	}
}

// Fetch downloads the snapshot image once. Every failure category is logged
// and returned as a classified error; callers swallow it so a failed fetch
// never interrupts telemetry processing. On failure the destination file is
// left untouched and no temporary file remains.
func (f *Fetcher) Fetch(ctx context.Context) error {
	if !f.Enabled() {
		f.logger.Debug("No image source configured; skipping fetch")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.SourceURL, nil)
	if err != nil {
		f.trackOutcome("request_error")
		f.logger.Warn("Building image request failed", "error", err)
		return errors.WrapInvalid(err, "Fetcher", "Fetch", "build request")
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		f.trackOutcome("network_error")
		f.logger.Warn("Error downloading image", "error", err)
		return errors.WrapTransient(err, "Fetcher", "Fetch", "request image")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.trackOutcome("bad_status")
		f.logger.Warn("Image request returned non-success status", "status", resp.StatusCode)
		return errors.WrapTransient(
			fmt.Errorf("%w: HTTP %d", errors.ErrFetchBadStatus, resp.StatusCode),
			"Fetcher", "Fetch", "check status")
	}

	// Media type only, parameters stripped, case-insensitive. An absent
	// header is tolerated.
	contentType := strings.ToLower(strings.TrimSpace(
		strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0]))
	if contentType != "" {
		if _, ok := f.allowed[contentType]; !ok {
			f.trackOutcome("bad_content_type")
			f.logger.Warn("Unexpected image content type; aborting download",
				"content_type", contentType)
			return errors.WrapTransient(
				fmt.Errorf("%w: %s", errors.ErrFetchBadContentType, contentType),
				"Fetcher", "Fetch", "check content type")
		}
	}

	written, err := f.streamToTemp(resp.Body)
	if err != nil {
		return err
	}

	f.trackOutcome("success")
	f.logger.Info("Image downloaded and saved", "bytes", written, "path", f.config.DestPath)
	return nil
}

// streamToTemp copies the body into a temporary sibling of the destination in
// fixed-size chunks, enforcing the byte budget, then renames it into place.
func (f *Fetcher) streamToTemp(body io.Reader) (int64, error) {
	tempPath := f.config.DestPath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		f.trackOutcome("fs_error")
		f.logger.Warn("Cannot create temporary image file", "path", tempPath, "error", err)
		return 0, errors.WrapTransient(err, "Fetcher", "streamToTemp", "create temp file")
	}

	discard := func() {
		file.Close()
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			f.logger.Warn("Cannot remove partial image file", "path", tempPath, "error", err)
		}
	}

	var written int64
	buf := make([]byte, chunkBytes)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > f.config.MaxBytes {
				discard()
				f.trackOutcome("over_budget")
				f.logger.Warn("Image exceeded byte budget; discarding partial download",
					"max_bytes", f.config.MaxBytes)
				return 0, errors.WrapTransient(errors.ErrFetchOverBudget,
					"Fetcher", "streamToTemp", "enforce byte budget")
			}
			if _, err := file.Write(buf[:n]); err != nil {
				discard()
				f.trackOutcome("fs_error")
				f.logger.Warn("Writing image chunk failed", "error", err)
				return 0, errors.WrapTransient(err, "Fetcher", "streamToTemp", "write chunk")
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			discard()
			f.trackOutcome("network_error")
			f.logger.Warn("Reading image body failed", "error", readErr)
			return 0, errors.WrapTransient(readErr, "Fetcher", "streamToTemp", "read body")
		}
	}

	if err := file.Close(); err != nil {
		discard()
		f.trackOutcome("fs_error")
		return 0, errors.WrapTransient(err, "Fetcher", "streamToTemp", "close temp file")
	}

	// Atomic replace: the destination is either the old complete image or
	// the new one.
	if err := os.Rename(tempPath, f.config.DestPath); err != nil {
		discard()
		f.trackOutcome("fs_error")
		f.logger.Warn("Cannot move image into place", "path", f.config.DestPath, "error", err)
		return 0, errors.WrapTransient(err, "Fetcher", "streamToTemp", "rename temp file")
	}

	return written, nil
}
