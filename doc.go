// Package printbridge bridges a 3D printer's push telemetry to NATS and
// local observers.
//
// # Architecture
//
// One bridge instance supervises one printer. A single goroutine owns the
// WebSocket connection and drives every inbound frame through a sequential
// pipeline, so the accumulated telemetry state needs no locking:
//
//	┌─────────────────────────────────────┐
//	│       ConnectionSupervisor          │  dial, read, backoff,
//	│            (bridge)                 │  reconnect, stop
//	└──────────────────┬──────────────────┘
//	                   │ per frame
//	┌──────────────────▼──────────────────┐
//	│   merge → sanitize → detect         │  telemetry package
//	└──────────────────┬──────────────────┘
//	                   │ on meaningful change / interval
//	┌─────────┬────────▼────────┬─────────┐
//	│  NATS   │   local Store   │  image  │
//	│ publish │   (observers)   │  fetch  │
//	└─────────┴─────────────────┴─────────┘
//
// Frames are partial: each one may report any subset of the printer's status
// fields. The telemetry package merges them into a cached state
// (last-write-wins per whitelisted key), sanitizes the cache into a typed
// Snapshot with clamped and defaulted fields, and compares it against the
// last forwarded snapshot using per-field tolerances. Only meaningful changes
// reach the NATS sink; an interval-driven refresh keeps local observers
// current between them.
//
// The start of a new print job (a fresh filename, re-armed whenever progress
// reports zero) triggers a bounded, content-type-validated download of the
// printer's preview image, written atomically so readers never see a partial
// file. At most one download runs at a time and a slow download never stalls
// frame ingestion.
//
// Publishing is best effort. Publish failures, image fetch failures and
// malformed frames are logged and counted but never terminate the bridge;
// only an explicit stop does.
package printbridge
