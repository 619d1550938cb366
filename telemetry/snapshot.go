// Package telemetry implements the bridge's frame pipeline core: merging
// partial telemetry fragments into a cached state, sanitizing the cache into
// typed snapshots, and deciding when a snapshot differs enough to forward.
package telemetry

import (
	"encoding/json"
)

// RawFragment is one decoded inbound telemetry message. Fragments may report
// any subset of the whitelisted keys; unknown keys are ignored and never
// stored.
type RawFragment map[string]any

// Whitelisted fragment keys. Everything else in a fragment is dropped.
const (
	KeyProgress     = "printProgress"
	KeyLayer        = "layer"
	KeyTotalLayers  = "TotalLayer"
	KeyJobTime      = "printJobTime"
	KeyLeftTime     = "printLeftTime"
	KeyFileName     = "printFileName"
	KeyNozzleTemp   = "nozzleTemp"
	KeyBedTemp      = "bedTemp0"
	KeyUsedMaterial = "usedMaterialLength"
)

var fragmentKeys = []string{
	KeyProgress,
	KeyLayer,
	KeyTotalLayers,
	KeyJobTime,
	KeyLeftTime,
	KeyFileName,
	KeyNozzleTemp,
	KeyBedTemp,
	KeyUsedMaterial,
}

// Snapshot is the fully-merged, sanitized, typed view of printer status at one
// point in time. The JSON field set is the bridge's outbound wire format for
// both the publish channel and local observers.
//
// Invariants: Progress in [0,100]; TotalLayers >= Layer; Elapsed, Remaining
// and UsedFilament non-negative; Filename holds no directory components.
type Snapshot struct {
	Progress     float64 `json:"progress"`
	Layer        int     `json:"layer"`
	TotalLayers  int     `json:"total_layers"`
	Elapsed      int     `json:"elapsed"`
	Remaining    int     `json:"remaining"`
	Filename     string  `json:"filename"`
	NozzleTemp   float64 `json:"nozzle_temp"`
	BedTemp      float64 `json:"bed_temp"`
	UsedFilament int     `json:"used_filament"`
	ImageURL     string  `json:"image_url"`
}

// Marshal serializes the snapshot to its outbound JSON form.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}
