package telemetry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFullFragment(t *testing.T) {
	// Scenario: one fully-populated status report maps field by field.
	state := map[string]any{
		KeyProgress:     45.2,
		KeyLayer:        10,
		KeyTotalLayers:  50,
		KeyJobTime:      120,
		KeyLeftTime:     300,
		KeyFileName:     "/sd/benchy.gcode",
		KeyNozzleTemp:   210.3,
		KeyBedTemp:      60.0,
		KeyUsedMaterial: 1500,
	}

	snap := Sanitize(state, "/local/images/3dprint.png")

	assert.Equal(t, Snapshot{
		Progress:     45.2,
		Layer:        10,
		TotalLayers:  50,
		Elapsed:      120,
		Remaining:    300,
		Filename:     "benchy.gcode",
		NozzleTemp:   210.3,
		BedTemp:      60.0,
		UsedFilament: 1500,
		ImageURL:     "/local/images/3dprint.png",
	}, snap)
}

func TestSanitizeClampsProgress(t *testing.T) {
	cases := map[string]struct {
		raw  any
		want float64
	}{
		"above range":  {150.0, 100.0},
		"below range":  {-3.0, 0.0},
		"in range":     {42.0, 42.0},
		"string value": {" 55.5 ", 55.5},
		"garbage":      {"n/a", 0.0},
		"nan":          {math.NaN(), 0.0},
		"inf":          {math.Inf(1), 0.0},
		"bool":         {true, 0.0},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			snap := Sanitize(map[string]any{KeyProgress: tc.raw}, "")
			assert.Equal(t, tc.want, snap.Progress)
			assert.GreaterOrEqual(t, snap.Progress, 0.0)
			assert.LessOrEqual(t, snap.Progress, 100.0)
		})
	}
}

func TestSanitizeTotalLayersNeverBelowLayer(t *testing.T) {
	snap := Sanitize(map[string]any{KeyLayer: 30, KeyTotalLayers: 10}, "")
	assert.Equal(t, 30, snap.Layer)
	assert.Equal(t, 30, snap.TotalLayers)

	snap = Sanitize(map[string]any{KeyLayer: 5, KeyTotalLayers: 50}, "")
	assert.Equal(t, 50, snap.TotalLayers)
}

func TestSanitizeFloorsDurationsAndCounts(t *testing.T) {
	snap := Sanitize(map[string]any{
		KeyJobTime:      -10,
		KeyLeftTime:     -1,
		KeyUsedMaterial: -500,
		KeyLayer:        -2,
	}, "")

	assert.Equal(t, 0, snap.Elapsed)
	assert.Equal(t, 0, snap.Remaining)
	assert.Equal(t, 0, snap.UsedFilament)
	assert.Equal(t, 0, snap.Layer)
}

func TestSanitizeFilenameBasenameOnly(t *testing.T) {
	cases := map[string]string{
		"/sd/subdir/model.gcode": "model.gcode",
		"model.gcode":            "model.gcode",
		"/sd/":                   "",
		"":                       "",
	}
	for raw, want := range cases {
		snap := Sanitize(map[string]any{KeyFileName: raw}, "")
		assert.Equal(t, want, snap.Filename, "raw %q", raw)
		assert.NotContains(t, snap.Filename, "/")
	}
}

func TestSanitizeEmptyStateUsesDefaults(t *testing.T) {
	snap := Sanitize(map[string]any{}, "/local/x.png")
	assert.Equal(t, Snapshot{ImageURL: "/local/x.png"}, snap)
}

func TestSanitizeIsDeterministic(t *testing.T) {
	state := map[string]any{KeyProgress: "33.3", KeyNozzleTemp: 201.5}
	first := Sanitize(state, "url")
	second := Sanitize(state, "url")
	assert.Equal(t, first, second)
}

func TestSafeIntCoercion(t *testing.T) {
	assert.Equal(t, 7, safeInt(7, 0))
	assert.Equal(t, 7, safeInt(7.9, 0))
	assert.Equal(t, 7, safeInt("7", 0))
	assert.Equal(t, 7, safeInt(" 7.5 ", 0))
	assert.Equal(t, 42, safeInt(nil, 42))
	assert.Equal(t, 42, safeInt(true, 42))
	assert.Equal(t, 42, safeInt("garbage", 42))
	assert.Equal(t, 42, safeInt(math.NaN(), 42))
	assert.Equal(t, 42, safeInt([]string{"x"}, 42))
}

func TestSafeFloatCoercion(t *testing.T) {
	assert.Equal(t, 1.5, safeFloat(1.5, 0))
	assert.Equal(t, 1.5, safeFloat(" 1.5 ", 0))
	assert.Equal(t, 3.0, safeFloat(3, 0))
	assert.Equal(t, 3.0, safeFloat(json.Number("3"), 0))
	assert.Equal(t, 9.9, safeFloat(nil, 9.9))
	assert.Equal(t, 9.9, safeFloat(false, 9.9))
	assert.Equal(t, 9.9, safeFloat("", 9.9))
	assert.Equal(t, 9.9, safeFloat(math.Inf(-1), 9.9))
}

func TestSnapshotWireFormat(t *testing.T) {
	snap := Snapshot{
		Progress:     45.2,
		Layer:        10,
		TotalLayers:  50,
		Elapsed:      120,
		Remaining:    300,
		Filename:     "benchy.gcode",
		NozzleTemp:   210.3,
		BedTemp:      60.0,
		UsedFilament: 1500,
		ImageURL:     "/local/images/3dprint.png",
	}

	data, err := snap.Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Exactly the ten outbound fields, nothing more.
	assert.Len(t, decoded, 10)
	for _, field := range []string{
		"progress", "layer", "total_layers", "elapsed", "remaining",
		"filename", "nozzle_temp", "bed_temp", "used_filament", "image_url",
	} {
		assert.Contains(t, decoded, field)
	}
	assert.Equal(t, 45.2, decoded["progress"])
	assert.Equal(t, "benchy.gcode", decoded["filename"])
}
