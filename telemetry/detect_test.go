package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseSnapshot() Snapshot {
	return Snapshot{
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
}

func TestChangeAgainstEmptyPriorIsAlwaysMeaningful(t *testing.T) {
	assert.True(t, MeaningfulChange(Snapshot{}, Snapshot{}, false))
	assert.True(t, MeaningfulChange(baseSnapshot(), Snapshot{}, false))
}

func TestIdenticalSnapshotsAreNotMeaningful(t *testing.T) {
	assert.False(t, MeaningfulChange(baseSnapshot(), baseSnapshot(), true))
}

func TestTemperatureToleranceBoundary(t *testing.T) {
	old := baseSnapshot()

	// Delta exactly equal to the tolerance does not count.
	atTolerance := old
	atTolerance.NozzleTemp = old.NozzleTemp + 0.5
	assert.False(t, MeaningfulChange(atTolerance, old, true))

	// Tolerance plus epsilon does.
	justOver := old
	justOver.NozzleTemp = old.NozzleTemp + 0.51
	assert.True(t, MeaningfulChange(justOver, old, true))

	// Same rule for the bed.
	bed := old
	bed.BedTemp = old.BedTemp - 0.5
	assert.False(t, MeaningfulChange(bed, old, true))
	bed.BedTemp = old.BedTemp - 0.6
	assert.True(t, MeaningfulChange(bed, old, true))
}

func TestProgressToleranceBoundary(t *testing.T) {
	old := baseSnapshot()

	within := old
	within.Progress = old.Progress + 0.5
	assert.False(t, MeaningfulChange(within, old, true))

	over := old
	over.Progress = old.Progress + 0.6
	assert.True(t, MeaningfulChange(over, old, true))
}

func TestCountToleranceBoundary(t *testing.T) {
	old := baseSnapshot()

	// +1 on integer fields sits exactly at the tolerance: not meaningful.
	oneOff := old
	oneOff.Elapsed++
	oneOff.Remaining++
	oneOff.Layer++
	oneOff.TotalLayers++
	oneOff.UsedFilament++
	assert.False(t, MeaningfulChange(oneOff, old, true))

	twoOff := old
	twoOff.Elapsed += 2
	assert.True(t, MeaningfulChange(twoOff, old, true))

	layers := old
	layers.Layer += 2
	layers.TotalLayers += 2
	assert.True(t, MeaningfulChange(layers, old, true))
}

func TestStringFieldsCompareExactly(t *testing.T) {
	old := baseSnapshot()

	renamed := old
	renamed.Filename = "other.gcode"
	assert.True(t, MeaningfulChange(renamed, old, true))

	moved := old
	moved.ImageURL = "/local/images/other.png"
	assert.True(t, MeaningfulChange(moved, old, true))
}
