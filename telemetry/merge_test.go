package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeAccumulatesAcrossFragments(t *testing.T) {
	state := NewState()

	state.Merge(RawFragment{KeyProgress: 10.0, KeyNozzleTemp: 200.0})
	state.Merge(RawFragment{KeyBedTemp: 60.0})

	snap := state.Snapshot("")
	assert.Equal(t, 10.0, snap.Progress)
	assert.Equal(t, 200.0, snap.NozzleTemp)
	assert.Equal(t, 60.0, snap.BedTemp)
}

func TestMergeLastWriteWins(t *testing.T) {
	state := NewState()
	state.Merge(RawFragment{KeyProgress: 10.0})
	state.Merge(RawFragment{KeyProgress: 20.0})

	assert.Equal(t, 20.0, state.Snapshot("").Progress)
}

func TestMergeIgnoresUnknownKeys(t *testing.T) {
	state := NewState()
	state.Merge(RawFragment{"firmwareVersion": "1.2.3", KeyLayer: 4})

	assert.NotContains(t, state.cached, "firmwareVersion")
	assert.Equal(t, 4, state.Snapshot("").Layer)
}

func TestMergeReportsNewJobOnFirstFilename(t *testing.T) {
	state := NewState()

	assert.False(t, state.Merge(RawFragment{KeyProgress: 5.0}))
	assert.True(t, state.Merge(RawFragment{KeyFileName: "/sd/benchy.gcode"}))
	assert.Equal(t, "benchy.gcode", state.CurrentJob())

	// Same filename again: still the same job.
	assert.False(t, state.Merge(RawFragment{KeyFileName: "/sd/benchy.gcode"}))
}

func TestMergeProgressZeroClearsJobIdentity(t *testing.T) {
	state := NewState()
	assert.True(t, state.Merge(RawFragment{KeyFileName: "benchy.gcode", KeyProgress: 50.0}))

	// Job finished: progress reports zero. The cached filename is unchanged,
	// but the identity marker resets, so the very same filename starts a new
	// job on the next fragment.
	assert.True(t, state.Merge(RawFragment{KeyProgress: 0.0}))
	assert.Equal(t, "benchy.gcode", state.CurrentJob())
}

func TestMergeResetThenNewFilenameSameCall(t *testing.T) {
	state := NewState()
	assert.True(t, state.Merge(RawFragment{KeyFileName: "first.gcode", KeyProgress: 99.0}))

	// One fragment both ends job one and starts job two.
	assert.True(t, state.Merge(RawFragment{KeyProgress: 0.0, KeyFileName: "second.gcode"}))
	assert.Equal(t, "second.gcode", state.CurrentJob())
}

func TestMergeAbsentProgressDoesNotClear(t *testing.T) {
	state := NewState()
	state.Merge(RawFragment{KeyFileName: "benchy.gcode"})

	assert.False(t, state.Merge(RawFragment{KeyLayer: 12}))
	assert.Equal(t, "benchy.gcode", state.CurrentJob())
}

func TestMergeUnparsableProgressDoesNotClear(t *testing.T) {
	state := NewState()
	state.Merge(RawFragment{KeyFileName: "benchy.gcode"})

	// Garbage coerces to the non-zero fallback, not to 0.
	assert.False(t, state.Merge(RawFragment{KeyProgress: "garbage"}))
	assert.Equal(t, "benchy.gcode", state.CurrentJob())

	// Booleans are invalid numerics, never interpreted as 0.
	assert.False(t, state.Merge(RawFragment{KeyProgress: false}))
	assert.Equal(t, "benchy.gcode", state.CurrentJob())
}

func TestMergeEmptyFilenameNeverStartsJob(t *testing.T) {
	state := NewState()
	assert.False(t, state.Merge(RawFragment{KeyFileName: ""}))
	assert.False(t, state.Merge(RawFragment{KeyFileName: "/sd/"}))
	assert.Equal(t, "", state.CurrentJob())
}

func TestMergeFilenameChangeStartsNewJob(t *testing.T) {
	state := NewState()
	assert.True(t, state.Merge(RawFragment{KeyFileName: "a.gcode"}))
	assert.True(t, state.Merge(RawFragment{KeyFileName: "b.gcode"}))
	assert.Equal(t, "b.gcode", state.CurrentJob())
}
