package telemetry

import "math"

// Absolute-difference tolerances per numeric field. A field changes only when
// the delta is strictly greater than its tolerance; a delta equal to the
// tolerance does not count.
const (
	progressTolerance = 0.5
	tempTolerance     = 0.5
	countTolerance    = 1.0
)

// MeaningfulChange reports whether new differs enough from old to warrant
// forwarding. When no prior snapshot was forwarded (oldValid false) the
// answer is always true. Filename and ImageURL compare by exact equality.
func MeaningfulChange(new, old Snapshot, oldValid bool) bool {
	if !oldValid {
		return true
	}

	if math.Abs(new.Progress-old.Progress) > progressTolerance {
		return true
	}
	if math.Abs(new.NozzleTemp-old.NozzleTemp) > tempTolerance {
		return true
	}
	if math.Abs(new.BedTemp-old.BedTemp) > tempTolerance {
		return true
	}
	if math.Abs(float64(new.Layer-old.Layer)) > countTolerance {
		return true
	}
	if math.Abs(float64(new.TotalLayers-old.TotalLayers)) > countTolerance {
		return true
	}
	if math.Abs(float64(new.Elapsed-old.Elapsed)) > countTolerance {
		return true
	}
	if math.Abs(float64(new.Remaining-old.Remaining)) > countTolerance {
		return true
	}
	if math.Abs(float64(new.UsedFilament-old.UsedFilament)) > countTolerance {
		return true
	}

	return new.Filename != old.Filename || new.ImageURL != old.ImageURL
}
