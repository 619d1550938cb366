package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// safeString coerces a raw value to a string, falling back to def for nil.
func safeString(v any, def string) string {
	switch t := v.(type) {
	case nil:
		return def
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// safeFloat coerces a raw value to a float64. Booleans are invalid (never
// 0/1), string values are parsed after trimming whitespace, and non-finite
// results fall back to def.
func safeFloat(v any, def float64) float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return def
	case bool:
		return def
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// safeInt coerces a raw value to an int with the same rules as safeFloat;
// fractional values truncate toward zero.
func safeInt(v any, def int) int {
	switch t := v.(type) {
	case nil:
		return def
	case bool:
		return def
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case uint:
		return int(t)
	case uint64:
		return int(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return def
		}
		return int(t)
	case float32:
		return safeInt(float64(t), def)
	case json.Number, string:
		f := safeFloat(v, math.NaN())
		if math.IsNaN(f) {
			return def
		}
		return int(f)
	default:
		return def
	}
}

// clamp bounds value into [minimum, maximum].
func clamp(value, minimum, maximum float64) float64 {
	return math.Max(minimum, math.Min(maximum, value))
}

// baseName returns the final path component of s, or empty. Printer paths use
// forward slashes regardless of host OS.
func baseName(s string) string {
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// Sanitize derives a typed Snapshot from accumulated raw state. Pure and
// deterministic: identical input always yields the identical snapshot.
// imageURL is copied verbatim from configuration, never derived from input.
func Sanitize(state map[string]any, imageURL string) Snapshot {
	layer := max(0, safeInt(state[KeyLayer], 0))
	return Snapshot{
		Progress:     clamp(safeFloat(state[KeyProgress], 0.0), 0.0, 100.0),
		Layer:        layer,
		TotalLayers:  max(layer, safeInt(state[KeyTotalLayers], 0)),
		Elapsed:      max(0, safeInt(state[KeyJobTime], 0)),
		Remaining:    max(0, safeInt(state[KeyLeftTime], 0)),
		Filename:     baseName(safeString(state[KeyFileName], "")),
		NozzleTemp:   safeFloat(state[KeyNozzleTemp], 0.0),
		BedTemp:      safeFloat(state[KeyBedTemp], 0.0),
		UsedFilament: max(0, safeInt(state[KeyUsedMaterial], 0)),
		ImageURL:     imageURL,
	}
}
