package noise

import "math"

const (
	// DBFloor is the quietest representable dBFS value; display level 0.
	DBFloor = -100.0
	// MaxLevel is the top of the display scale.
	MaxLevel = 100.0

	MinGain     = 0.25
	MaxGain     = 4.0
	DefaultGain = 1.0
)

// AmplitudeToDB converts an RMS amplitude (0..1) to dBFS after applying the
// gain multiplier. Silence and invalid input map to DBFloor.
func AmplitudeToDB(rms, gain float64) float64 {
	x := rms * ClampGain(gain)
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return DBFloor
	}
	db := 20 * math.Log10(x)
	if db < DBFloor {
		return DBFloor
	}
	if db > 0 {
		return 0
	}
	return db
}

// DBToLevel maps dBFS onto the 0-100 display scale.
func DBToLevel(db, visualScale float64) float64 {
	return clamp((db-DBFloor)*sanitizeScale(visualScale), 0, MaxLevel)
}

// LevelToDB is the inverse of DBToLevel for in-range levels.
func LevelToDB(level, visualScale float64) float64 {
	return clamp(level, 0, MaxLevel)/sanitizeScale(visualScale) + DBFloor
}

// ClampGain keeps the gain multiplier within 0.25..4; non-finite values reset to 1.
func ClampGain(g float64) float64 {
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return DefaultGain
	}
	return clamp(g, MinGain, MaxGain)
}

func sanitizeScale(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return 1
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
