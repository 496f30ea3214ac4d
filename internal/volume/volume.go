package volume

import "math"

// The user-facing loudness scale runs from 1 to 11. Levels 1-10 map linearly
// onto a gain ratio with level 10 at unity (same loudness as the main mix).
// The stretch from 10 to 11 blends linearly towards a fixed boost ratio above
// unity, so level 11 plays the overlay louder than the mix itself.
const (
	MinLevel = 1.0
	MaxLevel = 11.0

	// DefaultLevel is the loudness applied to newly created music rules.
	DefaultLevel = 4.0

	unityLevel = 10.0
	boostRatio = 2.0

	// FloorDB is the lowest gain ever emitted; a non-positive ratio is
	// clamped here instead of producing -Inf.
	FloorDB = -60.0
)

// Clamp confines a loudness level to the supported 1-11 range.
func Clamp(level float64) float64 {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// LevelToDB converts a 1-11 loudness level to a gain in decibels.
func LevelToDB(level float64) float64 {
	level = Clamp(level)

	var ratio float64
	if level <= unityLevel {
		ratio = level / unityLevel
	} else {
		ratio = 1 + (level-unityLevel)*(boostRatio-1)
	}

	if ratio <= 0 {
		return FloorDB
	}
	db := 20 * math.Log10(ratio)
	if db < FloorDB {
		return FloorDB
	}
	return db
}

// DBToLevel converts a gain in decibels back to the 1-11 loudness level.
// The result is clamped to the branch the gain ratio falls into, so values
// round-trip through LevelToDB within floating point tolerance.
func DBToLevel(db float64) float64 {
	ratio := math.Pow(10, db/20)

	if ratio >= 1 {
		level := unityLevel + (ratio-1)/(boostRatio-1)
		return clampRange(level, unityLevel, MaxLevel)
	}

	return clampRange(ratio*unityLevel, MinLevel, unityLevel)
}

func clampRange(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
