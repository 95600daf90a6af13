package shared

import "math"

// Round2 rounds a score to 2 decimals, halves away from zero.
// The small nudge absorbs binary representation error (1.005*100 = 100.4999...).
func Round2(v float64) float64 {
	if v < 0 {
		return -Round2(-v)
	}
	return math.Round(v*100+1e-7) / 100
}

// InScoreRange reports whether v is on the 0-20 scale
func InScoreRange(v float64) bool {
	return !math.IsNaN(v) && v >= MinScore && v <= MaxScore
}
