package conv

import "github.com/cwbudde/algo-vecmath"

// NormalizePeak scales x in place so its peak absolute value is 1.0 when the
// peak exceeds 1.0. Quieter signals are left untouched. It returns the gain
// that was applied.
func NormalizePeak(x []float64) float64 {
	if len(x) == 0 {
		return 1
	}

	peak := vecmath.MaxAbs(x)
	if peak <= 1 {
		return 1
	}

	gain := 1 / peak
	vecmath.ScaleBlockInPlace(x, gain)

	return gain
}
