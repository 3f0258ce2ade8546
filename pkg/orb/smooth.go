package orb

import "math"

// Smooth moves prev toward in by factor. With factor in (0,1] the result
// stays between prev and in, and equals in when factor is 1.
func Smooth(prev, in, factor float64) float64 {
	return prev + (in-prev)*factor
}

// Compress boosts quiet levels and caps loud ones. It is the curve applied
// to mic volume before it drives motion.
func Compress(v float64) float64 {
	return math.Pow(clamp01(v), 0.7)
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pulse maps a phase onto [0,1].
func pulse(phase float64) float64 {
	return math.Sin(phase)*0.5 + 0.5
}
