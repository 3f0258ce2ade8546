package level

// peakThreshold is half of the byte range. Bins above it count as peaks.
const peakThreshold = 128

// Scale factors applied after the peak-emphasis average.
const (
	PlaybackScale = 1.5
	MicScale      = 1.0
)

// Amplitude reduces playback bins to [0,1].
func Amplitude(bins []byte) float64 {
	return reduce(bins, PlaybackScale)
}

// Volume reduces microphone bins to [0,1].
func Volume(bins []byte) float64 {
	return reduce(bins, MicScale)
}

// reduce averages the bins, boosts the average by the share of loud bins,
// and normalizes against half scale.
func reduce(bins []byte, scale float64) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum, peaks int
	for _, b := range bins {
		sum += int(b)
		if b > peakThreshold {
			peaks++
		}
	}
	n := float64(len(bins))
	avg := float64(sum) / n * (1 + float64(peaks)/n)
	return min(1, avg/128*scale)
}
