// Package level turns audio into the scalar levels that drive the orb.
//
// An Analyser holds the most recent samples of a stream and produces
// byte-scaled frequency magnitudes. Amplitude and Volume reduce those bins
// to a single value in [0,1], and a Monitor samples the result at frame
// cadence.
package level

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyser defaults.
const (
	PlaybackFFTSize  = 2048
	MicFFTSize       = 256
	DefaultSmoothing = 0.7
	DefaultMinDB     = -70.0
	DefaultMaxDB     = -10.0
)

// Analyser keeps a ring of the last FFTSize samples and computes smoothed
// frequency magnitudes mapped onto 0..255.
type Analyser struct {
	size      int
	smoothing float64
	minDB     float64
	maxDB     float64
	window    []float64
	fft       *fourier.FFT

	mu     sync.Mutex
	ring   []float64
	pos    int
	frame  []float64
	coeffs []complex128
	prev   []float64
}

// AnalyserOption configures an Analyser.
type AnalyserOption func(*Analyser)

// WithSmoothing sets the time constant applied between frames.
func WithSmoothing(tau float64) AnalyserOption {
	return func(a *Analyser) { a.smoothing = tau }
}

// WithDecibels sets the range mapped onto 0..255.
func WithDecibels(minDB, maxDB float64) AnalyserOption {
	return func(a *Analyser) { a.minDB, a.maxDB = minDB, maxDB }
}

// NewAnalyser creates an analyser over fftSize samples. fftSize is rounded
// up to a power of two.
func NewAnalyser(fftSize int, opts ...AnalyserOption) *Analyser {
	n := 32
	for n < fftSize {
		n <<= 1
	}
	a := &Analyser{
		size:      n,
		smoothing: DefaultSmoothing,
		minDB:     DefaultMinDB,
		maxDB:     DefaultMaxDB,
		window:    blackman(n),
		fft:       fourier.NewFFT(n),
		ring:      make([]float64, n),
		frame:     make([]float64, n),
		coeffs:    make([]complex128, n/2+1),
		prev:      make([]float64, n/2),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Size returns the FFT size.
func (a *Analyser) Size() int { return a.size }

// BinCount returns the number of frequency bins, half the FFT size.
func (a *Analyser) BinCount() int { return a.size / 2 }

// Write appends mono PCM16 samples.
func (a *Analyser) Write(samples []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = float64(s) / 32768
		a.pos = (a.pos + 1) % a.size
	}
}

// Reset clears samples and smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.prev)
	a.pos = 0
}

// ByteFrequencyData fills dst with BinCount magnitudes and returns it.
// dst is reallocated when too short.
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	bins := a.size / 2
	if cap(dst) < bins {
		dst = make([]byte, bins)
	}
	dst = dst[:bins]

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.frame {
		a.frame[i] = a.ring[(a.pos+i)%a.size] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	scale := 255 / (a.maxDB - a.minDB)
	for i := 0; i < bins; i++ {
		mag := cmplx.Abs(a.coeffs[i]) / float64(a.size)
		a.prev[i] = a.smoothing*a.prev[i] + (1-a.smoothing)*mag

		db := math.Inf(-1)
		if a.prev[i] > 0 {
			db = 20 * math.Log10(a.prev[i])
		}
		v := (db - a.minDB) * scale
		switch {
		case v <= 0 || math.IsNaN(v):
			dst[i] = 0
		case v >= 255:
			dst[i] = 255
		default:
			dst[i] = byte(v)
		}
	}
	return dst
}

func blackman(n int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}
