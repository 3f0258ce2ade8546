package orb

import (
	"math"
	"testing"
)

func TestSmoothStaysBetweenEndpoints(t *testing.T) {
	tests := []struct {
		prev, in float64
	}{
		{0, 1},
		{1, 0},
		{0.25, 0.75},
		{-3, 4},
		{0.5, 0.5},
	}
	factors := []float64{0.01, 0.05, 0.15, 0.3, 0.5, 0.99, 1}

	for _, tt := range tests {
		lo, hi := math.Min(tt.prev, tt.in), math.Max(tt.prev, tt.in)
		for _, f := range factors {
			got := Smooth(tt.prev, tt.in, f)
			if got < lo-1e-12 || got > hi+1e-12 {
				t.Errorf("Smooth(%v, %v, %v) = %v, outside [%v, %v]", tt.prev, tt.in, f, got, lo, hi)
			}
		}
		if got := Smooth(tt.prev, tt.in, 1); got != tt.in {
			t.Errorf("Smooth(%v, %v, 1) = %v, want %v", tt.prev, tt.in, got, tt.in)
		}
	}
}

func TestSmoothConverges(t *testing.T) {
	v := 0.0
	for i := 0; i < 200; i++ {
		v = Smooth(v, 1, MicSmoothing)
	}
	if math.Abs(v-1) > 1e-6 {
		t.Errorf("after 200 steps v = %v, want ~1", v)
	}
}

func TestCompress(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{1, 1},
		{2, 1},
		{0.5, math.Pow(0.5, 0.7)},
	}
	for _, tt := range tests {
		if got := Compress(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Compress(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if Compress(0.2) <= 0.2 {
		t.Error("Compress should lift quiet input")
	}
}
