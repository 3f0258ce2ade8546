package orb

import (
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"
)

func waitFrames(t *testing.T, s *Surface, n uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	start := s.Frames()
	for s.Frames() < start+n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d frames", n)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestEveryVariantDraws(t *testing.T) {
	for _, v := range Variants() {
		t.Run(string(v), func(t *testing.T) {
			var got atomic.Int32
			s, err := NewSurface(120, 120, func(image.Image) { got.Add(1) })
			if err != nil {
				t.Fatal(err)
			}
			o, err := New(v, s, nil, WithFrameRate(200), WithSeed(1))
			if err != nil {
				t.Fatal(err)
			}
			o.SetListening(true)
			o.UpdateMicVolume(0.6)
			if err := o.Start(); err != nil {
				t.Fatal(err)
			}
			waitFrames(t, s, 2)
			o.SetSpeaking(true)
			o.UpdateAmplitude(0.9)
			waitFrames(t, s, 2)
			o.Stop()
			if got.Load() == 0 {
				t.Error("sink never called")
			}
		})
	}
}

func TestStartTwice(t *testing.T) {
	s := newTestSurface(t)
	o, err := New(Wave, s, nil, WithFrameRate(200))
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	defer o.Stop()
	if err := o.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestSecondOrbOnBusySurface(t *testing.T) {
	s := newTestSurface(t)
	a, _ := New(Fluid, s, nil, WithFrameRate(200))
	b, _ := New(Plasma, s, nil, WithFrameRate(200))
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(); !errors.Is(err, ErrSurfaceBusy) {
		t.Errorf("err = %v, want ErrSurfaceBusy", err)
	}
	a.Stop()
	if err := b.Start(); err != nil {
		t.Errorf("start after release: %v", err)
	}
	b.Stop()
}

func TestStopIsFinal(t *testing.T) {
	s := newTestSurface(t)
	o, _ := New(Energy, s, nil, WithFrameRate(500))
	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	waitFrames(t, s, 3)
	o.Stop()
	o.Stop()

	n := s.Frames()
	time.Sleep(20 * time.Millisecond)
	if s.Frames() != n {
		t.Errorf("frames after stop: %d -> %d", n, s.Frames())
	}
	if o.Running() {
		t.Error("Running() after Stop")
	}
}

func TestSetListeningIdempotent(t *testing.T) {
	cfg, _ := DefaultConfig(Fluid)
	once, _ := New(Fluid, newTestSurface(t), &cfg, WithSeed(9))
	twice, _ := New(Fluid, newTestSurface(t), &cfg, WithSeed(9))

	once.SetListening(true)
	twice.SetListening(true)
	twice.SetListening(true)

	for i := 0; i < 30; i++ {
		once.UpdateMicVolume(0.4)
		twice.UpdateMicVolume(0.4)
		once.sim.step(once.snapshot())
		twice.sim.step(twice.snapshot())
	}
	if a, b := once.sim.energy(), twice.sim.energy(); a != b {
		t.Errorf("energy %v != %v", a, b)
	}
	if once.snapshot() != twice.snapshot() {
		t.Error("snapshots differ")
	}
}

func TestUpdateMicVolumeSmooths(t *testing.T) {
	o, _ := New(Bubble, newTestSurface(t), nil)
	o.UpdateMicVolume(1)
	if got := o.snapshot().mic; got != MicSmoothing {
		t.Errorf("mic = %v, want %v", got, MicSmoothing)
	}
	o.UpdateAmplitude(4)
	if got := o.snapshot().amplitude; got != 1 {
		t.Errorf("amplitude = %v, want clamped 1", got)
	}
}
