package orb

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/fogleman/gg"
)

// FrameSink receives every presented frame. The image is only valid for the
// duration of the call.
type FrameSink func(frame image.Image)

// Surface is the off-screen rendering target an orb draws into. At most one
// ticker may own a surface at a time.
type Surface struct {
	width, height int
	dc            *gg.Context
	sink          FrameSink
	frames        atomic.Uint64

	mu    sync.Mutex
	owner *Ticker

	lastMu sync.RWMutex
	last   *image.RGBA
}

// NewSurface creates a width x height surface. sink may be nil.
func NewSurface(width, height int, sink FrameSink) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrNoSurface
	}
	return &Surface{
		width:  width,
		height: height,
		dc:     gg.NewContext(width, height),
		sink:   sink,
		last:   image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

func (s *Surface) valid() bool {
	return s != nil && s.dc != nil && s.width > 0 && s.height > 0
}

// Size returns the surface dimensions in pixels.
func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Center returns the midpoint of the surface.
func (s *Surface) Center() (float64, float64) {
	return float64(s.width) / 2, float64(s.height) / 2
}

// Frames returns how many frames have been presented.
func (s *Surface) Frames() uint64 {
	return s.frames.Load()
}

// Busy reports whether a draw loop currently owns the surface.
func (s *Surface) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner != nil
}

// Snapshot returns a copy of the last presented frame.
func (s *Surface) Snapshot() *image.RGBA {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	out := image.NewRGBA(s.last.Rect)
	copy(out.Pix, s.last.Pix)
	return out
}

func (s *Surface) acquire(t *Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != nil && s.owner != t {
		return ErrSurfaceBusy
	}
	s.owner = t
	return nil
}

func (s *Surface) release(t *Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == t {
		s.owner = nil
	}
}

// render clears the surface, runs draw and presents the result.
// Only the owning ticker's goroutine calls it.
func (s *Surface) render(draw func(dc *gg.Context)) {
	s.dc.Identity()
	s.dc.ResetClip()
	s.dc.SetRGBA(0, 0, 0, 0)
	s.dc.Clear()
	draw(s.dc)

	src, ok := s.dc.Image().(*image.RGBA)
	if ok {
		s.lastMu.Lock()
		copy(s.last.Pix, src.Pix)
		s.lastMu.Unlock()
	}
	s.frames.Add(1)

	if s.sink != nil {
		s.sink(s.dc.Image())
	}
}
