package orb

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/fogleman/gg"
)

// Errors returned by the package.
var (
	ErrNoSurface      = errors.New("orb: no valid rendering surface")
	ErrUnknownVariant = errors.New("orb: unknown orb type")
	ErrAlreadyRunning = errors.New("orb: animation already running")
	ErrSurfaceBusy    = errors.New("orb: surface already has a draw loop")
	ErrInvalidConfig  = errors.New("orb: invalid config")
)

// Visualizer is the contract shared by all orb variants.
type Visualizer interface {
	// UpdateAmplitude records the latest playback amplitude in [0,1].
	// It does not redraw.
	UpdateAmplitude(value float64)

	// SetSpeaking and SetListening select the animation regime.
	SetSpeaking(speaking bool)
	SetListening(listening bool)

	// Start begins the frame loop. Starting twice returns ErrAlreadyRunning.
	Start() error

	// Stop halts the frame loop. No frame is drawn after Stop returns.
	// Calling Stop more than once is safe.
	Stop()

	// Config returns a copy of the configuration.
	Config() Config

	Variant() Variant
}

// MicVolumeReceiver is implemented by visualizers that react to the
// microphone level.
type MicVolumeReceiver interface {
	UpdateMicVolume(value float64)
}

// UpdateMicVolume forwards volume to v if it supports the capability.
func UpdateMicVolume(v Visualizer, volume float64) {
	if r, ok := v.(MicVolumeReceiver); ok {
		r.UpdateMicVolume(volume)
	}
}

// MicSmoothing is the smoothing factor applied to incoming mic volume.
const MicSmoothing = 0.3

// inputs is the per-frame snapshot handed to a simulation.
type inputs struct {
	amplitude float64
	mic       float64
	speaking  bool
	listening bool
	cfg       Config
	cx, cy    float64
}

// regime reports which energy source drives this frame.
func (in inputs) regime() regime {
	switch {
	case in.speaking:
		return speakingRegime
	case in.listening:
		return listeningRegime
	default:
		return idleRegime
	}
}

type regime int

const (
	idleRegime regime = iota
	listeningRegime
	speakingRegime
)

// simulation is the variant-private part of an orb.
type simulation interface {
	// step advances one frame of motion.
	step(in inputs)
	// draw renders the current state.
	draw(dc *gg.Context, in inputs)
	// energy is the eased scalar chosen by the frame's energy branch.
	energy() float64
}

// Orb is a Visualizer backed by one variant simulation.
type Orb struct {
	variant Variant
	cfg     Config
	surface *Surface
	ticker  *Ticker
	sim     simulation
	log     *slog.Logger

	mu        sync.Mutex
	amplitude float64
	mic       float64
	speaking  bool
	listening bool
}

var _ Visualizer = (*Orb)(nil)
var _ MicVolumeReceiver = (*Orb)(nil)

// UpdateAmplitude records the latest playback amplitude.
func (o *Orb) UpdateAmplitude(value float64) {
	o.mu.Lock()
	o.amplitude = clamp01(value)
	o.mu.Unlock()
}

// UpdateMicVolume smooths and records the latest microphone level.
func (o *Orb) UpdateMicVolume(value float64) {
	o.mu.Lock()
	o.mic = Smooth(o.mic, clamp01(value), MicSmoothing)
	o.mu.Unlock()
}

// SetSpeaking sets the speaking flag.
func (o *Orb) SetSpeaking(speaking bool) {
	o.mu.Lock()
	o.speaking = speaking
	o.mu.Unlock()
}

// SetListening sets the listening flag.
func (o *Orb) SetListening(listening bool) {
	o.mu.Lock()
	o.listening = listening
	o.mu.Unlock()
}

// Start begins drawing frames on the surface.
func (o *Orb) Start() error {
	if err := o.ticker.Start(o.frame); err != nil {
		return fmt.Errorf("start %s: %w", o.variant, err)
	}
	o.log.Debug("orb started", "variant", o.variant)
	return nil
}

// Stop halts the frame loop and releases the surface.
func (o *Orb) Stop() {
	if o.ticker.Stop() {
		o.log.Debug("orb stopped", "variant", o.variant)
	}
}

// Running reports whether the frame loop is active.
func (o *Orb) Running() bool {
	return o.ticker.Running()
}

// Config returns a copy of the configuration.
func (o *Orb) Config() Config {
	return o.cfg
}

// Variant returns the variant identifier.
func (o *Orb) Variant() Variant {
	return o.variant
}

func (o *Orb) snapshot() inputs {
	o.mu.Lock()
	defer o.mu.Unlock()
	cx, cy := o.surface.Center()
	return inputs{
		amplitude: o.amplitude,
		mic:       o.mic,
		speaking:  o.speaking,
		listening: o.listening,
		cfg:       o.cfg,
		cx:        cx,
		cy:        cy,
	}
}

// frame runs one step and draw. It is only called by the ticker goroutine.
func (o *Orb) frame() {
	in := o.snapshot()
	o.sim.step(in)
	o.surface.render(func(dc *gg.Context) {
		o.sim.draw(dc, in)
	})
}

// newRand returns the generator used for a variant's initial layout.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
