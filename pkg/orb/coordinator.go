package orb

import (
	"fmt"
	"log/slog"
	"sync"
)

// BuildFunc constructs a visualizer. It matches New and is replaceable in
// tests.
type BuildFunc func(v Variant, surface *Surface, cfg *Config) (Visualizer, error)

// State is a snapshot of the coordinator for the dashboard.
type State struct {
	Variant   Variant `json:"variant"`
	Config    Config  `json:"config"`
	Running   bool    `json:"running"`
	Speaking  bool    `json:"speaking"`
	Listening bool    `json:"listening"`
	Amplitude float64 `json:"amplitude"`
	MicVolume float64 `json:"micVolume"`
}

// Coordinator owns the single live visualizer on a surface and forwards
// signals to it. Swapping variants or reconfiguring replaces the instance.
type Coordinator struct {
	surface *Surface
	build   BuildFunc
	log     *slog.Logger

	mu        sync.Mutex
	live      Visualizer
	variant   Variant
	running   bool
	speaking  bool
	listening bool
	amplitude float64
	mic       float64
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithBuilder replaces the visualizer constructor.
func WithBuilder(b BuildFunc) CoordinatorOption {
	return func(c *Coordinator) { c.build = b }
}

// WithOrbOptions sets the options passed to New for every instance.
func WithOrbOptions(opts ...Option) CoordinatorOption {
	return func(c *Coordinator) {
		c.build = func(v Variant, s *Surface, cfg *Config) (Visualizer, error) {
			return New(v, s, cfg, opts...)
		}
	}
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = l }
}

// NewCoordinator creates a coordinator drawing on surface. Nothing is drawn
// until the first Swap.
func NewCoordinator(surface *Surface, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		surface: surface,
		log:     slog.Default(),
	}
	c.build = func(v Variant, s *Surface, cfg *Config) (Visualizer, error) {
		return New(v, s, cfg)
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "orb-coordinator")
	return c
}

// Swap replaces the live visualizer with a new instance of v using v's
// default config. On error the previous instance keeps running.
func (c *Coordinator) Swap(v Variant) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.replace(v, nil); err != nil {
		return err
	}
	c.log.Info("orb variant changed", "variant", v)
	return nil
}

// Reconfigure merges p into the live config and rebuilds the same variant.
func (c *Coordinator) Reconfigure(p Partial) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.live == nil {
		return ErrNoSurface
	}
	cfg := c.live.Config().Merge(p)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := c.replace(c.variant, &cfg); err != nil {
		return err
	}
	c.log.Info("orb reconfigured", "variant", c.variant)
	return nil
}

// replace builds first so a bad variant or config leaves the old orb alone.
// The old instance is fully stopped before the new one starts, so the
// surface never has two loops. Caller holds c.mu.
func (c *Coordinator) replace(v Variant, cfg *Config) error {
	next, err := c.build(v, c.surface, cfg)
	if err != nil {
		return fmt.Errorf("build %s: %w", v, err)
	}

	if c.live != nil {
		c.live.Stop()
	}

	next.SetSpeaking(false)
	next.SetListening(c.listening)
	if err := next.Start(); err != nil {
		c.live = nil
		c.running = false
		return fmt.Errorf("start %s: %w", v, err)
	}

	c.live = next
	c.variant = v
	c.running = true
	c.speaking = false
	return nil
}

// UpdateAmplitude forwards the playback amplitude.
func (c *Coordinator) UpdateAmplitude(value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amplitude = value
	if c.live != nil {
		c.live.UpdateAmplitude(value)
	}
}

// UpdateMicVolume forwards the mic volume to visualizers that accept it.
func (c *Coordinator) UpdateMicVolume(value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mic = value
	if c.live != nil {
		UpdateMicVolume(c.live, value)
	}
}

// SetSpeaking records and forwards the speaking flag.
func (c *Coordinator) SetSpeaking(speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speaking = speaking
	if c.live != nil {
		c.live.SetSpeaking(speaking)
	}
}

// SetListening records and forwards the listening flag.
func (c *Coordinator) SetListening(listening bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listening = listening
	if c.live != nil {
		c.live.SetListening(listening)
	}
}

// Stop halts the live visualizer. It is safe to call more than once.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != nil {
		c.live.Stop()
	}
	c.running = false
}

// Current returns the live visualizer, or nil.
func (c *Coordinator) Current() Visualizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// State returns a snapshot for display.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Variant:   c.variant,
		Running:   c.running,
		Speaking:  c.speaking,
		Listening: c.listening,
		Amplitude: c.amplitude,
		MicVolume: c.mic,
	}
	if c.live != nil {
		s.Config = c.live.Config()
	}
	return s
}
