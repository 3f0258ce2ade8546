package orb

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

// Variant identifies one of the orb skins.
type Variant string

// The twelve orb variants.
const (
	Fluid    Variant = "Fluid Orb"
	Particle Variant = "Particle Orb"
	Plasma   Variant = "Plasma Orb"
	Crystal  Variant = "Crystal Orb"
	Nebula   Variant = "Nebula Orb"
	Wave     Variant = "Wave Orb"
	Energy   Variant = "Energy Orb"
	Vortex   Variant = "Vortex Orb"
	Aurora   Variant = "Aurora Orb"
	Swirl    Variant = "Swirl Orb"
	Dot      Variant = "Dot Orb"
	Bubble   Variant = "Bubble Orb"
)

type palette struct {
	base, glow string
}

type builder func(rng *rand.Rand, cfg Config) simulation

type entry struct {
	palette palette
	build   builder
}

var registry = map[Variant]entry{
	Fluid:    {palette{"#50C878", "#40E0D0"}, newFluid},
	Particle: {palette{"#4B0082", "#9400D3"}, newParticles},
	Plasma:   {palette{"#00FFFF", "#4169E1"}, newPlasma},
	Crystal:  {palette{"#FF1493", "#4B0082"}, newCrystal},
	Nebula:   {palette{"#8A2BE2", "#9932CC"}, newNebula},
	Wave:     {palette{"#00CED1", "#4682B4"}, newWave},
	Energy:   {palette{"#FFD700", "#FFA500"}, newEnergy},
	Vortex:   {palette{"#9932CC", "#8A2BE2"}, newVortex},
	Aurora:   {palette{"#E6C7E6", "#8B4B8B"}, newAurora},
	Swirl:    {palette{"#FF69B4", "#9370DB"}, newSwirl},
	Dot:      {palette{"#FF1493", "#FF69B4"}, newDots},
	Bubble:   {palette{"#87CEEB", "#9370DB"}, newBubble},
}

// Variants returns every variant in menu order.
func Variants() []Variant {
	return []Variant{
		Fluid, Particle, Plasma, Crystal, Nebula, Wave,
		Energy, Vortex, Aurora, Swirl, Dot, Bubble,
	}
}

// ParseVariant accepts a display id such as "Wave Orb" or a short id such
// as "wave".
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if _, ok := registry[v]; ok {
		return v, nil
	}
	short := strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "orb"))
	for _, candidate := range Variants() {
		if strings.ToLower(strings.TrimSuffix(string(candidate), " Orb")) == short {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// DefaultConfig returns the default palette and motion profile of v.
func DefaultConfig(v Variant) (Config, error) {
	e, ok := registry[v]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	return Config{
		Radius:     DefaultRadius,
		BaseColor:  MustColor(e.palette.base),
		GlowColor:  MustColor(e.palette.glow),
		PulseSpeed: DefaultPulseSpeed,
		MinOpacity: DefaultMinOpacity,
		MaxOpacity: DefaultMaxOpacity,
	}, nil
}

type options struct {
	fps    int
	seed   uint64
	logger *slog.Logger
}

// Option configures New.
type Option func(*options)

// WithFrameRate sets the draw loop rate.
func WithFrameRate(fps int) Option {
	return func(o *options) { o.fps = fps }
}

// WithSeed fixes the layout of randomly placed elements.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds an orb of the given variant on surface. A nil cfg selects the
// variant's defaults. The orb is not started.
func New(v Variant, surface *Surface, cfg *Config, opts ...Option) (*Orb, error) {
	e, ok := registry[v]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	if !surface.valid() {
		return nil, ErrNoSurface
	}

	var c Config
	if cfg == nil {
		c, _ = DefaultConfig(v)
	} else {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	o := options{
		fps:    DefaultFrameRate,
		seed:   uint64(time.Now().UnixNano()),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Orb{
		variant: v,
		cfg:     c,
		surface: surface,
		ticker:  NewTicker(surface, o.fps),
		sim:     e.build(newRand(o.seed), c),
		log:     o.logger.With("component", "orb"),
	}, nil
}
