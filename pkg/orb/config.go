package orb

import "fmt"

// Default motion profile shared by every variant.
const (
	DefaultRadius     = 150.0
	DefaultPulseSpeed = 0.02
	DefaultMinOpacity = 0.6
	DefaultMaxOpacity = 0.95
)

// Config is the visual configuration of one orb instance. A running orb
// never sees its config change; reconfiguring builds a new instance.
type Config struct {
	Radius     float64 `json:"radius"`
	BaseColor  Color   `json:"baseColor"`
	GlowColor  Color   `json:"glowColor"`
	PulseSpeed float64 `json:"pulseSpeed"`
	MinOpacity float64 `json:"minOpacity"`
	MaxOpacity float64 `json:"maxOpacity"`
}

// Validate checks the config invariants.
func (c Config) Validate() error {
	if c.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidConfig, c.Radius)
	}
	if c.PulseSpeed <= 0 {
		return fmt.Errorf("%w: pulse speed must be positive, got %v", ErrInvalidConfig, c.PulseSpeed)
	}
	if c.MinOpacity < 0 || c.MaxOpacity > 1 || c.MinOpacity > c.MaxOpacity {
		return fmt.Errorf("%w: opacity range [%v,%v]", ErrInvalidConfig, c.MinOpacity, c.MaxOpacity)
	}
	return nil
}

// Partial is a sparse config update. Nil fields keep the current value.
type Partial struct {
	Radius     *float64 `json:"radius,omitempty"`
	BaseColor  *Color   `json:"baseColor,omitempty"`
	GlowColor  *Color   `json:"glowColor,omitempty"`
	PulseSpeed *float64 `json:"pulseSpeed,omitempty"`
	MinOpacity *float64 `json:"minOpacity,omitempty"`
	MaxOpacity *float64 `json:"maxOpacity,omitempty"`
}

// Merge returns c with the set fields of p applied.
func (c Config) Merge(p Partial) Config {
	if p.Radius != nil {
		c.Radius = *p.Radius
	}
	if p.BaseColor != nil {
		c.BaseColor = *p.BaseColor
	}
	if p.GlowColor != nil {
		c.GlowColor = *p.GlowColor
	}
	if p.PulseSpeed != nil {
		c.PulseSpeed = *p.PulseSpeed
	}
	if p.MinOpacity != nil {
		c.MinOpacity = *p.MinOpacity
	}
	if p.MaxOpacity != nil {
		c.MaxOpacity = *p.MaxOpacity
	}
	return c
}

// opacity maps a [0,1] level onto the configured opacity range.
func (c Config) opacity(level float64) float64 {
	return c.MinOpacity + clamp01(level)*(c.MaxOpacity-c.MinOpacity)
}
