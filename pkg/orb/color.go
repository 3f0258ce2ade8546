package orb

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"math"
	"strings"
)

// Color is an opaque sRGB color. Opacity is applied at draw time.
type Color struct {
	R, G, B uint8
}

// ParseColor parses "#RRGGBB", "RRGGBB" or the short "#RGB" form.
func ParseColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("orb: bad color %q", s)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return Color{}, fmt.Errorf("orb: bad color %q: %w", s, err)
	}
	return Color{R: b[0], G: b[1], B: b[2]}, nil
}

// MustColor is ParseColor for package-level tables.
func MustColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex returns the "#RRGGBB" form.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// HexAlpha returns "#RRGGBBAA" with alpha in [0,1].
func (c Color) HexAlpha(alpha float64) string {
	return fmt.Sprintf("%s%02X", c.Hex(), alphaByte(alpha))
}

// Lerp blends c toward to by t in [0,1].
func (c Color) Lerp(to Color, t float64) Color {
	t = clamp01(t)
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return Color{R: mix(c.R, to.R), G: mix(c.G, to.G), B: mix(c.B, to.B)}
}

// Scale multiplies each channel by f, clamped to the valid range.
func (c Color) Scale(f float64) Color {
	s := func(v uint8) uint8 {
		return uint8(clamp(float64(v)*f, 0, 255))
	}
	return Color{R: s(c.R), G: s(c.G), B: s(c.B)}
}

// Alpha returns c with the given opacity for drawing.
func (c Color) Alpha(alpha float64) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: alphaByte(alpha)}
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func alphaByte(alpha float64) uint8 {
	return uint8(math.Floor(clamp01(alpha) * 255))
}

var white = Color{R: 255, G: 255, B: 255}
