package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	nebulaClouds = 50
	nebulaEase   = 0.08
)

type cloud struct {
	size   float64
	alpha  float64
	phase  float64
	speed  float64
	orbit  float64
	angle  float64
	x, y  float64
}

// nebula is a slowly orbiting mass of soft cloud puffs. Activity ramps the
// orbit speed and wave height rather than switching them.
type nebula struct {
	clouds         [nebulaClouds]cloud
	time           float64
	colorPhase     float64
	colorIntensity float64
	speedIntensity float64
	level          float64
}

func newNebula(rng *rand.Rand, cfg Config) simulation {
	n := &nebula{}
	for i := range n.clouds {
		angle := rng.Float64() * 2 * math.Pi
		orbit := rng.Float64() * cfg.Radius * 0.8
		n.clouds[i] = cloud{
			size:  20 + rng.Float64()*40,
			alpha: 0.1 + rng.Float64()*0.3,
			phase: rng.Float64() * 2 * math.Pi,
			speed: 0.05 + rng.Float64()*0.1,
			orbit: orbit,
			angle: angle,
		}
	}
	return n
}

func (n *nebula) step(in inputs) {
	lvl := sourceLevel(in, n.time*4, 0.3)
	n.level = Smooth(n.level, lvl, nebulaEase)

	colorTarget, speedTarget := 0.0, 0.0
	if in.speaking {
		colorTarget, speedTarget = 1, 1
	}
	n.colorIntensity = Smooth(n.colorIntensity, colorTarget, 0.05)
	n.speedIntensity = Smooth(n.speedIntensity, speedTarget, 0.03)

	tm := lerp(0.2, 1, n.speedIntensity) * (1 + n.level*0.5)
	n.time += in.cfg.PulseSpeed * 0.3 * tm * (1 + n.level)
	n.colorPhase += 0.003 * tm

	speedMul := lerp(0.2+n.level*0.3, 1+n.level+n.colorIntensity, n.speedIntensity)
	waveAmp := lerp(5+n.level*8, 10+n.level*20, n.speedIntensity)
	orbitSpeed := lerp(0.02+n.level*0.03, 0.1+n.level*0.1, n.speedIntensity)
	for i := range n.clouds {
		c := &n.clouds[i]
		c.phase += c.speed * speedMul * 0.3
		c.angle += orbitSpeed * c.speed
		r := c.orbit + math.Sin(c.phase)*waveAmp
		c.x = math.Cos(c.angle) * r
		c.y = math.Sin(c.angle) * r
	}
}

func (n *nebula) energy() float64 {
	return n.level
}

func (n *nebula) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	glow(dc, in.cx, in.cy, cfg.Radius, cfg.BaseColor, 0.2+n.level*0.15)

	for i, c := range n.clouds {
		x, y := in.cx+c.x, in.cy+c.y
		size := c.size * (1 + n.level*0.7)
		shade := cfg.BaseColor.Lerp(cfg.GlowColor, pulse(n.colorPhase*10+float64(i)))
		g := gg.NewRadialGradient(x, y, 0, x, y, size)
		g.AddColorStop(0, shade.Alpha(c.alpha*(0.7+n.colorIntensity*0.3)))
		g.AddColorStop(1, shade.Alpha(0))
		dc.SetFillStyle(g)
		dc.DrawCircle(x, y, size)
		dc.Fill()
	}

	edge := gg.NewRadialGradient(in.cx, in.cy, cfg.Radius*0.7, in.cx, in.cy, cfg.Radius)
	edge.AddColorStop(0, cfg.GlowColor.Alpha(0))
	edge.AddColorStop(1, cfg.GlowColor.Alpha(0.1+n.level*0.15))
	dc.SetFillStyle(edge)
	dc.DrawCircle(in.cx, in.cy, cfg.Radius)
	dc.Fill()
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
