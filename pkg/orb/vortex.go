package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	vortexArms = 6
	vortexEase = 0.12
)

var (
	vortexTimeSpeed = rates{idle: 0.02, listening: 0.02, speaking: 0.04}
	vortexSpin      = rates{idle: 0.01, listening: 0.01, speaking: 0.02}
	vortexTwist     = rates{idle: 1, listening: 2, speaking: 3}
)

type spiralArm struct {
	rotation float64
	phase    float64
	speed    float64
	width    float64
	segments int
}

// vortex is a set of spiral arms winding around the center.
type vortex struct {
	arms     [vortexArms]spiralArm
	time     float64
	rotation float64
	level    float64
}

func newVortex(rng *rand.Rand, _ Config) simulation {
	v := &vortex{}
	for i := range v.arms {
		v.arms[i] = spiralArm{
			rotation: float64(i) / vortexArms * 2 * math.Pi,
			phase:    rng.Float64() * 2 * math.Pi,
			speed:    0.5 + rng.Float64()*0.5,
			width:    3 + rng.Float64()*3,
			segments: 50,
		}
	}
	return v
}

func (v *vortex) step(in inputs) {
	lvl := sourceLevel(in, v.time*2, 0.3)
	v.time += vortexTimeSpeed.pick(in) * (1 + lvl)
	v.rotation += vortexSpin.pick(in) * (1 + lvl)
	v.level = Smooth(v.level, lvl, vortexEase)
}

func (v *vortex) energy() float64 {
	return v.level
}

func (v *vortex) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	glow(dc, in.cx, in.cy, cfg.Radius, cfg.BaseColor.Lerp(cfg.GlowColor, v.level), 0.2+v.level*0.3)

	inner := cfg.Radius * 0.2
	outer := cfg.Radius * 0.9
	twist := 1 + v.level*(vortexTwist.pick(in)-1)
	alpha := 0.6 + v.level*0.4

	for _, arm := range v.arms {
		pts := make([]point, 0, arm.segments)
		for i := 0; i < arm.segments; i++ {
			t := float64(i) / float64(arm.segments)
			r := inner + (outer-inner)*t
			mod := math.Sin(v.time*arm.speed+arm.phase) * 0.5
			if in.regime() == listeningRegime {
				mod += math.Sin(v.time*2+t*math.Pi) * v.level * 0.3
			}
			angle := arm.rotation + v.rotation*twist + t*math.Pi*4 + mod
			pts = append(pts, point{in.cx + math.Cos(angle)*r, in.cy + math.Sin(angle)*r})
		}
		curve(dc, pts, false)
		strokeGradient(dc, in.cx, in.cy, cfg.Radius, cfg, alpha, arm.width*(1+v.level))
	}

	disc(dc, in.cx, in.cy, inner*0.6, white.Lerp(cfg.GlowColor, 0.5).Alpha(0.4+v.level*0.4))
}
