package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	auroraWaves  = 8
	auroraPoints = 50
	auroraEase   = 0.05
)

var (
	auroraTimeSpeed = rates{idle: 0.01, listening: 0.01, speaking: 0.03}
	auroraLift      = rates{idle: 1, listening: 1.5, speaking: 2.5}
)

type curtain struct {
	phase     float64
	speed     float64
	amplitude float64
	thickness float64
	current   float64
	offset    float64
}

// aurora is a set of horizontal light curtains folded into a disc.
type aurora struct {
	curtains [auroraWaves]curtain
	time     float64
	level    float64
}

func newAurora(rng *rand.Rand, cfg Config) simulation {
	a := &aurora{}
	for i := range a.curtains {
		amp := 10 + rng.Float64()*20
		a.curtains[i] = curtain{
			phase:     rng.Float64() * 2 * math.Pi,
			speed:     0.5 + rng.Float64()*0.5,
			amplitude: amp,
			thickness: 10 + rng.Float64()*20,
			current:   amp,
			offset:    (float64(i)/(auroraWaves-1) - 0.5) * cfg.Radius * 1.2,
		}
	}
	return a
}

func (a *aurora) step(in inputs) {
	lvl := sourceLevel(in, a.time*2, 0.3)
	a.time += auroraTimeSpeed.pick(in) * (1 + lvl)
	a.level = Smooth(a.level, lvl, auroraEase)

	lift := 1 + lvl*(auroraLift.pick(in)-1)
	for i := range a.curtains {
		c := &a.curtains[i]
		c.current = Smooth(c.current, c.amplitude*lift, auroraEase)
	}
}

func (a *aurora) energy() float64 {
	return a.level
}

func (a *aurora) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	glow(dc, in.cx, in.cy, cfg.Radius, cfg.GlowColor, 0.2+a.level*0.3)

	dc.DrawCircle(in.cx, in.cy, cfg.Radius)
	dc.Clip()

	pts := make([]point, 0, auroraPoints)
	alpha := 0.6 + a.level*0.4
	for _, c := range a.curtains {
		pts = pts[:0]
		for i := 0; i < auroraPoints; i++ {
			t := float64(i) / (auroraPoints - 1)
			x := in.cx - cfg.Radius + t*cfg.Radius*2
			y := in.cy + c.offset +
				math.Sin(t*math.Pi*2+a.time*c.speed+c.phase)*c.current +
				math.Sin(t*math.Pi*4+a.time*c.speed*1.3)*c.current*0.3
			pts = append(pts, point{x, y})
		}
		curve(dc, pts, false)
		strokeGradient(dc, in.cx, in.cy, cfg.Radius, cfg, alpha*0.5, c.thickness*(1+a.level*0.5))
	}
	dc.ResetClip()

	ring(dc, in.cx, in.cy, cfg.Radius, 2, cfg.BaseColor.Alpha(0.2+a.level*0.2))
}
