package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	energyArcs     = 8
	energySegments = 12
	energySteps    = 30
	energyEase     = 0.15
)

var (
	energyTimeSpeed = rates{idle: 0.02, listening: 0.02, speaking: 0.04}
	energyCharge    = rates{idle: 1, listening: 2, speaking: 3}
)

type arc struct {
	start, end float64
	radius     float64
	segments   [energySegments]float64
	phase      float64
	speed      float64
	thickness  float64
}

// energyOrb is a cage of crackling arcs whose jitter and thickness follow
// the active source.
type energyOrb struct {
	rng   *rand.Rand
	arcs  [energyArcs]arc
	time  float64
	level float64
}

func newEnergy(rng *rand.Rand, cfg Config) simulation {
	e := &energyOrb{rng: rng}
	for i := range e.arcs {
		start := rng.Float64() * 2 * math.Pi
		a := &e.arcs[i]
		a.start = start
		a.end = start + math.Pi*(0.5+rng.Float64())
		a.radius = cfg.Radius * (0.5 + rng.Float64()*0.4)
		a.phase = rng.Float64() * 2 * math.Pi
		a.speed = 0.5 + rng.Float64()
		a.thickness = 2 + rng.Float64()*3
		e.reseed(a)
	}
	return e
}

func (e *energyOrb) reseed(a *arc) {
	for i := range a.segments {
		a.segments[i] = (e.rng.Float64() - 0.5) * 10
	}
}

func (e *energyOrb) step(in inputs) {
	lvl := sourceLevel(in, e.time*3, 0.3)
	e.time += energyTimeSpeed.pick(in) * (1 + lvl)
	e.level = Smooth(e.level, lvl, energyEase)

	for i := range e.arcs {
		if e.rng.Float64() < 0.05 {
			e.reseed(&e.arcs[i])
		}
	}
}

func (e *energyOrb) energy() float64 {
	return e.level
}

func (e *energyOrb) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	glow(dc, in.cx, in.cy, cfg.Radius, cfg.BaseColor, 0.2+e.level*0.3)

	charge := 1 + e.level*energyCharge.pick(in)
	alpha := 0.6 + e.level*0.4
	pts := make([]point, 0, energySteps+1)
	for _, a := range e.arcs {
		pts = pts[:0]
		step := (a.end - a.start) / energySteps
		for i := 0; i <= energySteps; i++ {
			angle := a.start + step*float64(i)
			seg := a.segments[min(i*energySegments/energySteps, energySegments-1)]
			wobble := math.Sin(e.time*a.speed + a.phase + angle)
			r := a.radius + seg*charge + wobble*10
			pts = append(pts, point{in.cx + math.Cos(angle)*r, in.cy + math.Sin(angle)*r})
		}
		curve(dc, pts, false)
		strokeGradient(dc, in.cx, in.cy, a.radius, cfg, alpha, a.thickness*(1+e.level))
	}

	outer := gg.NewRadialGradient(in.cx, in.cy, cfg.Radius*0.8, in.cx, in.cy, cfg.Radius*1.2)
	outer.AddColorStop(0, cfg.GlowColor.Alpha(0.1+e.level*0.1))
	outer.AddColorStop(1, cfg.GlowColor.Alpha(0))
	dc.SetFillStyle(outer)
	dc.DrawCircle(in.cx, in.cy, cfg.Radius*1.2)
	dc.Fill()
}
