package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	plasmaPoints = 12
	plasmaCell   = 6.0
	plasmaEase   = 0.1
)

type plasmaPoint struct {
	x, y      float64
	phase     float64
	speed     float64
	scale     float64
	amplitude float64
}

// plasma is an interference field of moving sources, sampled on a coarse
// grid and clipped to a disc.
type plasma struct {
	points         [plasmaPoints]plasmaPoint
	time           float64
	level          float64
	colorIntensity float64
}

func newPlasma(rng *rand.Rand, _ Config) simulation {
	p := &plasma{}
	for i := range p.points {
		p.points[i] = plasmaPoint{
			x:         rng.Float64()*2 - 1,
			y:         rng.Float64()*2 - 1,
			phase:     rng.Float64() * 2 * math.Pi,
			speed:     0.5 + rng.Float64()*0.5,
			scale:     0.2 + rng.Float64()*0.3,
			amplitude: 0.5 + rng.Float64()*0.5,
		}
	}
	return p
}

func (p *plasma) step(in inputs) {
	lvl := sourceLevel(in, p.time, 0.25)
	var speed float64
	switch in.regime() {
	case speakingRegime:
		speed = 0.06 * (1 + lvl)
	case listeningRegime:
		speed = 0.02 + lvl*0.04
	default:
		speed = 0.02 * (1 + lvl)
	}
	p.time += speed
	p.level = Smooth(p.level, lvl, plasmaEase)

	target := 0.0
	if in.speaking {
		target = 1
	}
	p.colorIntensity = Smooth(p.colorIntensity, target, 0.05)
}

func (p *plasma) energy() float64 {
	return p.level
}

func (p *plasma) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	r := cfg.Radius

	speedMul, ampMul, turb := 1.0, 1.0, 0.0
	switch in.regime() {
	case speakingRegime:
		speedMul, ampMul, turb = 5, 4, 2
	case listeningRegime:
		speedMul = 1 + p.level*2
		ampMul = 1 + p.level*1.5
		turb = 1 + p.level
	}

	for gy := -r; gy < r; gy += plasmaCell {
		for gx := -r; gx < r; gx += plasmaCell {
			dist := math.Hypot(gx, gy)
			if dist > r {
				continue
			}
			var value float64
			for i, pt := range p.points {
				t := p.time * pt.speed * speedMul
				ox := math.Sin(t*0.5+float64(i)) * 0.3 * turb
				oy := math.Cos(t*0.3+float64(i)) * 0.3 * turb
				dx := gx + pt.x*r*math.Cos(t+pt.phase) + r*ox
				dy := gy + pt.y*r*math.Sin(t+pt.phase*1.5) + r*oy
				d := math.Hypot(dx, dy)
				value += math.Sin(d*pt.scale*0.1+t+math.Sin(t*2+float64(i))*0.5*turb) *
					pt.amplitude * (1 - d/(r*math.Sqrt2)) * ampMul
			}
			edge := math.Pow(math.Max(0, 1-dist/r), 2)
			value *= edge * (1 + p.level*2)
			shade := cfg.BaseColor.Lerp(cfg.GlowColor, (math.Sin(value)+1)/2)
			dc.SetColor(shade.Alpha(0.8 * math.Sqrt(edge) * (0.8 + p.colorIntensity*0.2)))
			dc.DrawRectangle(in.cx+gx, in.cy+gy, plasmaCell, plasmaCell)
			dc.Fill()
		}
	}
	glow(dc, in.cx, in.cy, r*1.1, cfg.GlowColor, 0.15+p.level*0.2)
}
