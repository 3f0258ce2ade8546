package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	particleCount        = 100
	particleBaseRadius   = 4.0
	particleMinSpeed     = 0.3
	particleBounce       = 0.7
	particleEnergyLoss   = 0.98
	particleTrail        = 8.0
	particleBaseAlpha    = 0.8
	particleBloomEase    = 0.15
	particleImpulseOdds  = 0.05
	particleImpulseForce = 0.3
)

type mote struct {
	x, y   float64 // relative to the center
	vx, vy float64
	radius float64
	alpha  float64
	energy float64
}

// particles is a swarm of bouncing motes inside a soft glow. The container
// grows with the active energy source and every mote gets random kicks
// scaled by it.
type particles struct {
	rng   *rand.Rand
	motes []mote
	phase float64
	hue   float64
	bloom float64
}

func newParticles(rng *rand.Rand, cfg Config) simulation {
	p := &particles{rng: rng, motes: make([]mote, particleCount)}
	for i := range p.motes {
		angle := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * cfg.Radius * 0.8
		dir := rng.Float64() * 2 * math.Pi
		speed := 0.5 + rng.Float64()
		p.motes[i] = mote{
			x:      math.Cos(angle) * dist,
			y:      math.Sin(angle) * dist,
			vx:     math.Cos(dir) * speed,
			vy:     math.Sin(dir) * speed,
			radius: particleBaseRadius * (0.8 + rng.Float64()*0.4),
			alpha:  particleBaseAlpha + rng.Float64()*(1-particleBaseAlpha),
			energy: 1,
		}
	}
	return p
}

func (p *particles) step(in inputs) {
	p.phase += in.cfg.PulseSpeed
	p.hue = math.Mod(p.hue+0.2, 360)

	var drive, target, speedMul float64
	switch in.regime() {
	case speakingRegime:
		drive = in.amplitude * 2
		target = in.amplitude
		speedMul = 0.7
	case listeningRegime:
		drive = Compress(in.mic)
		target = drive
		speedMul = 1 + drive*0.5
	default:
		target = pulse(p.phase) * 0.3
		speedMul = 1
	}
	p.bloom = Smooth(p.bloom, target, particleBloomEase)
	limit := in.cfg.Radius * (1 + p.bloom*0.5)

	for i := range p.motes {
		m := &p.motes[i]

		odds := particleImpulseOdds
		if in.listening && !in.speaking {
			odds += drive * 0.1
		}
		if p.rng.Float64() < odds {
			a := p.rng.Float64() * 2 * math.Pi
			force := particleImpulseForce * (1 + drive)
			m.vx += math.Cos(a) * force
			m.vy += math.Sin(a) * force
		}

		switch in.regime() {
		case speakingRegime:
			m.vx *= 1.002
			m.vy *= 1.002
			m.energy = math.Min(m.energy*1.001, 1.1)
		case listeningRegime:
			if drive > 0 {
				boost := 1 + drive*0.1
				m.vx *= boost
				m.vy *= boost
				m.energy = math.Min(m.energy*boost, 1.2)
			}
		}

		m.x += m.vx * m.energy * speedMul
		m.y += m.vy * m.energy * speedMul

		if d := math.Hypot(m.x, m.y); d > limit {
			a := math.Atan2(m.y, m.x)
			nx, ny := math.Cos(a), math.Sin(a)
			m.x, m.y = nx*limit, ny*limit
			dot := m.vx*nx + m.vy*ny
			m.vx = (m.vx - 2*dot*nx) * particleBounce
			m.vy = (m.vy - 2*dot*ny) * particleBounce
			kick := a + (p.rng.Float64()-0.5)*math.Pi
			force := 0.5 * (1 + drive)
			m.vx += math.Cos(kick) * force
			m.vy += math.Sin(kick) * force
		}

		loss := particleEnergyLoss
		if in.regime() == listeningRegime {
			loss += (1 - particleEnergyLoss) * drive
		}
		m.energy = math.Max(m.energy*loss, 0.5)

		if math.Hypot(m.vx, m.vy) < particleMinSpeed {
			a := p.rng.Float64() * 2 * math.Pi
			s := particleMinSpeed + p.rng.Float64()*0.5
			m.vx, m.vy = math.Cos(a)*s, math.Sin(a)*s
			m.energy = 1
		}
	}
}

func (p *particles) energy() float64 {
	return p.bloom
}

func (p *particles) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	limit := cfg.Radius * (1 + p.bloom*0.5)

	var glowAlpha, trail float64
	switch in.regime() {
	case speakingRegime:
		glowAlpha, trail = 0.4, 1.2
	case listeningRegime:
		glowAlpha, trail = 0.2+in.mic*0.3, 1+in.mic*0.5
	default:
		glowAlpha, trail = 0.2, 1
	}
	glow(dc, in.cx, in.cy, limit, cfg.BaseColor.Lerp(cfg.GlowColor, p.bloom), glowAlpha)

	for _, m := range p.motes {
		x, y := in.cx+m.x, in.cy+m.y
		tail := m.radius * particleTrail * trail
		g := gg.NewRadialGradient(x, y, 0, x, y, tail)
		g.AddColorStop(0, cfg.GlowColor.Alpha(m.alpha*0.3*m.energy))
		g.AddColorStop(1, cfg.GlowColor.Alpha(0))
		dc.SetFillStyle(g)
		dc.DrawCircle(x, y, tail)
		dc.Fill()
		disc(dc, x, y, m.radius*m.energy, white.Lerp(cfg.BaseColor, 0.3).Alpha(m.alpha))
	}
}
