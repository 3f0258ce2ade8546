package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	waveRings    = 12
	waveSegments = 180
	waveEase     = 0.12
)

var (
	waveTimeSpeed = rates{idle: 0.01, listening: 0.01, speaking: 0.03}
	waveFrequency = rates{idle: 3, listening: 3, speaking: 6}
	waveSwell     = rates{idle: 0.5, listening: 1.5, speaking: 2}
)

type waveRing struct {
	radius    float64
	phase     float64
	speed     float64
	amplitude float64
	thickness float64
}

// wave is a stack of concentric rippling rings.
type wave struct {
	rings []waveRing
	time  float64
	level float64
}

func newWave(rng *rand.Rand, cfg Config) simulation {
	w := &wave{rings: make([]waveRing, waveRings)}
	inner := cfg.Radius * 0.2
	step := (cfg.Radius - inner) / waveRings
	for i := range w.rings {
		w.rings[i] = waveRing{
			radius:    inner + float64(i)*step,
			phase:     rng.Float64() * 2 * math.Pi,
			speed:     0.5 + rng.Float64()*0.5,
			amplitude: 2 + rng.Float64()*2,
			thickness: 2 + rng.Float64()*2,
		}
	}
	return w
}

func (w *wave) step(in inputs) {
	lvl := sourceLevel(in, w.time, 0.3)
	w.time += waveTimeSpeed.pick(in) * (1 + lvl)
	w.level = Smooth(w.level, lvl, waveEase)
}

func (w *wave) energy() float64 {
	return w.level
}

func (w *wave) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	glow(dc, in.cx, in.cy, cfg.Radius, cfg.BaseColor, 0.2+w.level*0.3)

	freq := waveFrequency.pick(in) + w.level*3
	swell := 1 + w.level*waveSwell.pick(in)
	speed := 1 + w.level
	if in.speaking {
		speed = 2 + w.level*2
	}
	alpha := 0.3 + w.level*0.4

	pts := make([]point, 0, waveSegments+1)
	for i, r := range w.rings {
		pts = pts[:0]
		amp := r.amplitude * swell
		phase := r.phase + w.time*r.speed*speed
		for s := 0; s <= waveSegments; s++ {
			a := float64(s) / waveSegments * 2 * math.Pi
			d := math.Sin(a*freq+phase) * amp * (1 + math.Sin(w.time+r.phase)*0.3)
			if in.regime() == listeningRegime {
				d += math.Sin(a*2+phase*0.5) * amp * 0.3 * w.level
			}
			pts = append(pts, point{in.cx + math.Cos(a)*(r.radius+d), in.cy + math.Sin(a)*(r.radius+d)})
		}
		curve(dc, pts, true)
		t := pulse(w.time + float64(i))
		g := gg.NewLinearGradient(in.cx-r.radius, in.cy-r.radius, in.cx+r.radius, in.cy+r.radius)
		g.AddColorStop(0, cfg.BaseColor.Lerp(cfg.GlowColor, t).Alpha(alpha))
		g.AddColorStop(1, cfg.GlowColor.Lerp(cfg.BaseColor, t).Alpha(alpha))
		dc.SetStrokeStyle(g)
		dc.SetLineWidth(r.thickness * (1 + w.level))
		dc.Stroke()
	}

	outer := gg.NewRadialGradient(in.cx, in.cy, cfg.Radius*0.8, in.cx, in.cy, cfg.Radius*1.2)
	outer.AddColorStop(0, cfg.GlowColor.Alpha(0.1+w.level*0.1))
	outer.AddColorStop(1, cfg.GlowColor.Alpha(0))
	dc.SetFillStyle(outer)
	dc.DrawCircle(in.cx, in.cy, cfg.Radius*1.2)
	dc.Fill()
}
