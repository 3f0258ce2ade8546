package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	swirlStreaks = 12
	swirlPoints  = 30
	swirlEase    = 0.1
)

type streak struct {
	phase   float64
	speed   float64
	length  float64
	opacity float64
	width   float64
}

// swirl is a ball of paint streaks spun around the center.
type swirl struct {
	streaks        [swirlStreaks]streak
	time           float64
	speedIntensity float64
	level          float64
}

func newSwirl(rng *rand.Rand, _ Config) simulation {
	s := &swirl{}
	for i := range s.streaks {
		s.streaks[i] = streak{
			phase:   float64(i) / swirlStreaks * 2 * math.Pi,
			speed:   0.3 + rng.Float64()*0.4,
			length:  math.Pi * (0.5 + rng.Float64()*0.8),
			opacity: 0.4 + rng.Float64()*0.4,
			width:   6 + rng.Float64()*10,
		}
	}
	return s
}

func (s *swirl) step(in inputs) {
	lvl := sourceLevel(in, s.time*3, 0.3)
	s.level = Smooth(s.level, lvl, swirlEase)

	target := 0.0
	if in.speaking || in.listening {
		target = 1
	}
	s.speedIntensity = Smooth(s.speedIntensity, target, 0.03)

	s.time += in.cfg.PulseSpeed * lerp(0.5, 1.5, s.speedIntensity) * (1 + lvl)
	for i := range s.streaks {
		s.streaks[i].phase += s.streaks[i].speed * 0.02 * (1 + s.level*2)
	}
}

func (s *swirl) energy() float64 {
	return s.level
}

func (s *swirl) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	sphere(dc, in.cx, in.cy, cfg.Radius, cfg.BaseColor.Lerp(white, 0.3), cfg.GlowColor, 0.5)

	dc.DrawCircle(in.cx, in.cy, cfg.Radius)
	dc.Clip()
	pts := make([]point, 0, swirlPoints)
	for i, st := range s.streaks {
		pts = pts[:0]
		band := cfg.Radius * (0.25 + 0.6*float64(i)/swirlStreaks)
		for p := 0; p < swirlPoints; p++ {
			t := float64(p) / (swirlPoints - 1)
			angle := st.phase + t*st.length
			r := band * (1 + math.Sin(s.time+t*math.Pi*2+float64(i))*0.15*(1+s.level))
			pts = append(pts, point{in.cx + math.Cos(angle)*r, in.cy + math.Sin(angle)*r})
		}
		shade := cfg.BaseColor.Lerp(cfg.GlowColor, pulse(s.time+float64(i)))
		curve(dc, pts, false)
		dc.SetColor(shade.Alpha(st.opacity))
		dc.SetLineWidth(st.width * (1 + s.level*0.5))
		dc.SetLineCapRound()
		dc.Stroke()
	}
	dc.ResetClip()

	glow(dc, in.cx, in.cy, cfg.Radius*1.2, cfg.GlowColor, 0.1+s.level*0.2)
}
