package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

// Fluid is a glass sphere filled with swirling layers. It contracts while
// listening and swells with the reply while speaking; its phases run
// backwards during speech.
const (
	fluidSwirls      = 8
	fluidBaseRatio   = 0.7
	fluidEase        = 0.15
	fluidListenEase  = 0.3
	fluidColorEase   = 0.05
	fluidMinListen   = 0.2
	fluidSpeakGain   = 2.0
	fluidListenGain  = 0.5
	fluidIdleGain    = 0.3
	fluidSwirlRadius = 0.4
)

type swirlPoint struct {
	x, y  float64
	phase float64
	speed float64
}

type fluid struct {
	pulsePhase  float64
	ripplePhase float64
	colorPhase  float64

	radius         float64
	colorIntensity float64
	swirls         [fluidSwirls]swirlPoint
}

func newFluid(rng *rand.Rand, cfg Config) simulation {
	f := &fluid{radius: cfg.Radius * fluidBaseRatio}
	for i := range f.swirls {
		f.swirls[i] = swirlPoint{
			x:     rng.Float64()*2 - 1,
			y:     rng.Float64()*2 - 1,
			phase: rng.Float64() * 2 * math.Pi,
			speed: 0.5 + rng.Float64()*0.5,
		}
	}
	return f
}

func (f *fluid) step(in inputs) {
	speed := in.cfg.PulseSpeed
	dir := 1.0
	if in.speaking {
		dir = -1
	}
	f.pulsePhase += dir * speed * (1 + f.colorIntensity*0.5)
	f.ripplePhase += dir * speed * 0.5
	f.colorPhase += dir * speed * 0.3

	base := in.cfg.Radius * fluidBaseRatio
	var effect, drive, spread float64
	switch in.regime() {
	case speakingRegime:
		effect = in.amplitude * base * fluidSpeakGain
		drive = in.amplitude
		spread = in.amplitude
	case listeningRegime:
		level := fluidMinListen + (1-fluidMinListen)*Compress(in.mic)
		effect = -level * base * fluidListenGain
		drive = Compress(in.mic)
	default:
		effect = pulse(f.pulsePhase) * base * fluidIdleGain
	}

	rate := fluidEase
	if in.listening {
		rate = fluidListenEase
	}
	f.radius = Smooth(f.radius, base+effect, rate)

	target := 0.0
	if in.speaking {
		target = 1
	}
	f.colorIntensity = Smooth(f.colorIntensity, target, fluidColorEase)

	r := fluidSwirlRadius * (1 + spread*0.8)
	for i := range f.swirls {
		s := &f.swirls[i]
		s.phase += dir * speed * s.speed * (1 + f.colorIntensity) * (1 + drive)
		s.x = math.Cos(s.phase)*r + math.Cos(s.phase*0.5)*0.2
		s.y = math.Sin(s.phase)*r + math.Sin(s.phase*0.5)*0.2
	}
}

func (f *fluid) energy() float64 {
	return f.radius
}

func (f *fluid) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	p := pulse(f.pulsePhase)

	var opacity float64
	switch in.regime() {
	case speakingRegime:
		opacity = cfg.opacity(in.amplitude*0.8 + p*0.2)
	case listeningRegime:
		opacity = cfg.opacity(Compress(in.mic)*0.8 + p*0.2)
	default:
		opacity = cfg.opacity(p * 0.3)
	}

	dc.DrawCircle(in.cx, in.cy, cfg.Radius*1.2)
	dc.Clip()

	sphere(dc, in.cx, in.cy, cfg.Radius, white, cfg.BaseColor, 0.25)

	for i, s := range f.swirls {
		layerOpacity := opacity * (1 - float64(i)*0.1) * (0.7 + f.colorIntensity*0.3)
		layerRadius := f.radius * (1 + math.Sin(f.ripplePhase+float64(i))*0.15)
		shade := cfg.BaseColor.Lerp(cfg.GlowColor, pulse(f.colorPhase+float64(i)))
		ox := in.cx + s.x*layerRadius*0.4
		oy := in.cy + s.y*layerRadius*0.4

		g := gg.NewRadialGradient(ox, oy, 0, in.cx, in.cy, layerRadius)
		g.AddColorStop(0, white.Lerp(shade, 0.5).Alpha(layerOpacity))
		g.AddColorStop(0.5, shade.Alpha(layerOpacity*0.6))
		g.AddColorStop(1, cfg.GlowColor.Alpha(0))
		dc.SetFillStyle(g)
		dc.DrawCircle(in.cx, in.cy, layerRadius)
		dc.Fill()
	}

	hl := gg.NewRadialGradient(in.cx-cfg.Radius*0.5, in.cy-cfg.Radius*0.5, 0,
		in.cx-cfg.Radius*0.3, in.cy-cfg.Radius*0.3, cfg.Radius*0.8)
	hl.AddColorStop(0, white.Alpha(0.35))
	hl.AddColorStop(1, white.Alpha(0))
	dc.SetFillStyle(hl)
	dc.DrawCircle(in.cx, in.cy, cfg.Radius)
	dc.Fill()

	ring(dc, in.cx, in.cy, cfg.Radius, 2, white.Alpha(0.25))
	ring(dc, in.cx, in.cy, cfg.Radius*0.95, 1, cfg.GlowColor.Alpha(0.2))
	dc.ResetClip()
}
