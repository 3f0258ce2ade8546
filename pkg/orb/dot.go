package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	dotCount      = 4
	dotSpacing    = 2.5
	dotMaxHeight  = 3.0
	dotEase       = 0.15
	dotSizeRatio  = 0.2
	dotSpeakRatio = 0.6
	dotWaveStep   = 0.1
)

type dotState struct {
	x, y                   float64 // relative to the center
	size, height           float64
	targetX, targetY       float64
	targetSize, targetHeight float64
}

// dots is a row of four pills. While listening the pills stretch in a
// travelling wave with the mic level; while speaking they merge into one
// circle that throbs with the amplitude.
type dots struct {
	dots      [dotCount]dotState
	wavePhase float64
	phase     float64
}

func newDots(_ *rand.Rand, cfg Config) simulation {
	d := &dots{}
	size := cfg.Radius * dotSizeRatio
	for i := range d.dots {
		d.dots[i] = dotState{size: size, height: 1, targetSize: size, targetHeight: 1}
	}
	d.layoutRow(cfg)
	return d
}

func (d *dots) layoutRow(cfg Config) {
	size := cfg.Radius * dotSizeRatio
	total := dotCount*size*dotSpacing - size*(dotSpacing-1)
	start := -total/2 + size/2
	for i := range d.dots {
		d.dots[i].targetX = start + float64(i)*size*dotSpacing
		d.dots[i].targetY = 0
	}
}

func (d *dots) step(in inputs) {
	cfg := in.cfg
	size := cfg.Radius * dotSizeRatio
	d.phase += cfg.PulseSpeed

	switch in.regime() {
	case speakingRegime:
		scale := 0.8 + math.Pow(clamp01(in.amplitude), 0.7)*1.2
		for i := range d.dots {
			dt := &d.dots[i]
			dt.targetX, dt.targetY = 0, 0
			dt.targetSize = cfg.Radius * dotSpeakRatio * scale
			dt.targetHeight = 1
		}
	case listeningRegime:
		d.layoutRow(cfg)
		d.wavePhase += dotWaveStep
		for i := range d.dots {
			dt := &d.dots[i]
			wave := math.Sin(d.wavePhase + float64(i)*math.Pi/2)
			dt.targetSize = size
			dt.targetHeight = 1 + Compress(in.mic)*dotMaxHeight*math.Max(0, wave)
		}
	default:
		d.layoutRow(cfg)
		breath := 1 + pulse(d.phase)*0.15
		for i := range d.dots {
			d.dots[i].targetSize = size * breath
			d.dots[i].targetHeight = 1
		}
	}

	for i := range d.dots {
		dt := &d.dots[i]
		dt.x = Smooth(dt.x, dt.targetX, dotEase)
		dt.y = Smooth(dt.y, dt.targetY, dotEase)
		dt.size = Smooth(dt.size, dt.targetSize, dotEase)
		dt.height = Smooth(dt.height, dt.targetHeight, dotEase)
	}
}

func (d *dots) energy() float64 {
	var sum float64
	for _, dt := range d.dots {
		sum += dt.size * dt.height
	}
	return sum / dotCount
}

func (d *dots) draw(dc *gg.Context, in inputs) {
	fill := in.cfg.BaseColor.Alpha(1)
	if in.speaking {
		glow(dc, in.cx, in.cy, d.dots[0].size*1.3, in.cfg.GlowColor, 0.35)
		disc(dc, in.cx, in.cy, d.dots[0].size, fill)
		return
	}
	for _, dt := range d.dots {
		x, y := in.cx+dt.x, in.cy+dt.y
		if dt.height <= 1.1 {
			disc(dc, x, y, dt.size, fill)
			continue
		}
		w := dt.size * 2
		h := w * dt.height
		dc.SetColor(fill)
		dc.DrawRoundedRectangle(x-w/2, y-h/2, w, h, w/2)
		dc.Fill()
	}
}
