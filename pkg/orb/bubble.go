package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	bubbleRegions   = 15
	bubbleContainer = 0.8
)

var bubblePalette = [...]string{
	"#50F5FF", "#B060FF", "#FF70FF", "#70B5FF", "#D4A5FF",
	"#F0E0FF", "#60A0FF", "#E090FF", "#FF90FF", "#90E0FF",
	"#A0D0FF", "#E080FF", "#FF85FF", "#70E0FF", "#C0A0FF",
}

type region struct {
	x, y        float64 // relative to the center
	vx, vy      float64
	size        float64
	baseSize    float64
	color       Color
	baseOpacity float64
	opacity     float64
	phase       float64
	noise       float64
}

// bubble is a lava lamp of blurred color regions inside a glass container.
// Speaking scales the whole mass, listening draws it into a spiral.
type bubble struct {
	regions  [bubbleRegions]region
	time     float64
	scale    float64
	rotation float64
}

func newBubble(rng *rand.Rand, cfg Config) simulation {
	b := &bubble{scale: 1}
	container := cfg.Radius * bubbleContainer * 0.98
	for i := range b.regions {
		size := container * (0.3 + rng.Float64()*0.2)
		op := 0.7 + rng.Float64()*0.3
		b.regions[i] = region{
			size:        size,
			baseSize:    size,
			color:       MustColor(bubblePalette[i%len(bubblePalette)]),
			baseOpacity: op,
			opacity:     op,
			phase:       float64(i) / bubbleRegions * 2 * math.Pi,
			noise:       rng.Float64() * 1000,
		}
	}
	return b
}

func (b *bubble) step(in inputs) {
	b.time += 0.01

	var target, opacity float64
	switch in.regime() {
	case speakingRegime:
		scaled := math.Pow(clamp01(in.amplitude), 0.2)
		target = 0.8 + scaled*0.18
		opacity = 0.7 + scaled*0.8
	case listeningRegime:
		v := Compress(in.mic)
		target = 0.95
		opacity = 0.8 + v*0.4
		b.rotation -= 0.0003 * v * 60
	default:
		target = 0.95 + (pulse(b.time*2)-0.5)*0.03
		opacity = 1
	}

	rate := 0.1
	if in.speaking {
		rate = 0.3
	}
	b.scale = Smooth(b.scale, target, rate)

	radius := in.cfg.Radius * bubbleContainer * 0.9
	for i := range b.regions {
		b.move(&b.regions[i], in, radius, opacity)
	}
}

func (b *bubble) move(r *region, in inputs, radius, opacity float64) {
	r.opacity = r.baseOpacity * opacity
	r.noise += 0.0003
	t := b.time + r.noise
	reach := radius * 0.8

	tx := math.Sin(t*0.1)*math.Cos(t*0.08)*reach + math.Sin(t*0.2)*reach*0.2
	ty := math.Cos(t*0.08)*math.Sin(t*0.15)*reach + math.Cos(t*0.25)*reach*0.2
	ty += math.Sin(t*(0.05+math.Sin(t*0.15)*0.02)) * reach * 0.5

	switch in.regime() {
	case speakingRegime:
		v := math.Max(0, (opacity-0.7)/0.8)
		if v > 0.05 {
			a := math.Atan2(r.y, r.x)
			tx += math.Cos(a) * v * radius * 0.3
			ty += math.Sin(a) * v * radius * 0.3
		}
	case listeningRegime:
		v := math.Max(0, (opacity-0.8)/0.4)
		d := math.Hypot(r.x, r.y)
		pull := (0.02 + v*0.08) * math.Min(1, d/(radius*0.4))
		tx -= r.x * pull
		ty -= r.y * pull
		a := math.Atan2(-r.y, -r.x) + math.Pi/2
		spin := 0.15 * (v + 0.1) * math.Min(d, radius*0.4) / (radius * 0.4)
		tx += math.Cos(a) * spin
		ty += math.Sin(a) * spin
	}

	limit := radius - r.size*1.1
	if d := math.Hypot(tx, ty); d > limit && d > 0 {
		k := limit * 0.95 / d
		tx, ty = tx*k, ty*k
	}

	resp := 0.006
	damp := 0.96
	if in.speaking {
		resp = 0.008
	}
	if in.listening {
		damp = 0.92
	}
	r.vx = (r.vx + (tx-r.x)*resp) * damp
	r.vy = (r.vy + (ty-r.y)*resp) * damp
	r.x += r.vx
	r.y += r.vy

	pulseDepth := 0.04
	if in.speaking {
		pulseDepth = 0.08
	}
	r.size = r.baseSize * (1 + math.Sin(t*0.15+r.phase)*pulseDepth) * b.scale
}

func (b *bubble) energy() float64 {
	return b.scale
}

func (b *bubble) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	container := cfg.Radius * bubbleContainer

	sphere(dc, in.cx, in.cy, container, white, cfg.BaseColor, 0.15)
	dc.DrawCircle(in.cx, in.cy, container)
	dc.Clip()

	dc.Push()
	if in.listening {
		dc.RotateAbout(b.rotation, in.cx, in.cy)
	}
	for _, r := range b.regions {
		x, y := in.cx+r.x, in.cy+r.y
		g := gg.NewRadialGradient(x, y, 0, x, y, r.size)
		g.AddColorStop(0, r.color.Alpha(clamp01(r.opacity)*0.8))
		g.AddColorStop(0.6, r.color.Alpha(clamp01(r.opacity)*0.3))
		g.AddColorStop(1, r.color.Alpha(0))
		dc.SetFillStyle(g)
		dc.DrawCircle(x, y, r.size)
		dc.Fill()
	}
	dc.Pop()
	dc.ResetClip()

	ring(dc, in.cx, in.cy, container, 2, cfg.GlowColor.Alpha(0.35))
	hl := gg.NewRadialGradient(in.cx-container*0.4, in.cy-container*0.4, 0, in.cx-container*0.4, in.cy-container*0.4, container*0.5)
	hl.AddColorStop(0, white.Alpha(0.3))
	hl.AddColorStop(1, white.Alpha(0))
	dc.SetFillStyle(hl)
	dc.DrawCircle(in.cx, in.cy, container)
	dc.Fill()
}
