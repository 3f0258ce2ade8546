package orb

import (
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	crystalCount = 12
	crystalEase  = 0.1
)

var crystalSpin = rates{idle: 0.5, listening: 1, speaking: 2}

type shard struct {
	angle  float64
	length float64
	speed  float64
	phase  float64
}

// crystal is a rotating star of glassy shards around a bright core.
type crystal struct {
	shards     [crystalCount]shard
	rotation   float64
	colorPhase float64
	level      float64
}

func newCrystal(rng *rand.Rand, cfg Config) simulation {
	c := &crystal{}
	for i := range c.shards {
		c.shards[i] = shard{
			angle:  float64(i) / crystalCount * 2 * math.Pi,
			length: cfg.Radius * 0.7,
			speed:  0.5 + rng.Float64()*0.5,
			phase:  rng.Float64() * 2 * math.Pi,
		}
	}
	return c
}

func (c *crystal) step(in inputs) {
	lvl := sourceLevel(in, c.colorPhase, 0.3)
	c.rotation += 0.005 * (1 + lvl*crystalSpin.pick(in))
	c.colorPhase += 0.02
	c.level = Smooth(c.level, lvl, crystalEase)
	for i := range c.shards {
		c.shards[i].phase += c.shards[i].speed * 0.02 * (1 + c.level)
	}
}

func (c *crystal) energy() float64 {
	return c.level
}

func (c *crystal) draw(dc *gg.Context, in inputs) {
	cfg := in.cfg
	glow(dc, in.cx, in.cy, cfg.Radius, cfg.BaseColor.Lerp(cfg.GlowColor, 0.5), 0.15+c.level*0.3)

	for i, s := range c.shards {
		mod := (1 + math.Sin(s.phase+c.colorPhase)*0.2) * (1 + c.level*0.5)
		angle := s.angle + c.rotation
		c.shard(dc, in, angle, s.length*mod, i)
		c.shard(dc, in, angle+math.Pi/crystalCount, s.length*mod*0.6, i+crystalCount)
	}

	core := gg.NewRadialGradient(in.cx, in.cy, 0, in.cx, in.cy, cfg.Radius*0.2)
	core.AddColorStop(0, white.Alpha(0.3+c.level*0.2))
	core.AddColorStop(1, cfg.BaseColor.Alpha(0))
	dc.SetFillStyle(core)
	dc.DrawCircle(in.cx, in.cy, cfg.Radius*0.2)
	dc.Fill()
}

func (c *crystal) shard(dc *gg.Context, in inputs, angle, length float64, index int) {
	width := length * 0.2
	t := pulse(c.colorPhase + float64(index)*0.5)
	shade := in.cfg.BaseColor.Lerp(in.cfg.GlowColor, t)

	dc.Push()
	dc.Translate(in.cx, in.cy)
	dc.Rotate(angle)
	dc.MoveTo(0, -width)
	dc.LineTo(length, 0)
	dc.LineTo(0, width)
	dc.LineTo(-width*0.5, 0)
	dc.ClosePath()
	g := gg.NewLinearGradient(0, 0, length, 0)
	g.AddColorStop(0, shade.Alpha(0.5))
	g.AddColorStop(0.7, white.Lerp(shade, 0.6).Alpha(0.35+c.level*0.3))
	g.AddColorStop(1, shade.Alpha(0.05))
	dc.SetFillStyle(g)
	dc.FillPreserve()
	dc.SetColor(white.Alpha(0.15))
	dc.SetLineWidth(1)
	dc.Stroke()
	dc.Pop()
}
