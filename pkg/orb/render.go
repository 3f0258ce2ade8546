package orb

import (
	"image/color"

	"github.com/fogleman/gg"
)

type point struct{ x, y float64 }

// glow fills a radial gradient that fades from c at the center to clear.
func glow(dc *gg.Context, cx, cy, r float64, c Color, alpha float64) {
	if r <= 0 {
		return
	}
	g := gg.NewRadialGradient(cx, cy, 0, cx, cy, r)
	g.AddColorStop(0, c.Alpha(alpha))
	g.AddColorStop(0.6, c.Alpha(alpha*0.4))
	g.AddColorStop(1, c.Alpha(0))
	dc.SetFillStyle(g)
	dc.DrawCircle(cx, cy, r)
	dc.Fill()
}

// sphere fills a two-tone radial gradient lit from the upper left.
func sphere(dc *gg.Context, cx, cy, r float64, inner, outer Color, alpha float64) {
	if r <= 0 {
		return
	}
	g := gg.NewRadialGradient(cx-r*0.3, cy-r*0.3, 0, cx, cy, r)
	g.AddColorStop(0, inner.Alpha(alpha))
	g.AddColorStop(0.7, outer.Alpha(alpha*0.8))
	g.AddColorStop(1, outer.Alpha(alpha*0.3))
	dc.SetFillStyle(g)
	dc.DrawCircle(cx, cy, r)
	dc.Fill()
}

func disc(dc *gg.Context, x, y, r float64, c color.Color) {
	if r <= 0 {
		return
	}
	dc.SetColor(c)
	dc.DrawCircle(x, y, r)
	dc.Fill()
}

func ring(dc *gg.Context, x, y, r, width float64, c color.Color) {
	if r <= 0 {
		return
	}
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawCircle(x, y, r)
	dc.Stroke()
}

// curve traces a smooth path through pts using midpoint quadratics.
func curve(dc *gg.Context, pts []point, closed bool) {
	if len(pts) < 2 {
		return
	}
	dc.NewSubPath()
	dc.MoveTo(pts[0].x, pts[0].y)
	for i := 1; i < len(pts)-1; i++ {
		mx := (pts[i].x + pts[i+1].x) / 2
		my := (pts[i].y + pts[i+1].y) / 2
		dc.QuadraticTo(pts[i].x, pts[i].y, mx, my)
	}
	last := pts[len(pts)-1]
	dc.LineTo(last.x, last.y)
	if closed {
		dc.ClosePath()
	}
}

// strokeGradient strokes the current path with a base-white-glow gradient.
func strokeGradient(dc *gg.Context, cx, cy, r float64, cfg Config, alpha, width float64) {
	g := gg.NewLinearGradient(cx-r, cy-r, cx+r, cy+r)
	g.AddColorStop(0, cfg.BaseColor.Alpha(alpha))
	g.AddColorStop(0.5, white.Alpha(alpha))
	g.AddColorStop(1, cfg.GlowColor.Alpha(alpha))
	dc.SetStrokeStyle(g)
	dc.SetLineWidth(width)
	dc.SetLineCapRound()
	dc.Stroke()
}
