package contentstream

import (
	"github.com/sage-frank/pdfstamp/fonts"
)

// GlyphProgram translates a font outline into a Type 3 glyph
// procedure: a d0 metrics declaration followed by path construction
// and a fill. scale maps font units into the 1000-unit glyph space
// (1000 / unitsPerEm). Quadratic segments are promoted to cubics; PDF
// content streams have no quadratic operator.
func GlyphProgram(outline fonts.Outline, advance, scale float64) []byte {
	b := NewBuilder()
	b.SetGlyphMetrics(advance*scale, 0)

	var cur fonts.Point
	open := false
	for _, seg := range outline.Segments {
		switch seg.Op {
		case fonts.SegMoveTo:
			if open {
				b.ClosePath()
			}
			p := scalePoint(seg.Args[0], scale)
			b.MoveTo(p.X, p.Y)
			cur = p
			open = true
		case fonts.SegLineTo:
			p := scalePoint(seg.Args[0], scale)
			b.LineTo(p.X, p.Y)
			cur = p
		case fonts.SegQuadTo:
			q := scalePoint(seg.Args[0], scale)
			end := scalePoint(seg.Args[1], scale)
			// Exact cubic equivalent: control points sit two thirds of
			// the way from the endpoints to the quadratic control.
			c1 := fonts.Point{
				X: cur.X + 2.0/3.0*(q.X-cur.X),
				Y: cur.Y + 2.0/3.0*(q.Y-cur.Y),
			}
			c2 := fonts.Point{
				X: end.X + 2.0/3.0*(q.X-end.X),
				Y: end.Y + 2.0/3.0*(q.Y-end.Y),
			}
			b.CurveTo(c1.X, c1.Y, c2.X, c2.Y, end.X, end.Y)
			cur = end
		case fonts.SegCubeTo:
			c1 := scalePoint(seg.Args[0], scale)
			c2 := scalePoint(seg.Args[1], scale)
			end := scalePoint(seg.Args[2], scale)
			b.CurveTo(c1.X, c1.Y, c2.X, c2.Y, end.X, end.Y)
			cur = end
		}
	}
	if open {
		b.ClosePath()
	}
	b.Fill()
	return b.Bytes()
}

func scalePoint(p fonts.Point, scale float64) fonts.Point {
	return fonts.Point{X: p.X * scale, Y: p.Y * scale}
}
