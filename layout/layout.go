// Package layout computes watermark tile placements: a rotated grid of
// text anchor points that covers a page completely, including the
// corners the rotation would otherwise leave bare.
package layout

import (
	"math"

	"github.com/sage-frank/pdfstamp/coords"
)

// Placement is one watermark instance: the text-space origin of its
// baseline in page coordinates, and the rotation to draw it at.
type Placement struct {
	X, Y    float64
	Degrees float64
}

// Grid describes one page's tiling problem. Dimensions are in page
// units (points). StringWidth and LineHeight are the rendered size of
// one watermark instance; GapX and GapY are the spacing between
// instances along and across the text direction.
type Grid struct {
	PageWidth   float64
	PageHeight  float64
	StringWidth float64
	LineHeight  float64
	Angle       float64 // degrees, counterclockwise
	GapX        float64
	GapY        float64
}

// Tile lays the grid out in the rotated frame and maps every cell that
// could intersect the page back into page coordinates. Placements come
// out row by row, bottom-left first. A grid with no text or degenerate
// metrics yields nil.
func (g Grid) Tile() []Placement {
	if g.StringWidth <= 0 || g.LineHeight <= 0 {
		return nil
	}
	if g.PageWidth <= 0 || g.PageHeight <= 0 {
		return nil
	}

	stepX := g.StringWidth + math.Max(g.GapX, 0)
	stepY := g.LineHeight + math.Max(g.GapY, 0)

	rad := g.Angle * math.Pi / 180
	// Page corners seen from the rotated frame. The grid is axis
	// aligned there, so its page-covering extent is the bounding box of
	// the unrotated corners.
	inv := coords.Rotate(-rad)
	corners := []coords.Point{
		{X: 0, Y: 0},
		{X: g.PageWidth, Y: 0},
		{X: 0, Y: g.PageHeight},
		{X: g.PageWidth, Y: g.PageHeight},
	}
	minU, minV := math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := inv.Transform(c)
		minU = math.Min(minU, p.X)
		minV = math.Min(minV, p.Y)
		maxU = math.Max(maxU, p.X)
		maxV = math.Max(maxV, p.Y)
	}

	// One extra cell on every side so partially clipped instances still
	// reach the page edge.
	first := math.Floor(minU/stepX) - 1
	last := math.Ceil(maxU / stepX)
	bottom := math.Floor(minV/stepY) - 1
	top := math.Ceil(maxV / stepY)

	fwd := coords.Rotate(rad)
	var out []Placement
	for row := bottom; row <= top; row++ {
		for col := first; col <= last; col++ {
			p := fwd.Transform(coords.Point{X: col * stepX, Y: row * stepY})
			out = append(out, Placement{X: p.X, Y: p.Y, Degrees: g.Angle})
		}
	}
	return out
}
