// Package fonts loads TrueType/OpenType fonts and exposes glyph
// outlines and metrics in font units, plus a retain-gids subsetter and
// a concurrency-safe face cache.
package fonts

import (
	"errors"
	"fmt"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

var (
	// ErrFontLoad reports font bytes that cannot be parsed.
	ErrFontLoad = errors.New("font load failed")

	// ErrGlyphNotFound reports a rune with no glyph in the font's cmap.
	ErrGlyphNotFound = errors.New("glyph not found")
)

type Point struct{ X, Y float64 }

type SegmentOp int

const (
	SegMoveTo SegmentOp = iota
	SegLineTo
	SegQuadTo
	SegCubeTo
)

// Segment is one outline operation. MoveTo and LineTo use Args[0],
// QuadTo Args[0:2], CubeTo all three. Coordinates are font units with
// y growing upward.
type Segment struct {
	Op   SegmentOp
	Args [3]Point
}

type Outline struct {
	Segments               []Segment
	MinX, MinY, MaxX, MaxY float64
}

func (o Outline) Empty() bool { return len(o.Segments) == 0 }

// OutlineFont wraps a parsed sfnt face. All methods are safe for
// concurrent use; the shared sfnt buffer is mutex-guarded.
type OutlineFont struct {
	data []byte
	font *sfnt.Font
	upem sfnt.Units
	ppem fixed.Int26_6

	mu  sync.Mutex
	buf sfnt.Buffer
}

func Parse(data []byte) (*OutlineFont, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty font data", ErrFontLoad)
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontLoad, err)
	}
	upem := font.UnitsPerEm()
	if upem == 0 {
		return nil, fmt.Errorf("%w: invalid unitsPerEm", ErrFontLoad)
	}
	// At ppem == unitsPerEm the 26.6 coordinates are whole font units.
	return &OutlineFont{
		data: data,
		font: font,
		upem: upem,
		ppem: fixed.Int26_6(upem << 6),
	}, nil
}

func (f *OutlineFont) UnitsPerEm() int { return int(f.upem) }

// Data returns the original font bytes.
func (f *OutlineFont) Data() []byte { return f.data }

func (f *OutlineFont) PostScriptName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, _ := f.font.Name(&f.buf, sfnt.NameIDPostScript)
	return name
}

func (f *OutlineFont) glyphIndex(r rune) (sfnt.GlyphIndex, error) {
	x, err := f.font.GlyphIndex(&f.buf, r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFontLoad, err)
	}
	if x == 0 {
		return 0, fmt.Errorf("%w: %q", ErrGlyphNotFound, r)
	}
	return x, nil
}

func (f *OutlineFont) HasGlyph(r rune) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.glyphIndex(r)
	return err == nil
}

// Advance returns the horizontal advance of r in font units.
func (f *OutlineFont) Advance(r rune) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	x, err := f.glyphIndex(r)
	if err != nil {
		return 0, err
	}
	adv, err := f.font.GlyphAdvance(&f.buf, x, f.ppem, xfont.HintingNone)
	if err != nil {
		return 0, fmt.Errorf("%w: advance: %v", ErrFontLoad, err)
	}
	return fromFixed(adv), nil
}

// Outline returns the glyph outline for r in font units. sfnt delivers
// rasterizer-convention coordinates (y down); they are flipped here so
// y grows upward as in glyph space.
func (f *OutlineFont) Outline(r rune) (Outline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	x, err := f.glyphIndex(r)
	if err != nil {
		return Outline{}, err
	}
	segments, err := f.font.LoadGlyph(&f.buf, x, f.ppem, nil)
	if err != nil {
		return Outline{}, fmt.Errorf("%w: outline: %v", ErrFontLoad, err)
	}

	out := Outline{}
	first := true
	grow := func(p Point) {
		if first {
			out.MinX, out.MaxX = p.X, p.X
			out.MinY, out.MaxY = p.Y, p.Y
			first = false
			return
		}
		if p.X < out.MinX {
			out.MinX = p.X
		}
		if p.X > out.MaxX {
			out.MaxX = p.X
		}
		if p.Y < out.MinY {
			out.MinY = p.Y
		}
		if p.Y > out.MaxY {
			out.MaxY = p.Y
		}
	}

	for _, seg := range segments {
		s := Segment{}
		var nArgs int
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			s.Op, nArgs = SegMoveTo, 1
		case sfnt.SegmentOpLineTo:
			s.Op, nArgs = SegLineTo, 1
		case sfnt.SegmentOpQuadTo:
			s.Op, nArgs = SegQuadTo, 2
		case sfnt.SegmentOpCubeTo:
			s.Op, nArgs = SegCubeTo, 3
		default:
			continue
		}
		for i := 0; i < nArgs; i++ {
			p := Point{
				X: fromFixed(seg.Args[i].X),
				Y: -fromFixed(seg.Args[i].Y),
			}
			s.Args[i] = p
			grow(p)
		}
		out.Segments = append(out.Segments, s)
	}
	return out, nil
}

func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64.0 }
