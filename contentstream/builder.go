// Package contentstream builds PDF content streams: graphics state
// operators, text-showing sequences, and Type 3 glyph programs
// translated from font outlines.
package contentstream

import (
	"bytes"
	"strconv"

	"github.com/sage-frank/pdfstamp/coords"
)

// Builder accumulates content stream operators. Methods append in call
// order; Bytes returns the finished stream.
type Builder struct {
	buf bytes.Buffer
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Bytes() []byte { return b.buf.Bytes() }

func (b *Builder) op(name string, args ...float64) {
	for _, a := range args {
		b.buf.WriteString(fmtNum(a))
		b.buf.WriteByte(' ')
	}
	b.buf.WriteString(name)
	b.buf.WriteByte('\n')
}

func (b *Builder) Save()    { b.op("q") }
func (b *Builder) Restore() { b.op("Q") }

func (b *Builder) ConcatMatrix(m coords.Matrix) {
	b.op("cm", m[0], m[1], m[2], m[3], m[4], m[5])
}

func (b *Builder) SetExtGState(name string) {
	b.writeName(name)
	b.buf.WriteString(" gs\n")
}

func (b *Builder) SetFillGray(gray float64)    { b.op("g", gray) }
func (b *Builder) SetFillRGB(r, g, bl float64) { b.op("rg", r, g, bl) }
func (b *Builder) BeginText()                  { b.op("BT") }
func (b *Builder) EndText()                    { b.op("ET") }

func (b *Builder) SetTextMatrix(m coords.Matrix) {
	b.op("Tm", m[0], m[1], m[2], m[3], m[4], m[5])
}

func (b *Builder) SetFont(name string, size float64) {
	b.writeName(name)
	b.buf.WriteByte(' ')
	b.buf.WriteString(fmtNum(size))
	b.buf.WriteString(" Tf\n")
}

// ShowText emits a Tj with the string escaped per PDF 7.3.4.2.
func (b *Builder) ShowText(s []byte) {
	b.buf.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			b.buf.WriteByte('\\')
			b.buf.WriteByte(c)
		case '\n':
			b.buf.WriteString(`\n`)
		case '\r':
			b.buf.WriteString(`\r`)
		default:
			b.buf.WriteByte(c)
		}
	}
	b.buf.WriteString(") Tj\n")
}

func (b *Builder) MoveTo(x, y float64) { b.op("m", x, y) }
func (b *Builder) LineTo(x, y float64) { b.op("l", x, y) }
func (b *Builder) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	b.op("c", x1, y1, x2, y2, x3, y3)
}
func (b *Builder) ClosePath() { b.op("h") }
func (b *Builder) Fill()      { b.op("f") }

// SetGlyphMetrics emits d0, declaring a colored Type 3 glyph's advance.
func (b *Builder) SetGlyphMetrics(wx, wy float64) { b.op("d0", wx, wy) }

func (b *Builder) writeName(name string) {
	b.buf.WriteByte('/')
	b.buf.WriteString(name)
}

// fmtNum renders numbers compactly: no exponent form, at most four
// decimals, trailing zeros trimmed.
func fmtNum(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if bytes.ContainsRune([]byte(s), '.') {
		s = trimRight(s, '0')
		s = trimRight(s, '.')
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

func trimRight(s string, c byte) string {
	for len(s) > 0 && s[len(s)-1] == c {
		s = s[:len(s)-1]
	}
	return s
}
