package stamp

import (
	"fmt"

	"github.com/sage-frank/pdfstamp/contentstream"
	"github.com/sage-frank/pdfstamp/filters"
	"github.com/sage-frank/pdfstamp/fonts"
	"github.com/sage-frank/pdfstamp/ir/raw"
)

// Character codes start past the PDF string delimiters and cover the
// printable byte range, so one Type 3 font carries at most 223 glyphs.
const (
	firstCharCode   = 33
	maxType3Glyphs  = 256 - firstCharCode
	glyphSpaceUnits = 1000.0
)

// type3Font is one synthetic font object in the arena: a /Type3 dict
// whose /CharProcs are the watermark glyph programs, with a private
// code assignment for the runes it carries.
type type3Font struct {
	ref    raw.ObjectRef
	codes  map[rune]byte
	widths map[rune]float64 // glyph space
}

// buildType3Font allocates the char procs and the font dictionary in
// doc. runes must already be filtered to glyphs the font has, in the
// order codes should be assigned.
func buildType3Font(doc *raw.Document, font *fonts.OutlineFont, runes []rune) (*type3Font, error) {
	if len(runes) == 0 || len(runes) > maxType3Glyphs {
		return nil, fmt.Errorf("type 3 font needs 1..%d glyphs, got %d", maxType3Glyphs, len(runes))
	}
	scale := glyphSpaceUnits / float64(font.UnitsPerEm())

	t := &type3Font{
		codes:  make(map[rune]byte, len(runes)),
		widths: make(map[rune]float64, len(runes)),
	}
	charProcs := raw.Dict()
	diffs := raw.NewArray(raw.NumberInt(firstCharCode))
	widths := raw.NewArray()

	var bbox [4]float64
	boxSet := false
	for i, r := range runes {
		outline, err := font.Outline(r)
		if err != nil {
			return nil, err
		}
		advance, err := font.Advance(r)
		if err != nil {
			return nil, err
		}

		program := contentstream.GlyphProgram(outline, advance, scale)
		dict := raw.Dict()
		dict.SetKey("Filter", raw.NameLiteral("FlateDecode"))
		procRef := doc.Add(raw.NewStream(dict, filters.FlateEncode(program)))

		name := glyphName(r)
		charProcs.SetKey(name, raw.RefObj{R: procRef})
		diffs.Append(raw.NameLiteral(name))

		width := advance * scale
		widths.Append(raw.NumberFloat(width))
		t.codes[r] = byte(firstCharCode + i)
		t.widths[r] = width

		if !outline.Empty() {
			if !boxSet {
				bbox = [4]float64{outline.MinX * scale, outline.MinY * scale, outline.MaxX * scale, outline.MaxY * scale}
				boxSet = true
			} else {
				bbox[0] = min(bbox[0], outline.MinX*scale)
				bbox[1] = min(bbox[1], outline.MinY*scale)
				bbox[2] = max(bbox[2], outline.MaxX*scale)
				bbox[3] = max(bbox[3], outline.MaxY*scale)
			}
		}
	}

	encoding := raw.Dict()
	encoding.SetKey("Type", raw.NameLiteral("Encoding"))
	encoding.SetKey("Differences", diffs)

	fontDict := raw.Dict()
	fontDict.SetKey("Type", raw.NameLiteral("Font"))
	fontDict.SetKey("Subtype", raw.NameLiteral("Type3"))
	fontDict.SetKey("FontMatrix", raw.NewArray(
		raw.NumberFloat(0.001), raw.NumberInt(0), raw.NumberInt(0),
		raw.NumberFloat(0.001), raw.NumberInt(0), raw.NumberInt(0)))
	fontDict.SetKey("FontBBox", raw.NewArray(
		raw.NumberFloat(bbox[0]), raw.NumberFloat(bbox[1]),
		raw.NumberFloat(bbox[2]), raw.NumberFloat(bbox[3])))
	fontDict.SetKey("CharProcs", charProcs)
	fontDict.SetKey("Encoding", encoding)
	fontDict.SetKey("FirstChar", raw.NumberInt(firstCharCode))
	fontDict.SetKey("LastChar", raw.NumberInt(int64(firstCharCode+len(runes)-1)))
	fontDict.SetKey("Widths", widths)

	t.ref = doc.Add(fontDict)
	return t, nil
}

// encode maps text to the font's private character codes, dropping
// runes the font does not carry.
func (t *type3Font) encode(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if code, ok := t.codes[r]; ok {
			out = append(out, code)
		}
	}
	return out
}

// measure returns the advance of text in glyph space units.
func (t *type3Font) measure(text string) float64 {
	var w float64
	for _, r := range text {
		w += t.widths[r]
	}
	return w
}

func glyphName(r rune) string { return fmt.Sprintf("uni%04X", r) }
