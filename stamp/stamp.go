// Package stamp is the orchestrator: it parses an input PDF, renders a
// watermark string into a tiled Type 3 overlay on every page, and
// serializes the result. The boundary functions in this package are
// the only entry points a caller needs.
package stamp

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/sage-frank/pdfstamp/contentstream"
	"github.com/sage-frank/pdfstamp/coords"
	"github.com/sage-frank/pdfstamp/filters"
	"github.com/sage-frank/pdfstamp/fonts"
	"github.com/sage-frank/pdfstamp/ir/raw"
	"github.com/sage-frank/pdfstamp/ir/semantic"
	"github.com/sage-frank/pdfstamp/layout"
	"github.com/sage-frank/pdfstamp/observability"
	"github.com/sage-frank/pdfstamp/parser"
	"github.com/sage-frank/pdfstamp/recovery"
	"github.com/sage-frank/pdfstamp/writer"
)

// Spec configures one watermark run. It is read-only during
// processing; build it with DefaultSpec and override fields.
type Spec struct {
	Text     string
	FontSize float64
	Angle    float64 // degrees, counterclockwise
	Opacity  float64 // 0..1 fill and stroke alpha
	GapX     float64 // extra points between copies along the baseline
	GapY     float64 // extra points between baselines
	Color    [3]float64

	// Strict turns a missing glyph into a failed run instead of an
	// omitted character.
	Strict bool

	// SubsetFont reduces the font to the watermark's glyphs before
	// outline extraction. Purely a size optimization; a subsetting
	// failure falls back to the full font.
	SubsetFont bool

	Logger observability.Logger
}

// DefaultSpec returns the standard styling: 26 pt dark gray at 45
// degrees, barely-there alpha, copies spaced 30 pt apart horizontally
// and six text lines apart vertically.
func DefaultSpec() Spec {
	return Spec{
		FontSize: 26,
		Angle:    45,
		Opacity:  0.1,
		GapX:     30,
		GapY:     5 * 26,
		Color:    [3]float64{0.1, 0.1, 0.1},
	}
}

// Inject watermarks every page of the input document and returns the
// rewritten file. Any error means no output bytes; the input slice is
// never modified.
func Inject(ctx context.Context, input, fontData []byte, spec Spec) ([]byte, error) {
	log := spec.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	if spec.FontSize <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", spec.FontSize)
	}
	if spec.Opacity < 0 {
		spec.Opacity = 0
	} else if spec.Opacity > 1 {
		spec.Opacity = 1
	}

	var rec recovery.Strategy
	if spec.Strict {
		rec = recovery.NewStrictStrategy()
	} else {
		rec = recovery.NewLenientStrategy()
	}
	p := parser.NewDocumentParser(parser.Config{Recovery: rec, Logger: log})
	doc, err := p.ParseBytes(ctx, input)
	if err != nil {
		return nil, err
	}
	pages, err := semantic.Pages(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", parser.ErrMalformedDocument, err)
	}

	text := norm.NFC.String(spec.Text)
	if spec.SubsetFont {
		if sub, err := fonts.Subset(fontData, text); err == nil {
			fontData = sub
		} else {
			log.Warn("font subsetting failed, embedding full glyph set",
				observability.Error("err", err))
		}
	}
	font, err := fonts.Parse(fontData)
	if err != nil {
		return nil, err
	}

	usable, err := usableRunes(text, font, spec.Strict, log)
	if err != nil {
		return nil, err
	}
	if len(usable) == 0 {
		// Nothing to draw; the document passes through rewritten but
		// unchanged in content.
		log.Info("watermark text empty after glyph filtering, passing document through")
		return serialize(ctx, doc, log)
	}

	t3, err := buildType3Font(doc, font, usable)
	if err != nil {
		return nil, err
	}
	gstate := raw.Dict()
	gstate.SetKey("Type", raw.NameLiteral("ExtGState"))
	gstate.SetKey("ca", raw.NumberFloat(spec.Opacity))
	gstate.SetKey("CA", raw.NumberFloat(spec.Opacity))
	gsRef := doc.Add(gstate)

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stampPage(doc, page, t3, gsRef, text, spec); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	log.Info("watermark applied",
		observability.Int("pages", len(pages)),
		observability.Int("glyphs", len(usable)))
	return serialize(ctx, doc, log)
}

// usableRunes returns the distinct runes of text that the font can
// render, in first-appearance order. Missing glyphs and overflow past
// the Type 3 code capacity fail in strict mode and are dropped with a
// warning otherwise.
func usableRunes(text string, font *fonts.OutlineFont, strict bool, log observability.Logger) ([]rune, error) {
	var usable []rune
	seen := make(map[rune]bool)
	for _, r := range text {
		if seen[r] {
			continue
		}
		seen[r] = true
		if len(usable) >= maxType3Glyphs || !font.HasGlyph(r) {
			if strict {
				return nil, fmt.Errorf("%w: %q", fonts.ErrGlyphNotFound, r)
			}
			log.Warn("omitting character without glyph", observability.String("rune", string(r)))
			continue
		}
		usable = append(usable, r)
	}
	return usable, nil
}

// stampPage builds the page's overlay stream and wires the font and
// graphics state into its resources.
func stampPage(doc *raw.Document, page *semantic.Page, t3 *type3Font, gsRef raw.ObjectRef, text string, spec Spec) error {
	res := pageResources(doc, page)
	fontRes := ownedSubDict(doc, res, "Font")
	gsRes := ownedSubDict(doc, res, "ExtGState")
	fontName := freshName(fontRes, "FSw")
	gsName := freshName(gsRes, "GSw")
	fontRes.SetKey(fontName, raw.RefObj{R: t3.ref})
	gsRes.SetKey(gsName, raw.RefObj{R: gsRef})

	codes := t3.encode(text)
	stringWidth := t3.measure(text) * spec.FontSize / glyphSpaceUnits

	// Keep the watermark diagonal on screen: the page /Rotate turns the
	// rendered content, so the drawn angle compensates for it.
	grid := layout.Grid{
		PageWidth:   page.MediaBox.Width(),
		PageHeight:  page.MediaBox.Height(),
		StringWidth: stringWidth,
		LineHeight:  spec.FontSize,
		Angle:       spec.Angle + float64(page.Rotate),
		GapX:        spec.GapX,
		GapY:        spec.GapY,
	}

	b := contentstream.NewBuilder()
	for _, pl := range grid.Tile() {
		b.Save()
		b.SetExtGState(gsName)
		b.SetFillRGB(spec.Color[0], spec.Color[1], spec.Color[2])
		b.BeginText()
		b.SetFont(fontName, spec.FontSize)
		tm := coords.RotateDegrees(pl.Degrees).
			Multiply(coords.Translate(pl.X+page.MediaBox.LLX, pl.Y+page.MediaBox.LLY))
		b.SetTextMatrix(tm)
		b.ShowText(codes)
		b.EndText()
		b.Restore()
	}

	dict := raw.Dict()
	dict.SetKey("Filter", raw.NameLiteral("FlateDecode"))
	streamRef := doc.Add(raw.NewStream(dict, filters.FlateEncode(b.Bytes())))
	appendContents(doc, page, raw.RefObj{R: streamRef})
	return nil
}

// pageResources returns the page's own /Resources dictionary, creating
// one from the inherited dictionary when the page has none. Inherited
// dictionaries are cloned so sibling pages stay untouched.
func pageResources(doc *raw.Document, page *semantic.Page) *raw.DictObj {
	if obj, ok := page.Dict.GetKey("Resources"); ok {
		if d, ok := doc.Resolve(obj).(*raw.DictObj); ok {
			return d
		}
	}
	res := raw.Dict()
	if page.Resources != nil {
		if d, ok := doc.Resolve(page.Resources).(*raw.DictObj); ok {
			res = d.Clone()
		}
	}
	page.Dict.SetKey("Resources", res)
	return res
}

// ownedSubDict returns res[key] as a directly held dictionary,
// detaching indirect sub-dictionaries first so mutation cannot leak
// into objects other pages reference.
func ownedSubDict(doc *raw.Document, res *raw.DictObj, key string) *raw.DictObj {
	if obj, ok := res.GetKey(key); ok {
		if d, ok := obj.(*raw.DictObj); ok {
			return d
		}
		if d, ok := doc.Resolve(obj).(*raw.DictObj); ok {
			clone := d.Clone()
			res.SetKey(key, clone)
			return clone
		}
	}
	d := raw.Dict()
	res.SetKey(key, d)
	return d
}

func freshName(d *raw.DictObj, prefix string) string {
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, ok := d.GetKey(name); !ok {
			return name
		}
	}
}

// appendContents adds ref to the page's /Contents, promoting a single
// stream reference to an array. Existing streams keep their position,
// so the overlay paints last and therefore on top.
func appendContents(doc *raw.Document, page *semantic.Page, ref raw.RefObj) {
	obj, ok := page.Dict.GetKey("Contents")
	if !ok {
		page.Dict.SetKey("Contents", raw.NewArray(ref))
		return
	}
	switch o := obj.(type) {
	case *raw.ArrayObj:
		o.Append(ref)
	case raw.RefObj:
		if arr, ok := doc.Resolve(o).(*raw.ArrayObj); ok {
			arr.Append(ref)
			return
		}
		page.Dict.SetKey("Contents", raw.NewArray(o, ref))
	case *raw.StreamObj:
		// Direct content streams are off-spec; lift the stream into the
		// arena so the array can reference it.
		orig := doc.Add(o)
		page.Dict.SetKey("Contents", raw.NewArray(raw.RefObj{R: orig}, ref))
	default:
		page.Dict.SetKey("Contents", raw.NewArray(ref))
	}
}

func serialize(ctx context.Context, doc *raw.Document, log observability.Logger) ([]byte, error) {
	var buf bytes.Buffer
	if err := writer.New(log).Write(ctx, doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
