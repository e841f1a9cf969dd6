package fonts

import (
	"errors"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestParseAndMetrics(t *testing.T) {
	f, err := Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.UnitsPerEm() != 2048 {
		t.Errorf("unitsPerEm = %d, want 2048", f.UnitsPerEm())
	}
	adv, err := f.Advance('A')
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if adv <= 0 || adv > float64(f.UnitsPerEm()) {
		t.Errorf("advance of A = %v, out of range", adv)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not a font")); !errors.Is(err, ErrFontLoad) {
		t.Fatalf("want ErrFontLoad, got %v", err)
	}
	if _, err := Parse(nil); !errors.Is(err, ErrFontLoad) {
		t.Fatalf("want ErrFontLoad for empty data, got %v", err)
	}
}

func TestOutline(t *testing.T) {
	f, err := Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	o, err := f.Outline('A')
	if err != nil {
		t.Fatalf("Outline: %v", err)
	}
	if o.Empty() {
		t.Fatal("outline of A should not be empty")
	}
	if o.Segments[0].Op != SegMoveTo {
		t.Errorf("outline should start with a move, got op %d", o.Segments[0].Op)
	}
	// PDF glyph space has y up: a capital letter lives above the
	// baseline.
	if o.MaxY <= 0 {
		t.Errorf("MaxY = %v, want above baseline", o.MaxY)
	}
	if o.MaxX <= o.MinX || o.MaxY <= o.MinY {
		t.Errorf("degenerate bounds: %+v", o)
	}
}

func TestMissingGlyph(t *testing.T) {
	f, err := Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	// Private use area rune is not mapped in Go Regular.
	if f.HasGlyph('\uE000') {
		t.Skip("font unexpectedly maps U+E000")
	}
	if _, err := f.Outline('\uE000'); !errors.Is(err, ErrGlyphNotFound) {
		t.Fatalf("want ErrGlyphNotFound, got %v", err)
	}
	if _, err := f.Advance('\uE000'); !errors.Is(err, ErrGlyphNotFound) {
		t.Fatalf("want ErrGlyphNotFound, got %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	f, err := Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for _, r := range "Watermark 0123456789" {
				if r == ' ' {
					continue
				}
				if _, err := f.Outline(r); err != nil {
					t.Errorf("Outline(%q): %v", r, err)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
