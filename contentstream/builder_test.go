package contentstream

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sage-frank/pdfstamp/coords"
	"github.com/sage-frank/pdfstamp/fonts"
)

func TestBuilderOperators(t *testing.T) {
	b := NewBuilder()
	b.Save()
	b.SetExtGState("GS0")
	b.SetFillRGB(0.1, 0.1, 0.1)
	b.BeginText()
	b.SetFont("F0", 26)
	b.SetTextMatrix(coords.Translate(100, 200))
	b.ShowText([]byte("Hi"))
	b.EndText()
	b.Restore()

	want := strings.Join([]string{
		"q",
		"/GS0 gs",
		"0.1 0.1 0.1 rg",
		"BT",
		"/F0 26 Tf",
		"1 0 0 1 100 200 Tm",
		"(Hi) Tj",
		"ET",
		"Q",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, string(b.Bytes())); diff != "" {
		t.Errorf("operator stream mismatch (-want +got):\n%s", diff)
	}
}

func TestShowTextEscaping(t *testing.T) {
	b := NewBuilder()
	b.ShowText([]byte(`a(b)c\d`))
	got := string(b.Bytes())
	want := `(a\(b\)c\\d) Tj` + "\n"
	if got != want {
		t.Errorf("escaped string = %q, want %q", got, want)
	}
}

func TestNumberFormatting(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{-1.5, "-1.5"},
		{0.100, "0.1"},
		{612.0, "612"},
		{0.33333333, "0.3333"},
		{-0.00001, "0"},
	}
	for _, c := range cases {
		if got := fmtNum(c.in); got != c.want {
			t.Errorf("fmtNum(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGlyphProgramSquare(t *testing.T) {
	outline := fonts.Outline{
		Segments: []fonts.Segment{
			{Op: fonts.SegMoveTo, Args: [3]fonts.Point{{X: 0, Y: 0}}},
			{Op: fonts.SegLineTo, Args: [3]fonts.Point{{X: 1000, Y: 0}}},
			{Op: fonts.SegLineTo, Args: [3]fonts.Point{{X: 1000, Y: 1000}}},
			{Op: fonts.SegLineTo, Args: [3]fonts.Point{{X: 0, Y: 1000}}},
		},
	}
	// scale for a 2000 upem face: glyph space coordinates halve.
	got := string(GlyphProgram(outline, 1200, 0.5))
	want := strings.Join([]string{
		"600 0 d0",
		"0 0 m",
		"500 0 l",
		"500 500 l",
		"0 500 l",
		"h",
		"f",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("glyph program mismatch (-want +got):\n%s", diff)
	}
}

func TestGlyphProgramQuadraticPromotion(t *testing.T) {
	outline := fonts.Outline{
		Segments: []fonts.Segment{
			{Op: fonts.SegMoveTo, Args: [3]fonts.Point{{X: 0, Y: 0}}},
			{Op: fonts.SegQuadTo, Args: [3]fonts.Point{{X: 300, Y: 600}, {X: 600, Y: 0}}},
		},
	}
	got := string(GlyphProgram(outline, 600, 1))
	// Control points at two thirds toward the quadratic control.
	want := strings.Join([]string{
		"600 0 d0",
		"0 0 m",
		"200 400 400 400 600 0 c",
		"h",
		"f",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("promoted curve mismatch (-want +got):\n%s", diff)
	}
}

func TestGlyphProgramEmptyOutline(t *testing.T) {
	got := string(GlyphProgram(fonts.Outline{}, 500, 1))
	want := "500 0 d0\nf\n"
	if got != want {
		t.Errorf("empty outline program = %q, want %q", got, want)
	}
}
