package fonts

import (
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestSubsetShrinksAndStaysParseable(t *testing.T) {
	sub, err := Subset(goregular.TTF, "Alice-2026")
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}
	if len(sub) >= len(goregular.TTF) {
		t.Errorf("subset not smaller: %d >= %d", len(sub), len(goregular.TTF))
	}

	f, err := Parse(sub)
	if err != nil {
		t.Fatalf("subset does not parse: %v", err)
	}
	for _, r := range "Alice-2026" {
		o, err := f.Outline(r)
		if err != nil {
			t.Errorf("Outline(%q) after subsetting: %v", r, err)
			continue
		}
		if o.Empty() {
			t.Errorf("glyph %q lost its outline", r)
		}
	}
}

func TestSubsetDropsUnusedOutlines(t *testing.T) {
	sub, err := Subset(goregular.TTF, "A")
	if err != nil {
		t.Fatal(err)
	}
	f, err := Parse(sub)
	if err != nil {
		t.Fatal(err)
	}
	// Glyph IDs are retained, so the cmap still maps unused runes, but
	// their glyph data is gone.
	if o, err := f.Outline('Q'); err == nil && !o.Empty() {
		t.Error("unused glyph Q kept its outline data")
	}
}

func TestSubsetAdvancesPreserved(t *testing.T) {
	orig, err := Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := Subset(goregular.TTF, "Wm")
	if err != nil {
		t.Fatal(err)
	}
	f, err := Parse(sub)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range "Wm" {
		want, _ := orig.Advance(r)
		got, err := f.Advance(r)
		if err != nil {
			t.Fatalf("Advance(%q): %v", r, err)
		}
		if got != want {
			t.Errorf("advance of %q changed: %v != %v", r, got, want)
		}
	}
}
