package fonts

import (
	"bytes"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// glyphClosure returns the glyph IDs referenced when text is shaped
// with the font. Shaping catches glyphs that a plain cmap lookup would
// miss (ligatures, contextual forms), so the subsetter unions this with
// direct lookups.
func glyphClosure(fontData []byte, text string) map[int]bool {
	if len(text) == 0 {
		return nil
	}
	face, err := gofont.ParseTTF(bytes.NewReader(fontData))
	if err != nil {
		return nil
	}

	shaper := &shaping.HarfbuzzShaper{}
	glyphs := make(map[int]bool)

	for _, run := range splitRuns([]rune(text)) {
		input := shaping.Input{
			Text:      run.runes,
			RunStart:  0,
			RunEnd:    len(run.runes),
			Direction: scriptDirection(run.script),
			Face:      face,
			Size:      fixed.Int26_6(64),
			Script:    run.script,
			Language:  language.DefaultLanguage(),
		}
		output := shaper.Shape(input)
		for _, g := range output.Glyphs {
			glyphs[int(g.GlyphID)] = true
		}
	}
	if len(glyphs) == 0 {
		return nil
	}
	return glyphs
}

type textRun struct {
	runes  []rune
	script language.Script
}

// splitRuns breaks text at script boundaries so each run shapes with a
// single script. Runes of unknown script join the preceding run.
func splitRuns(runes []rune) []textRun {
	var runs []textRun
	var cur textRun
	cur.script = language.Unknown
	for _, r := range runes {
		s := scriptFromRune(r)
		if s == language.Unknown || s == cur.script {
			cur.runes = append(cur.runes, r)
			continue
		}
		if cur.script == language.Unknown && len(cur.runes) > 0 {
			cur.script = s
			cur.runes = append(cur.runes, r)
			continue
		}
		if len(cur.runes) > 0 {
			if cur.script == language.Unknown {
				cur.script = language.Latin
			}
			runs = append(runs, cur)
		}
		cur = textRun{runes: []rune{r}, script: s}
	}
	if len(cur.runes) > 0 {
		if cur.script == language.Unknown {
			cur.script = language.Latin
		}
		runs = append(runs, cur)
	}
	return runs
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	}
	return language.Unknown
}
