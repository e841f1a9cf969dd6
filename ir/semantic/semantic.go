// Package semantic interprets raw document structure: the catalog, the
// page tree with its inheritable attributes, and per-page geometry.
package semantic

import (
	"github.com/sage-frank/pdfstamp/ir/raw"
)

// Rectangle is a PDF rectangle normalized so LL is really lower-left.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Letter is the fallback page size when no MediaBox is present
// anywhere on the inheritance path.
var Letter = Rectangle{0, 0, 612, 792}

// Page is a leaf of the page tree with inherited attributes applied.
// Dict is the page's own dictionary in the arena, so mutations through
// it are visible when the document is serialized. Resources and
// Contents are kept unresolved; they may be references.
type Page struct {
	Ref       raw.ObjectRef
	Dict      *raw.DictObj
	MediaBox  Rectangle
	Rotate    int
	Resources raw.Object
	Contents  raw.Object
}

func rectangleFromObj(obj raw.Object, resolve func(raw.Object) raw.Object) *Rectangle {
	arr, ok := resolve(obj).(*raw.ArrayObj)
	if !ok || arr.Len() != 4 {
		return nil
	}
	var vals [4]float64
	for i := 0; i < 4; i++ {
		item, _ := arr.Get(i)
		num, ok := resolve(item).(raw.NumberObj)
		if !ok {
			return nil
		}
		vals[i] = num.Float()
	}
	r := &Rectangle{LLX: vals[0], LLY: vals[1], URX: vals[2], URY: vals[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r
}
