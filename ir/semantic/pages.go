package semantic

import (
	"errors"
	"fmt"

	"github.com/sage-frank/pdfstamp/ir/raw"
)

const maxTreeDepth = 64

var errPageTree = errors.New("invalid page tree")

type inheritedProps struct {
	MediaBox  *Rectangle
	Rotate    *int
	Resources raw.Object
}

// Pages walks the page tree and returns leaves in document order with
// inherited MediaBox, Rotate and Resources applied.
func Pages(doc *raw.Document) ([]*Page, error) {
	rootObj, ok := doc.Trailer.GetKey("Root")
	if !ok {
		return nil, fmt.Errorf("%w: trailer has no /Root", errPageTree)
	}
	catalog, ok := doc.Resolve(rootObj).(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("%w: catalog is not a dictionary", errPageTree)
	}
	pagesObj, ok := catalog.GetKey("Pages")
	if !ok {
		return nil, fmt.Errorf("%w: catalog has no /Pages", errPageTree)
	}
	visited := make(map[raw.ObjectRef]bool)
	return walkPages(doc, pagesObj, inheritedProps{}, visited, 0)
}

func walkPages(doc *raw.Document, obj raw.Object, inherited inheritedProps, visited map[raw.ObjectRef]bool, depth int) ([]*Page, error) {
	if depth > maxTreeDepth {
		return nil, fmt.Errorf("%w: tree too deep", errPageTree)
	}
	var selfRef raw.ObjectRef
	if ref, ok := obj.(raw.RefObj); ok {
		if visited[ref.R] {
			return nil, fmt.Errorf("%w: cycle at %v", errPageTree, ref.R)
		}
		visited[ref.R] = true
		selfRef = ref.R
	}
	dict, ok := doc.Resolve(obj).(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("%w: node is not a dictionary", errPageTree)
	}

	next := inherited
	if mbObj, ok := dict.GetKey("MediaBox"); ok {
		if mb := rectangleFromObj(mbObj, doc.Resolve); mb != nil {
			next.MediaBox = mb
		}
	}
	if rotObj, ok := dict.GetKey("Rotate"); ok {
		if r, ok := doc.Resolve(rotObj).(raw.NumberObj); ok {
			val := normalizeRotation(int(r.Int()))
			next.Rotate = &val
		}
	}
	if resObj, ok := dict.GetKey("Resources"); ok {
		next.Resources = resObj
	}

	if isLeafPage(dict) {
		return []*Page{makePage(selfRef, dict, next)}, nil
	}

	kidsObj, ok := dict.GetKey("Kids")
	if !ok {
		return nil, fmt.Errorf("%w: pages node missing /Kids", errPageTree)
	}
	kids, ok := doc.Resolve(kidsObj).(*raw.ArrayObj)
	if !ok {
		return nil, fmt.Errorf("%w: /Kids is not an array", errPageTree)
	}
	var pages []*Page
	for _, kid := range kids.Items {
		sub, err := walkPages(doc, kid, next, visited, depth+1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, sub...)
	}
	return pages, nil
}

func isLeafPage(dict *raw.DictObj) bool {
	if t, ok := dict.GetKey("Type"); ok {
		if name, ok := t.(raw.NameObj); ok {
			return name.Val == "Page"
		}
	}
	// No /Type: infer from /Kids presence.
	_, hasKids := dict.GetKey("Kids")
	return !hasKids
}

func makePage(ref raw.ObjectRef, dict *raw.DictObj, props inheritedProps) *Page {
	page := &Page{Ref: ref, Dict: dict}
	if props.MediaBox != nil {
		page.MediaBox = *props.MediaBox
	} else {
		page.MediaBox = Letter
	}
	if props.Rotate != nil {
		page.Rotate = *props.Rotate
	}
	page.Resources = props.Resources
	if contents, ok := dict.GetKey("Contents"); ok {
		page.Contents = contents
	}
	return page
}

func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	// Rotation is constrained to multiples of 90; snap anything else.
	return deg - deg%90
}
