// Package raw holds the byte-faithful object model: the eight PDF
// object kinds, indirect references, and the Document arena that maps
// object numbers to parsed values. Nothing in this package interprets
// document structure; that is the semantic layer's job.
package raw

import (
	"context"
	"fmt"
	"io"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Keys() []Name
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a raw (undecoded) PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
	IsHex() bool
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object.
type Null interface{ Object }

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// Document is the arena of indirect objects plus the trailer that
// anchors them. Mutation happens through Put and Add; readers go
// through Get and Resolve.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g., "1.7"
}

func NewDocument() *Document {
	return &Document{Objects: make(map[ObjectRef]Object), Trailer: Dict()}
}

// Put stores obj under ref, replacing any previous value.
func (d *Document) Put(ref ObjectRef, obj Object) {
	if d.Objects == nil {
		d.Objects = make(map[ObjectRef]Object)
	}
	d.Objects[ref] = obj
}

// Add stores obj under the next free object number and returns its ref.
func (d *Document) Add(obj Object) ObjectRef {
	ref := ObjectRef{Num: d.MaxNum() + 1, Gen: 0}
	d.Put(ref, obj)
	return ref
}

// Get looks up an object by reference. A generation mismatch falls back
// to matching on object number alone, which tolerates files whose xref
// generations disagree with the object headers.
func (d *Document) Get(ref ObjectRef) (Object, bool) {
	if obj, ok := d.Objects[ref]; ok {
		return obj, true
	}
	for r, obj := range d.Objects {
		if r.Num == ref.Num {
			return obj, true
		}
	}
	return nil, false
}

// Resolve follows reference chains until a direct object is reached.
// Unresolvable or cyclic chains yield NullObj.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		obj, ok = d.Get(ref.R)
		if !ok {
			return NullObj{}
		}
	}
	return NullObj{}
}

// MaxNum returns the highest object number in use, 0 when empty.
func (d *Document) MaxNum() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}
