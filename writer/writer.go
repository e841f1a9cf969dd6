// Package writer serializes a raw.Document back to PDF bytes: object
// bodies in ascending number order, a full classic cross-reference
// table, and a rebuilt trailer.
package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/sage-frank/pdfstamp/ir/raw"
	"github.com/sage-frank/pdfstamp/observability"
)

// ErrSerialization marks any failure to turn a document into bytes,
// including documents whose references point nowhere.
var ErrSerialization = errors.New("pdf serialization failed")

type Writer struct {
	log observability.Logger
}

func New(log observability.Logger) *Writer {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Writer{log: log}
}

// Write emits the whole document: header, every object, the xref table
// and trailer. The output is a standalone file, not an incremental
// update; /Prev is dropped from the trailer.
func (w *Writer) Write(ctx context.Context, doc *raw.Document, out io.Writer) error {
	if doc == nil || len(doc.Objects) == 0 {
		return fmt.Errorf("%w: empty document", ErrSerialization)
	}
	if err := w.validate(doc); err != nil {
		return err
	}

	var buf bytes.Buffer
	version := doc.Version
	if version == "" {
		version = "1.7"
	}
	fmt.Fprintf(&buf, "%%PDF-%s\n", version)
	// Binary marker comment keeps transfer tools from treating the file
	// as text.
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	refs := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})

	offsets := make(map[int]objEntry, len(refs))
	maxNum := 0
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		offsets[ref.Num] = objEntry{offset: int64(buf.Len()), gen: ref.Gen}
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		if err := w.SerializeObject(&buf, doc.Objects[ref]); err != nil {
			return err
		}
		buf.WriteString("\nendobj\n")
	}

	xrefPos := int64(buf.Len())
	w.writeXref(&buf, offsets, maxNum)
	w.writeTrailer(&buf, doc, maxNum+1, xrefPos)

	n, err := out.Write(buf.Bytes())
	if err != nil {
		return err
	}
	w.log.Debug("document serialized",
		observability.Int("objects", len(refs)),
		observability.Int("bytes", n))
	return nil
}

type objEntry struct {
	offset int64
	gen    int
}

// writeXref emits a single contiguous section from 0 to maxNum. Object
// numbers the document never used become free entries so the table
// stays dense.
func (w *Writer) writeXref(buf *bytes.Buffer, offsets map[int]objEntry, maxNum int) {
	fmt.Fprintf(buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if e, ok := offsets[num]; ok {
			fmt.Fprintf(buf, "%010d %05d n \n", e.offset, e.gen)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
}

func (w *Writer) writeTrailer(buf *bytes.Buffer, doc *raw.Document, size int, xrefPos int64) {
	trailer := raw.Dict()
	if doc.Trailer != nil {
		trailer = doc.Trailer.Clone()
	}
	trailer.SetKey("Size", raw.NumberInt(int64(size)))
	trailer.Delete("Prev")
	trailer.Delete("XRefStm")

	buf.WriteString("trailer\n")
	w.serializeDict(buf, trailer)
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)
}

// validate walks every reference in the document and fails on danglers
// before any bytes are committed.
func (w *Writer) validate(doc *raw.Document) error {
	if doc.Trailer != nil {
		if err := w.checkRefs(doc, doc.Trailer); err != nil {
			return err
		}
	}
	for _, obj := range doc.Objects {
		if err := w.checkRefs(doc, obj); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) checkRefs(doc *raw.Document, obj raw.Object) error {
	switch o := obj.(type) {
	case raw.RefObj:
		if _, ok := doc.Get(o.R); !ok {
			return fmt.Errorf("%w: dangling reference %s", ErrSerialization, o.R)
		}
	case *raw.ArrayObj:
		for _, item := range o.Items {
			if err := w.checkRefs(doc, item); err != nil {
				return err
			}
		}
	case *raw.DictObj:
		for _, v := range o.KV {
			if err := w.checkRefs(doc, v); err != nil {
				return err
			}
		}
	case *raw.StreamObj:
		return w.checkRefs(doc, o.Dict)
	}
	return nil
}

// SerializeObject writes one object body without the obj/endobj frame.
func (w *Writer) SerializeObject(buf *bytes.Buffer, obj raw.Object) error {
	switch o := obj.(type) {
	case *raw.StreamObj:
		dict := o.Dict.Clone()
		dict.SetKey("Length", raw.NumberInt(int64(len(o.Data))))
		w.serializeDict(buf, dict)
		buf.WriteString("\nstream\n")
		buf.Write(o.Data)
		buf.WriteString("\nendstream")
		return nil
	case *raw.DictObj:
		w.serializeDict(buf, o)
		return nil
	case *raw.ArrayObj:
		w.serializeArray(buf, o)
		return nil
	case nil:
		return fmt.Errorf("%w: nil object", ErrSerialization)
	default:
		return w.serializePrimitive(buf, obj)
	}
}

func (w *Writer) serializeDict(buf *bytes.Buffer, d *raw.DictObj) {
	keys := make([]string, 0, d.Len())
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteString("<<")
	for _, k := range keys {
		buf.WriteByte(' ')
		writeName(buf, k)
		buf.WriteByte(' ')
		w.serializeValue(buf, d.KV[k])
	}
	buf.WriteString(" >>")
}

func (w *Writer) serializeArray(buf *bytes.Buffer, a *raw.ArrayObj) {
	buf.WriteByte('[')
	for i, item := range a.Items {
		if i > 0 {
			buf.WriteByte(' ')
		}
		w.serializeValue(buf, item)
	}
	buf.WriteByte(']')
}

func (w *Writer) serializeValue(buf *bytes.Buffer, obj raw.Object) {
	switch o := obj.(type) {
	case *raw.DictObj:
		w.serializeDict(buf, o)
	case *raw.ArrayObj:
		w.serializeArray(buf, o)
	default:
		// Primitives cannot fail.
		_ = w.serializePrimitive(buf, obj)
	}
}

func (w *Writer) serializePrimitive(buf *bytes.Buffer, obj raw.Object) error {
	switch o := obj.(type) {
	case raw.NameObj:
		writeName(buf, o.Val)
	case raw.NumberObj:
		if o.IsInt {
			buf.WriteString(strconv.FormatInt(o.I, 10))
		} else {
			buf.WriteString(strconv.FormatFloat(o.F, 'f', -1, 64))
		}
	case raw.BoolObj:
		buf.WriteString(strconv.FormatBool(o.V))
	case raw.NullObj:
		buf.WriteString("null")
	case raw.RefObj:
		fmt.Fprintf(buf, "%d %d R", o.R.Num, o.R.Gen)
	case raw.StringObj:
		writeString(buf, o)
	default:
		return fmt.Errorf("%w: unknown object type %T", ErrSerialization, obj)
	}
	return nil
}

// writeName escapes name bytes outside the regular printable range
// with #-hex, per PDF 7.3.5.
func writeName(buf *bytes.Buffer, name string) {
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c > '~' || c == '#' ||
			c == '/' || c == '%' || c == '(' || c == ')' ||
			c == '<' || c == '>' || c == '[' || c == ']' || c == '{' || c == '}' {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}

func writeString(buf *bytes.Buffer, s raw.StringObj) {
	if s.Hex {
		buf.WriteByte('<')
		for _, c := range s.Bytes {
			fmt.Fprintf(buf, "%02X", c)
		}
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, c := range s.Bytes {
		switch {
		case c == '(' || c == ')' || c == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\r':
			buf.WriteString(`\r`)
		case c < ' ' || c == 0x7F:
			fmt.Fprintf(buf, `\%03o`, c)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}
