package writer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sage-frank/pdfstamp/ir/raw"
	"github.com/sage-frank/pdfstamp/parser"
	"github.com/sage-frank/pdfstamp/recovery"
)

func buildOnePageDoc() *raw.Document {
	doc := raw.NewDocument()
	doc.Version = "1.7"

	catalog := raw.Dict()
	catalog.SetKey("Type", raw.NameLiteral("Catalog"))
	catalog.SetKey("Pages", raw.Ref(2, 0))
	doc.Put(raw.ObjectRef{Num: 1}, catalog)

	pages := raw.Dict()
	pages.SetKey("Type", raw.NameLiteral("Pages"))
	pages.SetKey("Kids", raw.NewArray(raw.Ref(3, 0)))
	pages.SetKey("Count", raw.NumberInt(1))
	doc.Put(raw.ObjectRef{Num: 2}, pages)

	page := raw.Dict()
	page.SetKey("Type", raw.NameLiteral("Page"))
	page.SetKey("Parent", raw.Ref(2, 0))
	page.SetKey("MediaBox", raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0),
		raw.NumberInt(612), raw.NumberInt(792)))
	page.SetKey("Contents", raw.Ref(4, 0))
	doc.Put(raw.ObjectRef{Num: 3}, page)

	stream := raw.Dict()
	doc.Put(raw.ObjectRef{Num: 4}, raw.NewStream(stream, []byte("BT ET")))

	doc.Trailer.SetKey("Root", raw.Ref(1, 0))
	doc.Trailer.SetKey("Size", raw.NumberInt(5))
	return doc
}

func TestWriteRoundTrip(t *testing.T) {
	doc := buildOnePageDoc()
	var buf bytes.Buffer
	if err := New(nil).Write(context.Background(), doc, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()

	if !bytes.HasPrefix(out, []byte("%PDF-1.7\n")) {
		t.Errorf("missing header, got %q", out[:16])
	}
	if !bytes.HasSuffix(out, []byte("%%EOF\n")) {
		t.Errorf("missing %%%%EOF")
	}

	p := parser.NewDocumentParser(parser.Config{Recovery: recovery.NewStrictStrategy()})
	got, err := p.ParseBytes(context.Background(), out)
	if err != nil {
		t.Fatalf("output does not parse back: %v", err)
	}
	if len(got.Objects) != 4 {
		t.Errorf("round trip object count = %d, want 4", len(got.Objects))
	}
	stream, ok := got.Get(raw.ObjectRef{Num: 4})
	if !ok {
		t.Fatal("stream object lost")
	}
	s, ok := stream.(*raw.StreamObj)
	if !ok {
		t.Fatalf("object 4 is %T, want stream", stream)
	}
	if string(s.Data) != "BT ET" {
		t.Errorf("stream data = %q", s.Data)
	}
}

func TestWriteDanglingReference(t *testing.T) {
	doc := buildOnePageDoc()
	page, _ := doc.Get(raw.ObjectRef{Num: 3})
	page.(*raw.DictObj).SetKey("Annots", raw.Ref(99, 0))

	err := New(nil).Write(context.Background(), doc, &bytes.Buffer{})
	if !errors.Is(err, ErrSerialization) {
		t.Fatalf("want ErrSerialization for dangling ref, got %v", err)
	}
}

func TestWriteEmptyDocument(t *testing.T) {
	err := New(nil).Write(context.Background(), raw.NewDocument(), &bytes.Buffer{})
	if !errors.Is(err, ErrSerialization) {
		t.Fatalf("want ErrSerialization, got %v", err)
	}
}

func TestWriteDropsPrev(t *testing.T) {
	doc := buildOnePageDoc()
	doc.Trailer.SetKey("Prev", raw.NumberInt(1234))

	var buf bytes.Buffer
	if err := New(nil).Write(context.Background(), doc, &buf); err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(buf.Bytes(), []byte("/Prev")) {
		t.Error("trailer still carries /Prev after full rewrite")
	}
}

func TestSerializeDictSortedKeys(t *testing.T) {
	d := raw.Dict()
	d.SetKey("Zebra", raw.NumberInt(1))
	d.SetKey("Alpha", raw.NumberInt(2))
	d.SetKey("Mid", raw.NumberInt(3))

	var buf bytes.Buffer
	if err := New(nil).SerializeObject(&buf, d); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	if strings.Index(s, "/Alpha") > strings.Index(s, "/Mid") ||
		strings.Index(s, "/Mid") > strings.Index(s, "/Zebra") {
		t.Errorf("keys not sorted: %s", s)
	}
}

func TestSerializeStringEscaping(t *testing.T) {
	var buf bytes.Buffer
	err := New(nil).SerializeObject(&buf, raw.Str([]byte("a(b)\\c\x01")))
	if err != nil {
		t.Fatal(err)
	}
	want := `(a\(b\)\\c\001)`
	if buf.String() != want {
		t.Errorf("escaped string = %q, want %q", buf.String(), want)
	}
}

func TestSerializeHexString(t *testing.T) {
	var buf bytes.Buffer
	err := New(nil).SerializeObject(&buf, raw.StringObj{Bytes: []byte{0xDE, 0xAD}, Hex: true})
	if err != nil {
		t.Fatal(err)
	}
	if buf.String() != "<DEAD>" {
		t.Errorf("hex string = %q", buf.String())
	}
}

func TestSerializeNameEscaping(t *testing.T) {
	var buf bytes.Buffer
	err := New(nil).SerializeObject(&buf, raw.NameLiteral("A B#/C"))
	if err != nil {
		t.Fatal(err)
	}
	if buf.String() != "/A#20B#23#2FC" {
		t.Errorf("escaped name = %q", buf.String())
	}
}

func TestWriteXrefOffsetsValid(t *testing.T) {
	doc := buildOnePageDoc()
	var buf bytes.Buffer
	if err := New(nil).Write(context.Background(), doc, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.Bytes()

	// Every in-use entry must point at an object header.
	idx := bytes.LastIndex(out, []byte("xref\n"))
	if idx < 0 {
		t.Fatal("no xref table")
	}
	lines := bytes.Split(out[idx:], []byte("\n"))
	for _, line := range lines {
		if len(line) != 19 || line[17] != 'n' {
			continue
		}
		var off int64
		for _, c := range line[:10] {
			off = off*10 + int64(c-'0')
		}
		rest := out[off:]
		if !bytes.Contains(rest[:20], []byte(" obj")) {
			t.Errorf("xref offset %d does not point at an object header: %q", off, rest[:20])
		}
	}
}
