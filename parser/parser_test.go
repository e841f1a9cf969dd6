package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sage-frank/pdfstamp/ir/raw"
	"github.com/sage-frank/pdfstamp/recovery"

	"errors"
)

// pdfBuilder assembles synthetic PDFs with accurate xref offsets.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
	maxNum  int
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int)}
	b.buf.WriteString("%PDF-1.4\n")
	return b
}

func (b *pdfBuilder) obj(num int, body string) *pdfBuilder {
	b.offsets[num] = b.buf.Len()
	if num > b.maxNum {
		b.maxNum = num
	}
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
	return b
}

func (b *pdfBuilder) streamObj(num int, dict, data string) *pdfBuilder {
	b.offsets[num] = b.buf.Len()
	if num > b.maxNum {
		b.maxNum = num
	}
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nstream\n%s\nendstream\nendobj\n", num, dict, data)
	return b
}

func (b *pdfBuilder) finish(trailerExtra string) []byte {
	xrefAt := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", b.maxNum+1)
	b.buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= b.maxNum; i++ {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", b.offsets[i])
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\n", b.maxNum+1, trailerExtra)
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", xrefAt)
	return b.buf.Bytes()
}

func onePagePDF() []byte {
	content := "BT /F1 24 Tf 72 712 Td (Hi) Tj ET"
	return newPDFBuilder().
		obj(1, "<< /Type /Catalog /Pages 2 0 R >>").
		obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>").
		obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>").
		streamObj(4, fmt.Sprintf("<< /Length %d >>", len(content)), content).
		finish("")
}

func TestParseSimpleDocument(t *testing.T) {
	p := NewDocumentParser(Config{})
	doc, err := p.ParseBytes(context.Background(), onePagePDF())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Version != "1.4" {
		t.Errorf("version = %q, want 1.4", doc.Version)
	}
	if len(doc.Objects) != 4 {
		t.Errorf("got %d objects, want 4", len(doc.Objects))
	}
	rootObj, _ := doc.Trailer.GetKey("Root")
	catalog, ok := doc.Resolve(rootObj).(*raw.DictObj)
	if !ok {
		t.Fatal("catalog did not resolve")
	}
	if typ, _ := catalog.GetKey("Type"); typ.(raw.NameObj).Val != "Catalog" {
		t.Errorf("unexpected catalog type: %v", typ)
	}
	stream, ok := doc.Resolve(raw.Ref(4, 0)).(*raw.StreamObj)
	if !ok {
		t.Fatal("content stream did not load as stream")
	}
	if !bytes.Contains(stream.Data, []byte("Tj")) {
		t.Errorf("stream payload wrong: %q", stream.Data)
	}
}

func TestParseIndirectStreamLength(t *testing.T) {
	content := "0 0 100 100 re f"
	data := newPDFBuilder().
		obj(1, "<< /Type /Catalog /Pages 2 0 R >>").
		obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>").
		obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>").
		streamObj(4, "<< /Length 5 0 R >>", content).
		obj(5, fmt.Sprintf("%d", len(content))).
		finish("")

	p := NewDocumentParser(Config{})
	doc, err := p.ParseBytes(context.Background(), data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stream := doc.Resolve(raw.Ref(4, 0)).(*raw.StreamObj)
	if string(stream.Data) != content {
		t.Errorf("payload = %q, want %q", stream.Data, content)
	}
}

func TestParseRejectsEncrypted(t *testing.T) {
	data := newPDFBuilder().
		obj(1, "<< /Type /Catalog /Pages 2 0 R >>").
		obj(2, "<< /Type /Pages /Kids [] /Count 0 >>").
		obj(3, "<< /Filter /Standard /V 2 /R 3 >>").
		finish(" /Encrypt 3 0 R")

	p := NewDocumentParser(Config{})
	_, err := p.ParseBytes(context.Background(), data)
	if !errors.Is(err, ErrEncryptedDocument) {
		t.Fatalf("want ErrEncryptedDocument, got %v", err)
	}
}

func TestParseRejectsDanglingReference(t *testing.T) {
	data := newPDFBuilder().
		obj(1, "<< /Type /Catalog /Pages 2 0 R >>").
		obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>").
		obj(3, "<< /Type /Page /Parent 2 0 R /Contents 9 0 R >>").
		finish("")

	p := NewDocumentParser(Config{})
	_, err := p.ParseBytes(context.Background(), data)
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("want ErrMalformedDocument, got %v", err)
	}
}

func TestParseRepairsBrokenXref(t *testing.T) {
	data := string(onePagePDF())
	broken := strings.Replace(data, "startxref", "startxrEf", 1)

	p := NewDocumentParser(Config{Recovery: recovery.NewLenientStrategy()})
	doc, err := p.ParseBytes(context.Background(), []byte(broken))
	if err != nil {
		t.Fatalf("Parse with repair: %v", err)
	}
	if _, ok := doc.Resolve(raw.Ref(3, 0)).(*raw.DictObj); !ok {
		t.Fatal("page object missing after repair")
	}
}

func TestParseGarbageFails(t *testing.T) {
	p := NewDocumentParser(Config{})
	_, err := p.ParseBytes(context.Background(), []byte("this is not a pdf at all"))
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("want ErrMalformedDocument, got %v", err)
	}
}
