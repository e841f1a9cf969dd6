// Package parser assembles a raw.Document from a byte stream: xref
// resolution (with repair fallback), object loading, and structural
// validation of the result.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sage-frank/pdfstamp/ir/raw"
	"github.com/sage-frank/pdfstamp/observability"
	"github.com/sage-frank/pdfstamp/recovery"
	"github.com/sage-frank/pdfstamp/scanner"
	"github.com/sage-frank/pdfstamp/xref"
)

type Config struct {
	Recovery recovery.Strategy
	XRef     xref.ResolverConfig
	Limits   Limits
	Cache    Cache
	Logger   observability.Logger
}

// DocumentParser builds a raw.Document using xref tables and the
// object loader, then validates the reference graph.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.XRef.Recovery == nil {
		cfg.XRef.Recovery = cfg.Recovery
	}
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	resolver := xref.NewResolver(p.cfg.XRef)
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve xref: %v", ErrMalformedDocument, err)
	}
	if table.Repaired() {
		p.cfg.Logger.Warn("xref damaged, rebuilt by full scan")
	}

	trailer := table.Trailer()
	if _, ok := trailer.GetKey("Encrypt"); ok {
		return nil, ErrEncryptedDocument
	}

	loader := &objectLoader{
		reader:   r,
		table:    table,
		limits:   p.cfg.Limits,
		cache:    p.cfg.Cache,
		recovery: p.cfg.Recovery,
	}

	doc := raw.NewDocument()
	doc.Trailer = trailer
	doc.Version = detectHeaderVersion(r)

	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue // free list head
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		_, gen, found := table.Lookup(objNum)
		if !found {
			continue
		}
		ref := raw.ObjectRef{Num: objNum, Gen: gen}
		obj, err := loader.Load(ref)
		if err != nil {
			if p.skippable(err, ref) {
				p.cfg.Logger.Warn("skipping unloadable object",
					observability.Int("obj", objNum), observability.Error("err", err))
				continue
			}
			return nil, fmt.Errorf("%w: load object %d: %v", ErrMalformedDocument, objNum, err)
		}
		doc.Put(ref, obj)
	}

	if err := p.validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *DocumentParser) skippable(err error, ref raw.ObjectRef) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	action := p.cfg.Recovery.OnError(err, recovery.Location{
		ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "parser",
	})
	return action == recovery.ActionSkip || action == recovery.ActionFix || action == recovery.ActionWarn
}

// validate checks the invariants the rest of the pipeline relies on: a
// resolvable catalog with a page tree root, and a closed reference
// graph. A trailer that lost its /Root (repair of a truncated file)
// gets it back by scanning for the catalog.
func (p *DocumentParser) validate(doc *raw.Document) error {
	rootObj, ok := doc.Trailer.GetKey("Root")
	if !ok {
		ref, found := findCatalog(doc)
		if !found {
			return fmt.Errorf("%w: no document catalog", ErrMalformedDocument)
		}
		doc.Trailer.SetKey("Root", raw.RefObj{R: ref})
		rootObj = raw.RefObj{R: ref}
		p.cfg.Logger.Warn("trailer missing /Root, recovered catalog",
			observability.Int("obj", ref.Num))
	}
	catalog, ok := doc.Resolve(rootObj).(*raw.DictObj)
	if !ok {
		return fmt.Errorf("%w: /Root does not resolve to a dictionary", ErrMalformedDocument)
	}
	pagesObj, ok := catalog.GetKey("Pages")
	if !ok {
		return fmt.Errorf("%w: catalog has no /Pages", ErrMalformedDocument)
	}
	if _, ok := doc.Resolve(pagesObj).(*raw.DictObj); !ok {
		return fmt.Errorf("%w: /Pages does not resolve to a dictionary", ErrMalformedDocument)
	}

	// Every reference reachable from the catalog must resolve. The
	// whole-arena check would false-positive on orphaned objects left
	// behind by incremental updates, so the walk starts at the roots.
	seen := make(map[raw.ObjectRef]bool)
	var walk func(obj raw.Object) error
	walk = func(obj raw.Object) error {
		switch v := obj.(type) {
		case raw.RefObj:
			if seen[v.R] {
				return nil
			}
			seen[v.R] = true
			target, ok := doc.Get(v.R)
			if !ok {
				return fmt.Errorf("%w: dangling reference %v", ErrMalformedDocument, v.R)
			}
			return walk(target)
		case *raw.ArrayObj:
			for _, item := range v.Items {
				if err := walk(item); err != nil {
					return err
				}
			}
		case *raw.DictObj:
			for _, item := range v.KV {
				if err := walk(item); err != nil {
					return err
				}
			}
		case *raw.StreamObj:
			return walk(v.Dict)
		}
		return nil
	}
	return walk(doc.Trailer)
}

func findCatalog(doc *raw.Document) (raw.ObjectRef, bool) {
	for ref, obj := range doc.Objects {
		dict, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		if t, ok := dict.GetKey("Type"); ok {
			if name, ok := t.(raw.NameObj); ok && name.Val == "Catalog" {
				return ref, true
			}
		}
	}
	return raw.ObjectRef{}, false
}

func detectHeaderVersion(r io.ReaderAt) string {
	buf := make([]byte, 64)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	line := string(buf[:n])
	for _, sep := range []string{"\r\n", "\n", "\r"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			line = line[:idx]
			break
		}
	}
	if strings.HasPrefix(line, "%PDF-") && len(line) >= 8 {
		return strings.TrimSpace(line[5:])
	}
	return ""
}

// ParseBytes is a convenience wrapper over Parse for in-memory input.
func (p *DocumentParser) ParseBytes(ctx context.Context, data []byte) (*raw.Document, error) {
	return p.Parse(ctx, bytesReaderAt(data))
}

type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

var _ scanner.ReaderAt = bytesReaderAt(nil)
