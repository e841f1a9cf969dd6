package parser

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sage-frank/pdfstamp/ir/raw"
	"github.com/sage-frank/pdfstamp/recovery"
	"github.com/sage-frank/pdfstamp/scanner"
	"github.com/sage-frank/pdfstamp/xref"
)

// Cache lets callers reuse loaded objects across parses. It must be
// safe for concurrent use.
type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

// objectLoader parses individual indirect objects at xref offsets.
type objectLoader struct {
	reader   io.ReaderAt
	table    xref.Table
	scanner  scanner.Scanner
	limits   Limits
	cache    Cache
	recovery recovery.Strategy
	mu       sync.Mutex
}

// Limits bounds resource use while parsing hostile files.
type Limits struct {
	MaxStringLength int64
	MaxStreamLength int64
	MaxNestingDepth int
}

func DefaultLimits() Limits {
	return Limits{
		MaxStringLength: 16 << 20,
		MaxStreamLength: 256 << 20,
		MaxNestingDepth: 64,
	}
}

func (o *objectLoader) Load(ref raw.ObjectRef) (raw.Object, error) {
	if o.cache != nil {
		if obj, ok := o.cache.Get(ref); ok {
			return obj, nil
		}
	}
	obj, err := o.loadOnce(ref)
	if err != nil {
		return nil, err
	}
	if o.cache != nil {
		o.cache.Put(ref, obj)
	}
	return obj, nil
}

func (o *objectLoader) loadOnce(ref raw.ObjectRef) (raw.Object, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	offset, gen, found := o.table.Lookup(ref.Num)
	if !found {
		return nil, fmt.Errorf("object %d not found in xref", ref.Num)
	}
	if o.scanner == nil {
		o.scanner = scanner.New(o.reader, o.scannerConfig())
	}
	return o.scanObject(o.scanner, ref.Num, offset, gen)
}

func (o *objectLoader) scannerConfig() scanner.Config {
	return scanner.Config{
		Recovery:        o.recovery,
		MaxStringLength: o.limits.MaxStringLength,
		MaxStreamLength: o.limits.MaxStreamLength,
		MaxArrayDepth:   o.limits.MaxNestingDepth,
		MaxDictDepth:    o.limits.MaxNestingDepth,
	}
}

func (o *objectLoader) scanObject(s scanner.Scanner, objNum int, offset int64, gen int) (raw.Object, error) {
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	s.SetRecoveryLocation(recovery.Location{ObjectNum: objNum, ObjectGen: gen, Component: "loader"})
	tr := newTokenReader(s)

	// Expect "<objNum> <gen> obj"
	tokNum, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokNum.Type != scanner.TokenNumber || !tokNum.IsInt || int(tokNum.Int) != objNum {
		return nil, fmt.Errorf("object %d: header number mismatch at offset %d", objNum, offset)
	}
	tokGen, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt {
		return nil, fmt.Errorf("object %d: header generation missing", objNum)
	}
	tokObj, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokObj.Type != scanner.TokenKeyword || tokObj.Keyword != "obj" {
		return nil, fmt.Errorf("object %d: expected obj keyword", objNum)
	}

	obj, err := parseObject(tr, o.recovery, objNum, gen)
	if err != nil {
		return nil, err
	}
	if dict, ok := obj.(*raw.DictObj); ok {
		hint, err := o.resolveStreamLength(dict)
		if err != nil {
			return nil, err
		}
		if hint > 0 {
			tr.setStreamLengthHint(hint)
		} else {
			tr.clearStreamLengthHint()
		}
		if streamTok, err := tr.next(); err == nil && streamTok.Type == scanner.TokenStream {
			obj = raw.NewStream(dict, streamTok.Bytes)
		} else if err == nil {
			tr.unread(streamTok)
		}
	}
	return obj, nil
}

// resolveStreamLength returns the declared /Length, following an
// indirect reference with a throwaway scanner so the shared cursor is
// not disturbed.
func (o *objectLoader) resolveStreamLength(dict *raw.DictObj) (int64, error) {
	val, ok := dict.GetKey("Length")
	if !ok {
		return 0, nil
	}
	switch v := val.(type) {
	case raw.NumberObj:
		return v.Int(), nil
	case raw.RefObj:
		offset, gen, ok := o.table.Lookup(v.R.Num)
		if !ok {
			return 0, nil
		}
		tmp := scanner.New(o.reader, o.scannerConfig())
		obj, err := o.scanObject(tmp, v.R.Num, offset, gen)
		if err != nil {
			return 0, err
		}
		if num, ok := obj.(raw.NumberObj); ok {
			return num.Int(), nil
		}
		return 0, fmt.Errorf("length reference %v is not numeric", v.R)
	default:
		return 0, nil
	}
}

type streamLengthSetter interface{ SetNextStreamLength(int64) }

type tokenReader struct {
	s            interface{ Next() (scanner.Token, error) }
	buf          []scanner.Token
	lengthSetter streamLengthSetter
}

func newTokenReader(src interface{ Next() (scanner.Token, error) }) *tokenReader {
	tr := &tokenReader{s: src}
	if setter, ok := src.(streamLengthSetter); ok {
		tr.lengthSetter = setter
	}
	return tr
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

func (r *tokenReader) setStreamLengthHint(n int64) {
	if r.lengthSetter != nil && n > 0 {
		r.lengthSetter.SetNextStreamLength(n)
	}
}

func (r *tokenReader) clearStreamLengthHint() {
	if r.lengthSetter != nil {
		r.lengthSetter.SetNextStreamLength(-1)
	}
}

func parseObject(tr *tokenReader, rec recovery.Strategy, objNum, gen int) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Name}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return raw.NumberObj{F: tok.Float, IsInt: false}, nil
	case scanner.TokenBoolean:
		return raw.BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenArray:
		return parseArray(tr, rec, objNum, gen)
	case scanner.TokenDict:
		return parseDict(tr, rec, objNum, gen)
	case scanner.TokenRef:
		return raw.Ref(tok.Num, tok.Gen), nil
	}
	return nil, fmt.Errorf("object %d: unexpected token %q", objNum, tok.Keyword)
}

func parseArray(tr *tokenReader, rec recovery.Strategy, objNum, gen int) (raw.Object, error) {
	arr := &raw.ArrayObj{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Keyword == "]" {
			break
		}
		tr.unread(tok)
		item, err := parseObject(tr, rec, objNum, gen)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
	return arr, nil
}

func parseDict(tr *tokenReader, rec recovery.Strategy, objNum, gen int) (raw.Object, error) {
	d := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Keyword == ">>" {
			break
		}
		if tok.Type != scanner.TokenName {
			// An endobj here usually means a missing ">>".
			if tok.Type == scanner.TokenKeyword && tok.Keyword == "endobj" {
				err := errors.New("unexpected endobj in dict")
				if rec != nil {
					action := rec.OnError(err, recovery.Location{ObjectNum: objNum, ObjectGen: gen, Component: "parser"})
					if action == recovery.ActionWarn || action == recovery.ActionFix {
						tr.unread(tok)
						break
					}
				}
				return nil, err
			}
			return nil, fmt.Errorf("object %d: dictionary key is not a name", objNum)
		}
		key := tok.Name
		val, err := parseObject(tr, rec, objNum, gen)
		if err != nil {
			return nil, err
		}
		d.SetKey(key, val)
	}
	return d, nil
}
