package xref

import (
	"context"
	"errors"
	"io"

	"github.com/sage-frank/pdfstamp/ir/raw"
	"github.com/sage-frank/pdfstamp/recovery"
	"github.com/sage-frank/pdfstamp/scanner"
)

// repair reconstructs the xref table by scanning the whole file for
// "<num> <gen> obj" headers and trailer dictionaries. Later definitions
// of the same object number shadow earlier ones, matching incremental
// update order.
func repair(ctx context.Context, r io.ReaderAt) (Table, error) {
	s := scanner.New(r, scanner.Config{Recovery: recovery.NewLenientStrategy()})
	entries := make(map[int]entry)
	var lastTrailer *raw.DictObj

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Skip damaged regions during the repair scan.
			continue
		}

		if tok.Type == scanner.TokenNumber && tok.IsInt {
			objNum := int(tok.Int)

			tokGen, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				continue
			}
			if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt {
				continue
			}
			tokObj, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				continue
			}
			if tokObj.Type == scanner.TokenKeyword && tokObj.Keyword == "obj" {
				entries[objNum] = entry{offset: tok.Pos, gen: int(tokGen.Int)}
				continue
			}
			// tokGen could itself start an object header; rewind so the
			// pattern "1 2 0 obj" is not missed.
			if err := s.Seek(tokGen.Pos); err != nil {
				return nil, err
			}
			continue
		}
		if tok.Type == scanner.TokenKeyword && tok.Keyword == "trailer" {
			tr := &tokenReader{s: s}
			obj, err := parseValue(tr, 0)
			if err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	if lastTrailer == nil {
		// The document parser locates the catalog by scanning the
		// arena when /Root is absent.
		lastTrailer = raw.Dict()
		lastTrailer.SetKey("Size", raw.NumberInt(int64(len(entries))))
	}
	return &table{entries: entries, trailer: lastTrailer, repaired: true}, nil
}
