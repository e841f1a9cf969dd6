package xref

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/sage-frank/pdfstamp/ir/raw"
	"github.com/sage-frank/pdfstamp/scanner"
)

// tokenReader adapts a scanner with one token of pushback, enough for
// the recursive-descent value parser below.
type tokenReader struct {
	s      scanner.Scanner
	unread *scanner.Token
}

func (tr *tokenReader) next() (scanner.Token, error) {
	if tr.unread != nil {
		tok := *tr.unread
		tr.unread = nil
		return tok, nil
	}
	return tr.s.Next()
}

func (tr *tokenReader) push(tok scanner.Token) { tr.unread = &tok }

// parseTrailerDict parses the dictionary following a trailer keyword.
func parseTrailerDict(data []byte, at int64) (*raw.DictObj, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := s.Seek(at); err != nil {
		return nil, err
	}
	tr := &tokenReader{s: s}
	obj, err := parseValue(tr, 0)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return dict, nil
}

const maxValueDepth = 64

// parseValue builds a raw object from tokens. Streams are not handled;
// trailer dictionaries never contain them.
func parseValue(tr *tokenReader, depth int) (raw.Object, error) {
	if depth > maxValueDepth {
		return nil, errors.New("object nesting too deep")
	}
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenDict:
		dict := raw.Dict()
		for {
			keyTok, err := tr.next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, errors.New("unterminated dictionary")
				}
				return nil, err
			}
			if keyTok.Type == scanner.TokenKeyword && keyTok.Keyword == ">>" {
				return dict, nil
			}
			if keyTok.Type != scanner.TokenName {
				return nil, fmt.Errorf("dictionary key is not a name at offset %d", keyTok.Pos)
			}
			val, err := parseValue(tr, depth+1)
			if err != nil {
				return nil, err
			}
			dict.SetKey(keyTok.Name, val)
		}
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			elemTok, err := tr.next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, errors.New("unterminated array")
				}
				return nil, err
			}
			if elemTok.Type == scanner.TokenKeyword && elemTok.Keyword == "]" {
				return arr, nil
			}
			tr.push(elemTok)
			elem, err := parseValue(tr, depth+1)
			if err != nil {
				return nil, err
			}
			arr.Append(elem)
		}
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Name}, nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		return raw.Ref(tok.Num, tok.Gen), nil
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Keyword, tok.Pos)
	}
}
