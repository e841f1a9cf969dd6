// Package xref locates and parses cross-reference information: classic
// xref tables with their trailer dictionaries, /Prev chains from
// incremental updates, and a full-file repair scan when the table is
// missing or damaged.
package xref

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/sage-frank/pdfstamp/ir/raw"
	"github.com/sage-frank/pdfstamp/recovery"
)

// Table holds object offsets plus the trailer that anchored them.
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	Objects() []int
	Trailer() *raw.DictObj
	Repaired() bool
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
}

type ResolverConfig struct {
	// MaxXRefDepth bounds the /Prev chain; 0 means a default of 32.
	MaxXRefDepth int
	Recovery     recovery.Strategy
}

func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 32
	}
	return &tableResolver{cfg: cfg}
}

type tableResolver struct {
	cfg ResolverConfig
}

// Resolve parses the newest xref section pointed to by startxref and
// follows /Prev links backwards. Entries from newer sections shadow
// older ones. Any structural failure falls back to the repair scan.
func (t *tableResolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	data := readAll(r)

	tbl, err := t.resolveChain(ctx, data)
	if err == nil {
		return tbl, nil
	}
	if t.cfg.Recovery != nil {
		action := t.cfg.Recovery.OnError(err, recovery.Location{Component: "xref"})
		if action == recovery.ActionFail {
			return nil, err
		}
	}
	rep, repErr := repair(ctx, bytes.NewReader(data))
	if repErr != nil {
		return nil, fmt.Errorf("xref: %w (repair: %v)", err, repErr)
	}
	return rep, nil
}

func (t *tableResolver) resolveChain(ctx context.Context, data []byte) (Table, error) {
	offset, err := findStartXref(data)
	if err != nil {
		return nil, err
	}

	entries := make(map[int]entry)
	trailer := raw.Dict()
	seen := make(map[int64]bool)

	for depth := 0; ; depth++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if depth >= t.cfg.MaxXRefDepth {
			return nil, errors.New("xref /Prev chain too deep")
		}
		if seen[offset] {
			return nil, errors.New("xref /Prev chain loops")
		}
		seen[offset] = true

		sectionTrailer, err := parseSection(data, offset, entries)
		if err != nil {
			return nil, err
		}
		// Newest trailer wins key by key.
		for k, v := range sectionTrailer.KV {
			if _, ok := trailer.KV[k]; !ok {
				trailer.KV[k] = v
			}
		}
		prev, ok := sectionTrailer.GetKey("Prev")
		if !ok {
			break
		}
		num, ok := prev.(raw.NumberObj)
		if !ok || !num.IsInteger() {
			return nil, errors.New("trailer /Prev is not an integer")
		}
		offset = num.Int()
	}
	return &table{entries: entries, trailer: trailer}, nil
}

func findStartXref(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := data[idx+len("startxref"):]
	lines := bufio.NewScanner(bytes.NewReader(rest))
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		val, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse startxref: %w", err)
		}
		if val <= 0 || val >= int64(len(data)) {
			return 0, fmt.Errorf("xref offset out of range: %d", val)
		}
		return val, nil
	}
	return 0, errors.New("startxref value missing")
}

// parseSection parses one classic table at offset and returns its
// trailer. Entries already present in out are kept (they came from a
// newer section).
func parseSection(data []byte, offset int64, out map[int]entry) (*raw.DictObj, error) {
	if offset <= 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset out of range: %d", offset)
	}
	sc := bufio.NewScanner(bytes.NewReader(data[offset:]))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "xref" {
		return nil, errors.New("xref keyword not found at offset")
	}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			break
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid xref subsection header: %q", line)
		}
		startObj, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("parse xref start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("parse xref count: %w", err)
		}
		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, errors.New("unexpected end of xref section")
			}
			entryLine := strings.TrimSpace(sc.Text())
			fields := strings.Fields(entryLine)
			if len(fields) < 3 {
				return nil, fmt.Errorf("invalid xref entry: %q", entryLine)
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("parse xref gen: %w", err)
			}
			if fields[2] != "n" {
				continue // free entry
			}
			num := startObj + i
			if _, ok := out[num]; !ok {
				out[num] = entry{offset: off, gen: gen}
			}
		}
	}
	// The table body is digits and f/n markers only, so the first
	// "trailer" keyword after the table start belongs to this section.
	idx := bytes.Index(data[offset:], []byte("trailer"))
	if idx < 0 {
		return nil, errors.New("trailer not found after xref table")
	}
	dict, err := parseTrailerDict(data, offset+int64(idx)+int64(len("trailer")))
	if err != nil {
		return nil, fmt.Errorf("parse trailer: %w", err)
	}
	return dict, nil
}

type entry struct {
	offset int64
	gen    int
}

type table struct {
	entries  map[int]entry
	trailer  *raw.DictObj
	repaired bool
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() *raw.DictObj { return t.trailer }
func (t *table) Repaired() bool        { return t.repaired }

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	for off := int64(0); ; off += chunk {
		tmp := make([]byte, chunk)
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			break
		}
		if int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
