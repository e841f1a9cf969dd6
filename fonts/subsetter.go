package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// Subset produces a smaller font containing only the glyphs text
// needs. Glyph IDs are retained, so lookups made against the original
// font stay valid against the subset. Fonts the sparse strategy cannot
// handle safely (CFF outlines, Arabic shaping) come back unchanged.
func Subset(data []byte, text string) ([]byte, error) {
	used := glyphClosure(data, text)
	if used == nil {
		used = make(map[int]bool)
	}
	// Shaping may substitute glyphs; direct cmap lookups keep the
	// nominal glyph for each rune as well.
	if f, err := Parse(data); err == nil {
		for _, r := range text {
			f.mu.Lock()
			x, err := f.glyphIndex(r)
			f.mu.Unlock()
			if err == nil {
				used[int(x)] = true
			}
		}
	}
	return subsetGIDs(data, used)
}

// subsetGIDs rewrites the font keeping only the closure of usedGIDs in
// the glyf table. Offsets of retained glyphs are preserved.
func subsetGIDs(data []byte, usedGIDs map[int]bool) ([]byte, error) {
	p := &sfntFile{data: data}
	if err := p.parseDirectory(); err != nil {
		return nil, err
	}

	for _, tag := range []string{"glyf", "loca", "head", "maxp", "hmtx", "hhea"} {
		if !p.hasTable(tag) {
			// CFF-flavored or non-standard font; leave untouched.
			return data, nil
		}
	}
	if p.hasArabicGSUB() {
		// Sparse subsetting breaks contextual shaping; keep the full
		// font for Arabic.
		return data, nil
	}

	headData, err := p.readTable("head")
	if err != nil {
		return nil, err
	}
	if len(headData) < 54 {
		return nil, fmt.Errorf("head table truncated")
	}
	indexToLocFormat := int16(binary.BigEndian.Uint16(headData[50:52]))

	maxpData, err := p.readTable("maxp")
	if err != nil {
		return nil, err
	}
	numGlyphs := int(binary.BigEndian.Uint16(maxpData[4:6]))

	closure := make(map[int]bool)
	closure[0] = true // .notdef always survives
	for gid := range usedGIDs {
		if gid < numGlyphs {
			closure[gid] = true
		}
	}
	if err := p.expandComposites(closure, numGlyphs, indexToLocFormat); err != nil {
		return nil, fmt.Errorf("composite closure: %w", err)
	}

	maxUsed := 0
	for gid := range closure {
		if gid > maxUsed {
			maxUsed = gid
		}
	}
	newNumGlyphs := maxUsed + 1
	if newNumGlyphs > numGlyphs {
		newNumGlyphs = numGlyphs
	}

	newGlyf, newLoca, err := p.rebuildGlyfLoca(closure, newNumGlyphs, indexToLocFormat)
	if err != nil {
		return nil, err
	}
	newHmtx, err := p.rebuildHmtx(newNumGlyphs)
	if err != nil {
		return nil, err
	}

	newMaxp := append([]byte(nil), maxpData...)
	binary.BigEndian.PutUint16(newMaxp[4:], uint16(newNumGlyphs))

	// The rebuilt loca is always long format.
	newHead := append([]byte(nil), headData...)
	binary.BigEndian.PutUint16(newHead[50:], 1)

	w := &sfntWriter{}
	w.addTable("glyf", newGlyf)
	w.addTable("loca", newLoca)
	w.addTable("hmtx", newHmtx)
	w.addTable("maxp", newMaxp)
	w.addTable("head", newHead)

	keep := []string{"hhea", "cmap", "name", "OS/2", "post", "cvt ", "fpgm", "prep", "GSUB", "GPOS", "GDEF", "gasp"}
	for _, tag := range keep {
		if !p.hasTable(tag) {
			continue
		}
		tbl, err := p.readTable(tag)
		if err != nil {
			return nil, err
		}
		if tag == "hhea" && len(tbl) >= 36 {
			// hmtx was rebuilt with every metric explicit.
			patched := append([]byte(nil), tbl...)
			binary.BigEndian.PutUint16(patched[34:], uint16(newNumGlyphs))
			tbl = patched
		}
		w.addTable(tag, tbl)
	}
	return w.bytes(), nil
}

type sfntFile struct {
	data   []byte
	tables map[string]tableEntry
}

type tableEntry struct {
	offset uint32
	length uint32
}

func (p *sfntFile) parseDirectory() error {
	if len(p.data) < 12 {
		return fmt.Errorf("font header truncated")
	}
	numTables := int(binary.BigEndian.Uint16(p.data[4:6]))
	p.tables = make(map[string]tableEntry)

	offset := 12
	for i := 0; i < numTables; i++ {
		if offset+16 > len(p.data) {
			return fmt.Errorf("table directory truncated")
		}
		tag := string(p.data[offset : offset+4])
		off := binary.BigEndian.Uint32(p.data[offset+8 : offset+12])
		length := binary.BigEndian.Uint32(p.data[offset+12 : offset+16])
		p.tables[tag] = tableEntry{offset: off, length: length}
		offset += 16
	}
	return nil
}

func (p *sfntFile) hasTable(tag string) bool {
	_, ok := p.tables[tag]
	return ok
}

func (p *sfntFile) readTable(tag string) ([]byte, error) {
	entry, ok := p.tables[tag]
	if !ok {
		return nil, fmt.Errorf("table %s not found", tag)
	}
	end := int64(entry.offset) + int64(entry.length)
	if end > int64(len(p.data)) {
		return nil, fmt.Errorf("table %s out of bounds", tag)
	}
	return p.data[entry.offset:end], nil
}

func (p *sfntFile) hasArabicGSUB() bool {
	if !p.hasTable("GSUB") {
		return false
	}
	data, err := p.readTable("GSUB")
	if err != nil || len(data) < 10 {
		return false
	}
	scriptListOffset := binary.BigEndian.Uint16(data[4:6])
	if int(scriptListOffset) >= len(data) {
		return false
	}
	listData := data[scriptListOffset:]
	if len(listData) < 2 {
		return false
	}
	scriptCount := int(binary.BigEndian.Uint16(listData[0:2]))
	offset := 2
	for i := 0; i < scriptCount; i++ {
		if offset+6 > len(listData) {
			break
		}
		if string(listData[offset:offset+4]) == "arab" {
			return true
		}
		offset += 6
	}
	return false
}

// Composite glyph flags per the glyf table spec.
const (
	flagArg1And2AreWords = 0x0001
	flagWeHaveAScale     = 0x0008
	flagMoreComponents   = 0x0020
	flagWeHaveXYScale    = 0x0040
	flagWeHaveTwoByTwo   = 0x0080
)

// expandComposites grows closure with every component glyph reachable
// from it, breadth first.
func (p *sfntFile) expandComposites(closure map[int]bool, numGlyphs int, indexToLocFormat int16) error {
	loca, err := p.readTable("loca")
	if err != nil {
		return err
	}
	glyf, err := p.readTable("glyf")
	if err != nil {
		return err
	}
	getLoc := locReader(loca, indexToLocFormat)

	queue := make([]int, 0, len(closure))
	for gid := range closure {
		queue = append(queue, gid)
	}
	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]
		if gid >= numGlyphs {
			continue
		}
		start, end := getLoc(gid), getLoc(gid+1)
		if start >= end || start+10 > uint32(len(glyf)) {
			continue
		}
		numContours := int16(binary.BigEndian.Uint16(glyf[start : start+2]))
		if numContours >= 0 {
			continue // simple glyph
		}
		offset := start + 10
		for {
			if offset+4 > uint32(len(glyf)) {
				break
			}
			flags := binary.BigEndian.Uint16(glyf[offset : offset+2])
			subGID := int(binary.BigEndian.Uint16(glyf[offset+2 : offset+4]))
			if !closure[subGID] {
				closure[subGID] = true
				queue = append(queue, subGID)
			}
			offset += 4
			switch {
			case flags&flagArg1And2AreWords != 0:
				offset += 4
			default:
				offset += 2
			}
			switch {
			case flags&flagWeHaveAScale != 0:
				offset += 2
			case flags&flagWeHaveXYScale != 0:
				offset += 4
			case flags&flagWeHaveTwoByTwo != 0:
				offset += 8
			}
			if flags&flagMoreComponents == 0 {
				break
			}
		}
	}
	return nil
}

func locReader(loca []byte, indexToLocFormat int16) func(int) uint32 {
	return func(gid int) uint32 {
		if indexToLocFormat == 0 {
			if gid*2+2 > len(loca) {
				return 0
			}
			return uint32(binary.BigEndian.Uint16(loca[gid*2:])) * 2
		}
		if gid*4+4 > len(loca) {
			return 0
		}
		return binary.BigEndian.Uint32(loca[gid*4:])
	}
}

// rebuildGlyfLoca keeps retained glyph data and collapses dropped
// glyphs to zero length. Output loca is long format.
func (p *sfntFile) rebuildGlyfLoca(closure map[int]bool, numGlyphs int, indexToLocFormat int16) ([]byte, []byte, error) {
	oldLoca, err := p.readTable("loca")
	if err != nil {
		return nil, nil, err
	}
	oldGlyf, err := p.readTable("glyf")
	if err != nil {
		return nil, nil, err
	}
	getLoc := locReader(oldLoca, indexToLocFormat)

	var newGlyf bytes.Buffer
	offsets := make([]uint32, numGlyphs+1)
	current := uint32(0)
	for gid := 0; gid < numGlyphs; gid++ {
		offsets[gid] = current
		if !closure[gid] {
			continue
		}
		start, end := getLoc(gid), getLoc(gid+1)
		if start < end && end <= uint32(len(oldGlyf)) {
			newGlyf.Write(oldGlyf[start:end])
			current += end - start
		}
	}
	offsets[numGlyphs] = current

	var newLoca bytes.Buffer
	for _, off := range offsets {
		binary.Write(&newLoca, binary.BigEndian, off)
	}
	return newGlyf.Bytes(), newLoca.Bytes(), nil
}

// rebuildHmtx writes an explicit advance/lsb pair for every glyph,
// avoiding the run-length optimization of the original table.
func (p *sfntFile) rebuildHmtx(numGlyphs int) ([]byte, error) {
	hhea, err := p.readTable("hhea")
	if err != nil {
		return nil, err
	}
	if len(hhea) < 36 {
		return nil, fmt.Errorf("hhea table truncated")
	}
	numOfHMetrics := int(binary.BigEndian.Uint16(hhea[34:36]))
	hmtx, err := p.readTable("hmtx")
	if err != nil {
		return nil, err
	}

	getMetric := func(gid int) (uint16, int16) {
		if gid < numOfHMetrics && gid*4+4 <= len(hmtx) {
			adv := binary.BigEndian.Uint16(hmtx[gid*4 : gid*4+2])
			lsb := int16(binary.BigEndian.Uint16(hmtx[gid*4+2 : gid*4+4]))
			return adv, lsb
		}
		var lastAdv uint16
		if numOfHMetrics > 0 && numOfHMetrics*4 <= len(hmtx) {
			lastAdv = binary.BigEndian.Uint16(hmtx[(numOfHMetrics-1)*4:])
		}
		lsbOffset := numOfHMetrics*4 + (gid-numOfHMetrics)*2
		if lsbOffset+2 <= len(hmtx) {
			return lastAdv, int16(binary.BigEndian.Uint16(hmtx[lsbOffset:]))
		}
		return lastAdv, 0
	}

	var out bytes.Buffer
	for gid := 0; gid < numGlyphs; gid++ {
		adv, lsb := getMetric(gid)
		binary.Write(&out, binary.BigEndian, adv)
		binary.Write(&out, binary.BigEndian, lsb)
	}
	return out.Bytes(), nil
}

type sfntWriter struct {
	tables []namedTable
}

type namedTable struct {
	tag  string
	data []byte
}

func (w *sfntWriter) addTable(tag string, data []byte) {
	w.tables = append(w.tables, namedTable{tag, data})
}

func (w *sfntWriter) bytes() []byte {
	sort.Slice(w.tables, func(i, j int) bool { return w.tables[i].tag < w.tables[j].tag })

	numTables := len(w.tables)
	offset := 12 + 16*numTables

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x01, 0x00, 0x00}) // sfnt version 1.0
	binary.Write(&buf, binary.BigEndian, uint16(numTables))

	entrySelector := 0
	for (1 << (entrySelector + 1)) <= numTables {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * 16
	binary.Write(&buf, binary.BigEndian, uint16(searchRange))
	binary.Write(&buf, binary.BigEndian, uint16(entrySelector))
	binary.Write(&buf, binary.BigEndian, uint16(numTables*16-searchRange))

	for _, t := range w.tables {
		padding := (4 - (len(t.data) % 4)) % 4
		buf.WriteString(t.tag)
		binary.Write(&buf, binary.BigEndian, sfntChecksum(t.data))
		binary.Write(&buf, binary.BigEndian, uint32(offset))
		binary.Write(&buf, binary.BigEndian, uint32(len(t.data)))
		offset += len(t.data) + padding
	}

	tableOffsets := make(map[string]int)
	for _, t := range w.tables {
		tableOffsets[t.tag] = buf.Len()
		buf.Write(t.data)
		for k := 0; k < (4-(len(t.data)%4))%4; k++ {
			buf.WriteByte(0)
		}
	}

	final := buf.Bytes()
	if off, ok := tableOffsets["head"]; ok && off+12 <= len(final) {
		// checksumAdjustment must be computed over the file with the
		// field zeroed, then written back (per the head table spec).
		final[off+8], final[off+9], final[off+10], final[off+11] = 0, 0, 0, 0
		for i, t := range w.tables {
			if t.tag != "head" {
				continue
			}
			dirOffset := 12 + 16*i
			length := binary.BigEndian.Uint32(final[dirOffset+12 : dirOffset+16])
			paddedLen := (length + 3) &^ 3
			binary.BigEndian.PutUint32(final[dirOffset+4:], sfntChecksum(final[off:uint32(off)+paddedLen]))
			break
		}
		binary.BigEndian.PutUint32(final[off+8:], 0xB1B0AFBA-sfntChecksum(final))
	}
	return final
}

func sfntChecksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		if i+4 <= len(data) {
			sum += binary.BigEndian.Uint32(data[i : i+4])
		} else {
			var tail [4]byte
			copy(tail[:], data[i:])
			sum += binary.BigEndian.Uint32(tail[:])
		}
	}
	return sum
}
