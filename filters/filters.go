// Package filters implements the stream codecs the engine touches:
// FlateDecode for compressing emitted streams and decoding existing
// ones. Flate streams carry a zlib wrapper per PDF 7.4.4.
package filters

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// Limits bounds decode output to keep hostile streams from exhausting
// memory. Zero means the default of 256 MiB.
type Limits struct {
	MaxDecompressedSize int64
}

func DefaultLimits() Limits {
	return Limits{MaxDecompressedSize: 256 << 20}
}

// FlateEncode compresses data at the default level. Writing to an
// in-memory buffer cannot fail.
func FlateEncode(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

// FlateDecode decompresses a zlib-wrapped stream, enforcing limits.
func FlateDecode(data []byte, limits Limits) ([]byte, error) {
	max := limits.MaxDecompressedSize
	if max <= 0 {
		max = DefaultLimits().MaxDecompressedSize
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	defer zr.Close()
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(zr, max+1))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("flate: %w", err)
	}
	if n > max {
		return nil, errors.New("flate: decompressed size exceeds limit")
	}
	return buf.Bytes(), nil
}
