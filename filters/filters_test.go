package filters

import (
	"bytes"
	"testing"
)

func TestFlateRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("q 1 0 0 1 10 20 cm /GS0 gs Q\n"), 50)
	enc := FlateEncode(payload)
	if len(enc) >= len(payload) {
		t.Errorf("repetitive payload did not compress: %d >= %d", len(enc), len(payload))
	}
	dec, err := FlateDecode(enc, Limits{})
	if err != nil {
		t.Fatalf("FlateDecode: %v", err)
	}
	if !bytes.Equal(dec, payload) {
		t.Fatal("round trip mismatch")
	}
}

func TestFlateDecodeRejectsGarbage(t *testing.T) {
	if _, err := FlateDecode([]byte("not a zlib stream"), Limits{}); err == nil {
		t.Fatal("want error for invalid stream")
	}
}

func TestFlateDecodeEnforcesLimit(t *testing.T) {
	payload := bytes.Repeat([]byte{0}, 4096)
	enc := FlateEncode(payload)
	if _, err := FlateDecode(enc, Limits{MaxDecompressedSize: 1024}); err == nil {
		t.Fatal("want error when limit exceeded")
	}
}
