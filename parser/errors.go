package parser

import "errors"

var (
	// ErrMalformedDocument reports a file whose structure cannot be
	// reconstructed even by the repair scan, or whose reference graph
	// is incomplete.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrEncryptedDocument reports a file with an /Encrypt dictionary.
	// Encrypted input is rejected rather than silently corrupted.
	ErrEncryptedDocument = errors.New("encrypted document")
)
