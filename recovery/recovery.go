// Package recovery defines the error-recovery protocol shared by the
// scanner, the cross-reference resolver and the document parser. A
// Strategy inspects each structural error together with its location in
// the file and decides whether processing fails, skips the damaged
// construct, patches over it, or records a warning and continues.
package recovery

// Strategy decides how a structural error is handled.
type Strategy interface {
	OnError(err error, location Location) Action
}

// Location pins an error to a byte offset and, when known, the indirect
// object being processed.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)
