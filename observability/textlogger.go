package observability

import (
	"fmt"
	"io"
	"sync"
)

// TextLogger writes one line per event to an io.Writer. It is what the
// command-line tool uses for -v; library code never constructs one.
type TextLogger struct {
	mu     *sync.Mutex
	w      io.Writer
	fields []Field
}

func NewTextLogger(w io.Writer) *TextLogger {
	return &TextLogger{mu: &sync.Mutex{}, w: w}
}

func (l *TextLogger) log(level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %s", level, msg)
	for _, f := range l.fields {
		fmt.Fprintf(l.w, " %s=%v", f.Key(), f.Value())
	}
	for _, f := range fields {
		fmt.Fprintf(l.w, " %s=%v", f.Key(), f.Value())
	}
	fmt.Fprintln(l.w)
}

func (l *TextLogger) Debug(msg string, fields ...Field) { l.log("DEBUG", msg, fields) }
func (l *TextLogger) Info(msg string, fields ...Field)  { l.log("INFO", msg, fields) }
func (l *TextLogger) Warn(msg string, fields ...Field)  { l.log("WARN", msg, fields) }
func (l *TextLogger) Error(msg string, fields ...Field) { l.log("ERROR", msg, fields) }

func (l *TextLogger) With(fields ...Field) Logger {
	child := &TextLogger{mu: l.mu, w: l.w}
	child.fields = append(append([]Field{}, l.fields...), fields...)
	return child
}
