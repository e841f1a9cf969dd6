package stamp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sage-frank/pdfstamp/fonts"
	"github.com/sage-frank/pdfstamp/parser"
	"github.com/sage-frank/pdfstamp/writer"
)

// Stable status codes returned by Run and Status. Negative values are
// argument or I/O failures, positive values are document or font
// processing failures.
const (
	StatusOK               = 0
	StatusBadArgument      = -1
	StatusInputUnreadable  = -2
	StatusOutputUnwritable = -3
	StatusFontLoad         = 1
	StatusMissingGlyph     = 2
	StatusMalformed        = 3
	StatusSerialization    = 4
)

var (
	errReadInput   = errors.New("input unreadable")
	errWriteOutput = errors.New("output unwritable")
)

// File watermarks inputPath into outputPath using the font at
// fontPath. The output is written to a temp file in the destination
// directory and renamed into place, so outputPath either gets the
// complete new file or is left untouched.
func File(ctx context.Context, inputPath, outputPath, fontPath string, spec Spec) error {
	input, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errReadInput, err)
	}
	fontData, err := os.ReadFile(fontPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errReadInput, err)
	}

	out, err := Inject(ctx, input, fontData, spec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".pdfstamp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", errWriteOutput, err)
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", errWriteOutput, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", errWriteOutput, err)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", errWriteOutput, err)
	}
	return nil
}

// Run is the language-agnostic boundary: five strings in, one status
// code out. The watermark text is nameText and dateText joined with a
// space, styled with DefaultSpec. Safe to call concurrently for
// distinct path pairs.
func Run(inputPath, outputPath, fontPath, nameText, dateText string) int {
	for _, arg := range []string{inputPath, outputPath, fontPath, nameText, dateText} {
		if strings.TrimSpace(arg) == "" {
			return StatusBadArgument
		}
	}
	spec := DefaultSpec()
	spec.Text = nameText + " " + dateText
	return Status(File(context.Background(), inputPath, outputPath, fontPath, spec))
}

// Status maps an error from File or Inject onto the stable codes.
func Status(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, errReadInput):
		return StatusInputUnreadable
	case errors.Is(err, errWriteOutput):
		return StatusOutputUnwritable
	case errors.Is(err, fonts.ErrGlyphNotFound):
		return StatusMissingGlyph
	case errors.Is(err, fonts.ErrFontLoad):
		return StatusFontLoad
	case errors.Is(err, writer.ErrSerialization):
		return StatusSerialization
	case errors.Is(err, parser.ErrMalformedDocument), errors.Is(err, parser.ErrEncryptedDocument):
		return StatusMalformed
	default:
		return StatusMalformed
	}
}
