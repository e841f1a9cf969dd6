// Command pdfstamp tiles a semi-transparent text watermark across
// every page of a PDF.
//
// Usage:
//
//	pdfstamp -font font.ttf -name Alice -date 2026-02-05 input.pdf output.pdf
//
// The exit code follows the stamp package's status codes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sage-frank/pdfstamp/observability"
	"github.com/sage-frank/pdfstamp/stamp"
)

func main() {
	os.Exit(run())
}

func run() int {
	fontPath := flag.String("font", "", "path to a TrueType/OpenType font (required)")
	name := flag.String("name", "", "name text of the watermark (required)")
	date := flag.String("date", "", "date text of the watermark (required)")
	size := flag.Float64("size", 26, "font size in points")
	angle := flag.Float64("angle", 45, "rotation in degrees, counterclockwise")
	opacity := flag.Float64("opacity", 0.1, "fill opacity, 0..1")
	strict := flag.Bool("strict", false, "fail when a character has no glyph instead of omitting it")
	subset := flag.Bool("subset", false, "subset the font to the watermark's glyphs first")
	verbose := flag.Bool("v", false, "log progress to stderr")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 || *fontPath == "" || *name == "" || *date == "" {
		usage()
		return stamp.StatusBadArgument
	}
	input, output := flag.Arg(0), flag.Arg(1)

	spec := stamp.DefaultSpec()
	spec.Text = *name + " " + *date
	spec.FontSize = *size
	spec.Angle = *angle
	spec.Opacity = *opacity
	spec.Strict = *strict
	spec.SubsetFont = *subset
	if *verbose {
		spec.Logger = observability.NewTextLogger(os.Stderr)
	}

	err := stamp.File(context.Background(), input, output, *fontPath, spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfstamp: %v\n", err)
	}
	return stamp.Status(err)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: pdfstamp [flags] -font font.ttf -name NAME -date DATE <input.pdf> <output.pdf>\n")
	flag.PrintDefaults()
}
