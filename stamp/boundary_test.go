package stamp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func writeTestInputs(t *testing.T) (inputPath, fontPath string) {
	t.Helper()
	dir := t.TempDir()
	inputPath = filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(inputPath, onePageInput(t), 0o644); err != nil {
		t.Fatal(err)
	}
	fontPath = filepath.Join(dir, "font.ttf")
	if err := os.WriteFile(fontPath, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	return inputPath, fontPath
}

func TestFileWritesOutput(t *testing.T) {
	inputPath, fontPath := writeTestInputs(t)
	outputPath := filepath.Join(t.TempDir(), "out.pdf")

	spec := DefaultSpec()
	spec.Text = "Alice 2026-02-05"
	if err := File(context.Background(), inputPath, outputPath, fontPath, spec); err != nil {
		t.Fatalf("File: %v", err)
	}
	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	reparse(t, data)

	// No stray temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(outputPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("output dir has %d entries, want just the output", len(entries))
	}
}

func TestFileLeavesNoOutputOnFailure(t *testing.T) {
	inputPath, _ := writeTestInputs(t)
	outDir := t.TempDir()
	outputPath := filepath.Join(outDir, "out.pdf")

	spec := DefaultSpec()
	spec.Text = "x"
	err := File(context.Background(), inputPath, outputPath, filepath.Join(outDir, "missing.ttf"), spec)
	if err == nil {
		t.Fatal("expected failure for missing font")
	}
	if Status(err) != StatusInputUnreadable {
		t.Errorf("Status = %d, want %d", Status(err), StatusInputUnreadable)
	}
	if _, statErr := os.Stat(outputPath); !os.IsNotExist(statErr) {
		t.Error("failed run left an output file")
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("failed run left %d files in the output dir", len(entries))
	}
}

func TestRunStatusCodes(t *testing.T) {
	inputPath, fontPath := writeTestInputs(t)
	outputPath := filepath.Join(t.TempDir(), "out.pdf")

	if got := Run(inputPath, outputPath, fontPath, "Alice", "2026-02-05"); got != StatusOK {
		t.Errorf("Run = %d, want %d", got, StatusOK)
	}
	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("successful Run wrote no output: %v", err)
	}

	if got := Run("", outputPath, fontPath, "Alice", "2026-02-05"); got != StatusBadArgument {
		t.Errorf("empty input arg: Run = %d, want %d", got, StatusBadArgument)
	}
	if got := Run(inputPath, outputPath, fontPath, "  ", "2026-02-05"); got != StatusBadArgument {
		t.Errorf("blank name arg: Run = %d, want %d", got, StatusBadArgument)
	}
	if got := Run(filepath.Join(t.TempDir(), "no.pdf"), outputPath, fontPath, "A", "B"); got != StatusInputUnreadable {
		t.Errorf("missing input: Run = %d, want %d", got, StatusInputUnreadable)
	}
	if got := Run(inputPath, filepath.Join(t.TempDir(), "no-such-dir", "out.pdf"), fontPath, "A", "B"); got != StatusOutputUnwritable {
		t.Errorf("unwritable output: Run = %d, want %d", got, StatusOutputUnwritable)
	}

	badFont := filepath.Join(t.TempDir(), "bad.ttf")
	if err := os.WriteFile(badFont, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Run(inputPath, outputPath, badFont, "A", "B"); got != StatusFontLoad {
		t.Errorf("bad font: Run = %d, want %d", got, StatusFontLoad)
	}

	badPDF := filepath.Join(t.TempDir(), "bad.pdf")
	if err := os.WriteFile(badPDF, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Run(badPDF, outputPath, fontPath, "A", "B"); got != StatusMalformed {
		t.Errorf("bad document: Run = %d, want %d", got, StatusMalformed)
	}
}

func TestRunConcurrent(t *testing.T) {
	inputPath, fontPath := writeTestInputs(t)
	outDir := t.TempDir()

	const n = 4
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		out := filepath.Join(outDir, fmt.Sprintf("out-%d.pdf", i))
		go func() { done <- Run(inputPath, out, fontPath, "Alice", "2026-02-05") }()
	}
	for i := 0; i < n; i++ {
		if status := <-done; status != StatusOK {
			t.Errorf("concurrent Run returned %d", status)
		}
	}
	for i := 0; i < n; i++ {
		data, err := os.ReadFile(filepath.Join(outDir, fmt.Sprintf("out-%d.pdf", i)))
		if err != nil {
			t.Errorf("output %d missing: %v", i, err)
			continue
		}
		reparse(t, data)
	}
}
