package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long a killed process may hold its pipes open
const waitDelay = 2 * time.Second

// TesseractEngine runs the tesseract CLI on image uploads. The image is
// streamed on stdin and recognized text read from stdout.
type TesseractEngine struct {
	binary    string
	languages string
}

// NewTesseractEngine creates an engine for the given binary and language set
// (e.g. "eng" or "eng+hin").
func NewTesseractEngine(binary, languages string) *TesseractEngine {
	if binary == "" {
		binary = "tesseract"
	}
	if languages == "" {
		languages = "eng"
	}
	return &TesseractEngine{binary: binary, languages: languages}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) CanProcess(ext string) bool {
	return ext == "png" || ext == "jpg" || ext == "jpeg"
}

// Available reports whether the binary is on PATH
func (e *TesseractEngine) Available() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

func (e *TesseractEngine) Extract(ctx context.Context, data []byte, ext string) ([]string, error) {
	cmd := exec.CommandContext(ctx, e.binary, "stdin", "stdout", "-l", e.languages)
	cmd.Stdin = bytes.NewReader(data)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("tesseract failed: %w", err)
		}
		return nil, fmt.Errorf("tesseract failed: %s", msg)
	}

	return lines(stdout.String()), nil
}

// PdftotextEngine reads the text layer of a PDF with poppler's pdftotext.
type PdftotextEngine struct {
	binary string
}

func NewPdftotextEngine() *PdftotextEngine {
	return &PdftotextEngine{binary: "pdftotext"}
}

func (e *PdftotextEngine) Name() string { return "pdftotext" }

func (e *PdftotextEngine) CanProcess(ext string) bool { return ext == "pdf" }

// Available reports whether the binary is on PATH
func (e *PdftotextEngine) Available() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

func (e *PdftotextEngine) Extract(ctx context.Context, data []byte, ext string) ([]string, error) {
	cmd := exec.CommandContext(ctx, e.binary, "-layout", "-enc", "UTF-8", "-", "-")
	cmd.Stdin = bytes.NewReader(data)
	cmd.WaitDelay = waitDelay

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	fragments := lines(string(output))
	if len(fragments) == 0 {
		return nil, fmt.Errorf("pdftotext: %w", ErrNoText)
	}
	return fragments, nil
}
