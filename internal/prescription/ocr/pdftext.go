package ocr

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFTextEngine reads the embedded text layer of a PDF in-process.
// Scanned PDFs without a text layer yield ErrNoText.
type PDFTextEngine struct{}

func NewPDFTextEngine() *PDFTextEngine {
	return &PDFTextEngine{}
}

func (e *PDFTextEngine) Name() string { return "pdf_text" }

func (e *PDFTextEngine) CanProcess(ext string) bool { return ext == "pdf" }

func (e *PDFTextEngine) Extract(ctx context.Context, data []byte, ext string) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var fragments []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		fragments = append(fragments, lines(text)...)
	}

	if len(fragments) == 0 {
		return nil, fmt.Errorf("pdf: %w", ErrNoText)
	}
	return fragments, nil
}
