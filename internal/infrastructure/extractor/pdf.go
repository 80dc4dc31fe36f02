package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// PDF extracts per-page plain text, keeping real page numbers for citations.
type PDF struct{}

func NewPDF() *PDF {
	return &PDF{}
}

func (e *PDF) Extract(_ context.Context, filename string, r io.Reader) (domain.ExtractedDocument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("read pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("parse pdf %s: %w", filename, err)
	}

	var pages []domain.Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not discard the document.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}

	return domain.ExtractedDocument{
		Filename: filename,
		Pages:    pages,
		FullText: joinPages(pages),
	}, nil
}
