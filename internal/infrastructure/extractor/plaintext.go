package extractor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// sectionChars is the synthetic page size for formats without real pages,
// kept small enough that a citation still points somewhere useful.
const sectionChars = 3000

// Plaintext handles .txt and .md files. They have no pages, so the text is
// split into synthetic sections on paragraph boundaries.
type Plaintext struct{}

func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

func (e *Plaintext) Extract(_ context.Context, filename string, r io.Reader) (domain.ExtractedDocument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if !utf8.Valid(raw) {
		return domain.ExtractedDocument{}, fmt.Errorf("%s is not valid utf-8 text", filename)
	}

	var pages []domain.Page
	var current strings.Builder
	pageNum := 1

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			pages = append(pages, domain.Page{Number: pageNum, Text: text})
			pageNum++
		}
		current.Reset()
	}

	for _, para := range strings.Split(string(raw), "\n") {
		current.WriteString(para)
		current.WriteString("\n")
		if current.Len() > sectionChars {
			flush()
		}
	}
	flush()

	return domain.ExtractedDocument{
		Filename: filename,
		Pages:    pages,
		FullText: joinPages(pages),
	}, nil
}
