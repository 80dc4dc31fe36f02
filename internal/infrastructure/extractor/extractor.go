package extractor

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/knowbase/sales-copilot/internal/core/domain"
	"github.com/knowbase/sales-copilot/internal/core/ports"
)

// Registry dispatches extraction by file extension. An unsupported type
// yields a document with zero pages, which ingestion records as no_text
// rather than failing the batch.
type Registry struct {
	byExt  map[string]ports.TextExtractor
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byExt: map[string]ports.TextExtractor{
			".pdf":  NewPDF(),
			".txt":  NewPlaintext(),
			".md":   NewPlaintext(),
			".xlsx": NewXLSX(),
		},
		logger: logger,
	}
}

func (r *Registry) Extract(ctx context.Context, filename string, reader io.Reader) (domain.ExtractedDocument, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	impl, ok := r.byExt[ext]
	if !ok {
		r.logger.Warn("unsupported_file_type", "filename", filename)
		return domain.ExtractedDocument{Filename: filename}, nil
	}
	return impl.Extract(ctx, filename, reader)
}

func joinPages(pages []domain.Page) string {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n\n")
}
