package extractor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// XLSX treats each sheet as one section. Spreadsheets in this corpus are
// mostly rate cards and delivery trackers; cell text joined row by row is
// enough for retrieval.
type XLSX struct{}

func NewXLSX() *XLSX {
	return &XLSX{}
}

func (e *XLSX) Extract(_ context.Context, filename string, r io.Reader) (domain.ExtractedDocument, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("open xlsx %s: %w", filename, err)
	}
	defer f.Close()

	var pages []domain.Page
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return domain.ExtractedDocument{}, fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		pages = append(pages, domain.Page{
			Number: i + 1,
			Text:   sheet + "\n" + strings.Join(lines, "\n"),
		})
	}

	return domain.ExtractedDocument{
		Filename: filename,
		Pages:    pages,
		FullText: joinPages(pages),
	}, nil
}
