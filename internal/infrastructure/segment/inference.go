package segment

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

var yearPattern = regexp.MustCompile(`20[1-2]\d`)

// inferDocType classifies a document from filename keywords, falling back
// to the extension table, else unknown. First matching rule wins.
func (s *Segmenter) inferDocType(filename string) domain.DocumentType {
	fn := strings.ToLower(filename)
	for _, rule := range s.tables.FilenameDocTypes {
		for _, kw := range rule.Keywords {
			if strings.Contains(fn, kw) {
				return rule.Type
			}
		}
	}
	ext := strings.ToLower(filepath.Ext(fn))
	for _, rule := range s.tables.Extensions {
		if ext == rule.Extension {
			return rule.Type
		}
	}
	return domain.TypeUnknown
}

// inferYear takes the first plausible 4-digit year from the filename, then
// from the leading 500 characters of the document text.
func inferYear(filename, fullText string) string {
	if m := yearPattern.FindString(filename); m != "" {
		return m
	}
	prefix := fullText
	if len(prefix) > 500 {
		prefix = prefix[:500]
	}
	return yearPattern.FindString(prefix)
}

// inferRegions scans the whole document once; every matching region applies.
func (s *Segmenter) inferRegions(fullText string) []string {
	lower := strings.ToLower(fullText)
	var found []string
	for _, rule := range s.tables.Regions {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				found = append(found, rule.Region)
				break
			}
		}
	}
	return found
}
